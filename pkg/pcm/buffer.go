// Package pcm implements the multi-channel PCM buffer described by
// spec.md §3/§4.B: a read-mostly container with channel access, concat,
// arithmetic, and peak normalization.
package pcm

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrChannelMismatch = errors.New("pcm: channel count mismatch")
	ErrRateMismatch    = errors.New("pcm: sample rate mismatch")
	ErrBadChannelIndex = errors.New("pcm: channel index out of range")
)

// Buffer is a [channels][samples] floating-point PCM container, values
// nominally in [-1, 1]. All channels are kept equal-length; zero-padding on
// arithmetic is performed explicitly, never implicitly at construction.
type Buffer struct {
	channels   [][]float64
	sampleRate int
}

// New builds a Buffer from channel data. All channels must already be the
// same length; New panics otherwise, since mismatched channel data at
// construction is a caller bug, not a runtime condition to recover from.
func New(channels [][]float64, sampleRate int) *Buffer {
	if len(channels) == 0 {
		panic("pcm: at least one channel is required")
	}
	n := len(channels[0])
	for _, c := range channels {
		if len(c) != n {
			panic("pcm: all channels must have equal length")
		}
	}
	cp := make([][]float64, len(channels))
	for i, c := range channels {
		cp[i] = append([]float64(nil), c...)
	}
	return &Buffer{channels: cp, sampleRate: sampleRate}
}

// Mono builds a single-channel Buffer.
func Mono(samples []float64, sampleRate int) *Buffer {
	return New([][]float64{samples}, sampleRate)
}

func (b *Buffer) NumChannels() int { return len(b.channels) }
func (b *Buffer) NumSamples() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channel returns the n-th channel, 1-based, as spec.md §4.B requires.
// The returned slice aliases internal storage; callers must not mutate it.
func (b *Buffer) Channel(n int) ([]float64, error) {
	if n < 1 || n > len(b.channels) {
		return nil, fmt.Errorf("%w: %d (have %d channels)", ErrBadChannelIndex, n, len(b.channels))
	}
	return b.channels[n-1], nil
}

// Concat appends other's samples to the end of b's, channel-wise, and
// returns a new Buffer.
func (b *Buffer) Concat(other *Buffer) (*Buffer, error) {
	if b.NumChannels() != other.NumChannels() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrChannelMismatch, b.NumChannels(), other.NumChannels())
	}
	out := make([][]float64, b.NumChannels())
	for i := range out {
		out[i] = append(append([]float64(nil), b.channels[i]...), other.channels[i]...)
	}
	return New(out, b.sampleRate), nil
}

// Add returns a new Buffer with b+other, zero-extending the shorter buffer.
func (b *Buffer) Add(other *Buffer) (*Buffer, error) {
	return b.combine(other, func(x, y float64) float64 { return x + y })
}

// Sub returns a new Buffer with b-other, zero-extending the shorter buffer.
func (b *Buffer) Sub(other *Buffer) (*Buffer, error) {
	return b.combine(other, func(x, y float64) float64 { return x - y })
}

func (b *Buffer) combine(other *Buffer, op func(x, y float64) float64) (*Buffer, error) {
	if b.NumChannels() != other.NumChannels() {
		return nil, fmt.Errorf("%w: %d vs %d", ErrChannelMismatch, b.NumChannels(), other.NumChannels())
	}
	if b.sampleRate != other.sampleRate {
		return nil, fmt.Errorf("%w: %d vs %d", ErrRateMismatch, b.sampleRate, other.sampleRate)
	}
	n := b.NumSamples()
	if other.NumSamples() > n {
		n = other.NumSamples()
	}
	out := make([][]float64, b.NumChannels())
	for c := 0; c < b.NumChannels(); c++ {
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			var x, y float64
			if i < len(b.channels[c]) {
				x = b.channels[c][i]
			}
			if i < len(other.channels[c]) {
				y = other.channels[c][i]
			}
			row[i] = op(x, y)
		}
		out[c] = row
	}
	return New(out, b.sampleRate), nil
}

// PeakNormalize divides every sample by the buffer's absolute peak, in
// place, only when that peak exceeds 1.
func (b *Buffer) PeakNormalize() {
	peak := b.peak()
	if peak <= 1 {
		return
	}
	for _, c := range b.channels {
		for i := range c {
			c[i] /= peak
		}
	}
}

func (b *Buffer) peak() float64 {
	var peak float64
	for _, c := range b.channels {
		for _, v := range c {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
	}
	return peak
}
