// Package sepio loads and saves the multi-channel PCM buffers pkg/duet and
// pkg/repet operate on, built on github.com/faiface/beep rather than the
// hand-rolled WAV parser the noise-cancellation server used: beep's
// wav/mp3/vorbis decoders cover the input formats a separation demo is
// likely to be pointed at, and its format-agnostic beep.Streamer interface
// is reused here for output encoding too. Unlike the teacher's ReadWAV,
// stereo channels are kept separate rather than mixed down to mono, since
// pkg/duet needs both channels intact.
package sepio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"audiosep/pkg/pcm"
)

// ErrUnsupportedFormat reports a file extension none of the wired decoders
// handle.
var ErrUnsupportedFormat = errors.New("sepio: unsupported audio format")

// Load decodes an audio file into a pcm.Buffer, picking a decoder by file
// extension (.wav, .mp3, .ogg).
func Load(path string) (*pcm.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sepio: open %s: %w", path, err)
	}
	defer f.Close()

	streamer, format, err := decode(path, f)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	return drain(streamer, format)
}

// DecodeWAV decodes an in-memory WAV stream, for callers (such as an HTTP
// upload handler) that have the bytes already and don't want to round-trip
// through a temp file.
func DecodeWAV(r io.ReadSeeker) (*pcm.Buffer, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("sepio: decode wav: %w", err)
	}
	defer streamer.Close()
	return drain(streamer, format)
}

// EncodeWAV writes buf as a 16-bit PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, buf *pcm.Buffer) error {
	return wav.Encode(w, newBufferStreamer(buf), beep.Format{
		SampleRate:  beep.SampleRate(buf.SampleRate()),
		NumChannels: 2,
		Precision:   2,
	})
}

func decode(path string, f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wav.Decode(f)
	case ".mp3":
		return mp3.Decode(f)
	case ".ogg":
		return vorbis.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// drain reads every frame a decoder produces into a pcm.Buffer. beep always
// yields [2]float64 frames; mono sources carry the same value in both
// slots, so a single-channel format collapses back to one pcm channel.
func drain(streamer beep.Streamer, format beep.Format) (*pcm.Buffer, error) {
	const chunk = 4096
	buf := make([][2]float64, chunk)

	var left, right []float64
	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			left = append(left, buf[i][0])
			right = append(right, buf[i][1])
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("sepio: decode: %w", err)
	}

	sr := int(format.SampleRate)
	if format.NumChannels <= 1 {
		return pcm.Mono(left, sr), nil
	}
	return pcm.New([][]float64{left, right}, sr), nil
}

// Save encodes a pcm.Buffer as a 16-bit PCM WAV file, the one format beep's
// encode side supports.
func Save(path string, buf *pcm.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sepio: create %s: %w", path, err)
	}
	defer f.Close()

	return EncodeWAV(f, buf)
}

func newBufferStreamer(buf *pcm.Buffer) *bufferStreamer {
	n := buf.NumChannels()
	channels := make([][]float64, n)
	for i := range channels {
		ch, _ := buf.Channel(i + 1)
		channels[i] = ch
	}
	return &bufferStreamer{channels: channels, pos: 0, length: buf.NumSamples()}
}

// bufferStreamer adapts a set of float64 channel slices (1 or 2 of them) to
// beep.Streamer, duplicating a mono channel across both output slots since
// EncodeWAV always writes two-channel frames.
type bufferStreamer struct {
	channels [][]float64
	pos      int
	length   int
}

func (s *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= s.length {
		return 0, false
	}
	for n = 0; n < len(samples) && s.pos < s.length; n++ {
		left := s.channels[0][s.pos]
		right := left
		if len(s.channels) > 1 {
			right = s.channels[1][s.pos]
		}
		samples[n] = [2]float64{left, right}
		s.pos++
	}
	return n, true
}

func (s *bufferStreamer) Err() error { return nil }
