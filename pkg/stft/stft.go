// Package stft implements the windowed, overlapped, zero-padded forward and
// inverse Short-Time Fourier Transform described by the separation core.
//
// The forward transform is built on gonum's real-input FFT
// (gonum.org/v1/gonum/dsp/fourier), the same package
// madpsy-ka9q_ubersdr's audio extensions and the mixxxlab STFT analyzer use
// for spectral analysis, rather than a hand-rolled Cooley-Tukey pass.
package stft

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"audiosep/pkg/window"
)

var (
	// ErrInvalidParameter reports a malformed window/hop/FFT configuration.
	ErrInvalidParameter = errors.New("stft: invalid parameter")
	// ErrInvalidStftState reports an inverse transform attempted on a
	// spectrogram that was never produced by Forward.
	ErrInvalidStftState = errors.New("stft: no forward transform to invert")
)

// Params records the window length, hop, window shape, and requested FFT
// length for a transform pair. NFFT is the smallest power of two that is
// at least max(N, L); it's recomputed from N and L rather than stored
// directly, since spec.md treats N as a minimum, not an exact length.
type Params struct {
	L      int
	H      int
	Window window.Type
	N      int
}

// Validate checks the invariants from spec.md §4.A / §3: H <= L, and both
// positive. It does not check COLA exactly (that's a property of the
// (window, L, H) triple verified by tests, not a runtime guard).
func (p Params) Validate() error {
	if p.L <= 0 {
		return fmt.Errorf("%w: window length %d must be positive", ErrInvalidParameter, p.L)
	}
	if p.H <= 0 {
		return fmt.Errorf("%w: hop %d must be positive", ErrInvalidParameter, p.H)
	}
	if p.H > p.L {
		return fmt.Errorf("%w: hop %d must not exceed window length %d", ErrInvalidParameter, p.H, p.L)
	}
	if p.N < p.L {
		return fmt.Errorf("%w: fft length %d must be >= window length %d", ErrInvalidParameter, p.N, p.L)
	}
	return nil
}

// NFFT returns the next power of two >= max(N, L).
func (p Params) NFFT() int {
	return nextPow2(max(p.N, p.L))
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Spectrogram is a one-sided complex short-time spectrum: Bins rows
// (NFFT/2+1) by Frames columns, stored one bin row per slice as Data[bin][frame].
type Spectrogram struct {
	Data       [][]complex128 // [bins][frames]
	Freqs      []float64      // length bins
	Times      []float64      // length frames
	Params     Params
	NFFT       int
	SampleRate int
	SignalLen  int // length of the original time-domain signal
}

// Bins reports the number of one-sided frequency bins.
func (s *Spectrogram) Bins() int { return len(s.Data) }

// Frames reports the number of time frames.
func (s *Spectrogram) Frames() int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data[0])
}

// PowerSpectrum returns |X|^2 for every bin/frame.
func (s *Spectrogram) PowerSpectrum() [][]float64 {
	out := make([][]float64, len(s.Data))
	for k, row := range s.Data {
		out[k] = make([]float64, len(row))
		for m, v := range row {
			mag := cabs(v)
			out[k][m] = mag * mag
		}
	}
	return out
}

// Magnitude returns |X| for every bin/frame.
func (s *Spectrogram) Magnitude() [][]float64 {
	out := make([][]float64, len(s.Data))
	for k, row := range s.Data {
		out[k] = make([]float64, len(row))
		for m, v := range row {
			out[k][m] = cabs(v)
		}
	}
	return out
}

func cabs(v complex128) float64 {
	re, im := real(v), imag(v)
	return math.Sqrt(re*re + im*im)
}

// Forward computes the windowed, zero-padded STFT of a mono signal x
// sampled at sampleRate, per spec.md §4.A.
func Forward(x []float64, sampleRate int, p Params) (*Spectrogram, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	nfft := p.NFFT()
	bins := nfft/2 + 1
	s := len(x)

	frames := 1
	if s > p.L {
		frames = ceilDiv(s-p.L, p.H) + 1
	}

	win := window.Generate(p.Window, p.L)
	fft := fourier.NewFFT(nfft)

	data := make([][]complex128, bins)
	for k := range data {
		data[k] = make([]complex128, frames)
	}

	frameBuf := make([]float64, nfft)
	for m := 0; m < frames; m++ {
		start := m * p.H
		for j := range frameBuf {
			frameBuf[j] = 0
		}
		for j := 0; j < p.L; j++ {
			idx := start + j
			if idx < s {
				frameBuf[j] = x[idx] * win[j]
			}
		}
		coeffs := fft.Coefficients(nil, frameBuf)
		for k := 0; k < bins; k++ {
			data[k][m] = coeffs[k]
		}
	}

	freqs := make([]float64, bins)
	for k := 0; k < bins; k++ {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}
	times := make([]float64, frames)
	for m := 0; m < frames; m++ {
		times[m] = (float64(m*p.H) + float64(p.L)/2) / float64(sampleRate)
	}

	return &Spectrogram{
		Data:       data,
		Freqs:      freqs,
		Times:      times,
		Params:     p,
		NFFT:       nfft,
		SampleRate: sampleRate,
		SignalLen:  s,
	}, nil
}

// Inverse reconstructs a time-domain signal from a one-sided spectrogram
// via overlap-add, per spec.md §4.A. Each inverse DFT frame is divided by
// NFFT, since gonum's Sequence does not normalize. The synthesis window is multiplied in
// a second time after the inverse DFT (matching the teacher's
// spectral-subtraction overlap-add in denoise.go), and the accumulated
// window energy normalizes the result.
func Inverse(s *Spectrogram) ([]float64, []float64, error) {
	if s == nil || len(s.Data) == 0 {
		return nil, nil, ErrInvalidStftState
	}
	p := s.Params
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}

	frames := s.Frames()
	outLen := (frames-1)*p.H + p.L
	if outLen < p.L {
		outLen = p.L
	}

	win := window.Generate(p.Window, p.L)
	fft := fourier.NewFFT(s.NFFT)
	scale := 1 / float64(s.NFFT) // Sequence is unnormalized

	output := make([]float64, outLen)
	windowSum := make([]float64, outLen)
	col := make([]complex128, s.Bins())

	for m := 0; m < frames; m++ {
		for k := 0; k < s.Bins(); k++ {
			col[k] = s.Data[k][m]
		}
		frame := fft.Sequence(nil, col)

		start := m * p.H
		for j := 0; j < p.L; j++ {
			idx := start + j
			if idx >= outLen {
				break
			}
			output[idx] += frame[j] * scale * win[j]
			windowSum[idx] += win[j] * win[j]
		}
	}

	for i := range output {
		if windowSum[i] > 1e-8 {
			output[i] /= windowSum[i]
		}
	}

	times := make([]float64, outLen)
	for i := range times {
		times[i] = float64(i) / float64(s.SampleRate)
	}

	return output, times, nil
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
