// Package duet implements the Degenerate Unmixing Estimation Technique
// stereo separator from spec.md §4.D, grounded on
// original_source/DUET.py: ratio -> symmetric attenuation/delay ->
// weighted 2-D histogram -> smoothed peak selection -> maximum-likelihood
// binary masks -> per-source reconstruction.
package duet

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"audiosep/pkg/peaks"
	"audiosep/pkg/pcm"
	"audiosep/pkg/smoothing"
	"audiosep/pkg/stft"
)

var (
	// ErrInvalidChannelCount reports that the mixture was not stereo.
	ErrInvalidChannelCount = errors.New("duet: mixture must have exactly 2 channels")
	// ErrInvalidParameter reports a malformed histogram/peak configuration.
	ErrInvalidParameter = errors.New("duet: invalid parameter")
)

// epsilon guards the ratio and mask computations against division by zero,
// per spec.md §6's ε = 1e-16.
const epsilon = 1e-16

// Params configures a DUET run. P and Q default to 1 and 0 (the weighted
// histogram reduces to |X1||X2| weighting) when left unset and Defaults()
// has not been called.
type Params struct {
	NumSources int

	AlphaMin, AlphaMax float64
	AlphaBins          int
	DeltaMin, DeltaMax float64
	DeltaBins          int

	Threshold                  float64
	AlphaMinDist, DeltaMinDist int

	STFT stft.Params

	P, Q float64
}

// Defaults fills in P=1, Q=0 when both are zero, matching DUET.py's p=1,q=0.
func (p Params) Defaults() Params {
	if p.P == 0 && p.Q == 0 {
		p.P = 1
		p.Q = 0
	}
	return p
}

func (p Params) validate() error {
	if p.NumSources <= 0 {
		return fmt.Errorf("%w: NumSources must be positive", ErrInvalidParameter)
	}
	if p.AlphaBins <= 0 || p.DeltaBins <= 0 {
		return fmt.Errorf("%w: histogram bin counts must be positive", ErrInvalidParameter)
	}
	if p.AlphaMin >= p.AlphaMax || p.DeltaMin >= p.DeltaMax {
		return fmt.Errorf("%w: alpha/delta ranges must be non-empty", ErrInvalidParameter)
	}
	return p.STFT.Validate()
}

// Result holds the per-source time-domain estimates, their (alpha, delta)
// estimates, and the histogram used to find them.
type Result struct {
	Sources     []*pcm.Buffer
	Estimates   [][2]float64 // [source][alpha,delta]
	Histogram   [][]float64
	AlphaEdges  []float64
	DeltaEdges  []float64
}

// Separate runs the DUET algorithm on a two-channel mixture.
func Separate(mix *pcm.Buffer, p Params) (*Result, error) {
	p = p.Defaults()
	if err := p.validate(); err != nil {
		return nil, err
	}
	if mix.NumChannels() != 2 {
		return nil, fmt.Errorf("%w: got %d channels", ErrInvalidChannelCount, mix.NumChannels())
	}

	ch1, _ := mix.Channel(1)
	ch2, _ := mix.Channel(2)
	sr := mix.SampleRate()

	spec1, err := stft.Forward(ch1, sr, p.STFT)
	if err != nil {
		return nil, err
	}
	spec2, err := stft.Forward(ch2, sr, p.STFT)
	if err != nil {
		return nil, err
	}

	// Drop the DC bin from both spectrograms and the frequency vector.
	fullBins := spec1.Bins()
	frames := spec1.Frames()
	f := spec1.Bins() - 1

	X1 := spec1.Data[1:fullBins]
	X2 := spec2.Data[1:fullBins]
	omega := make([]float64, f)
	for k := 0; k < f; k++ {
		omega[k] = 2 * math.Pi * spec1.Freqs[k+1] / float64(sr)
	}

	alpha := make([][]float64, f)
	delta := make([][]float64, f)
	weight := make([][]float64, f)
	for k := 0; k < f; k++ {
		alpha[k] = make([]float64, frames)
		delta[k] = make([]float64, frames)
		weight[k] = make([]float64, frames)
		for t := 0; t < frames; t++ {
			x1 := X1[k][t] + complex(epsilon, 0)
			x2 := X2[k][t] + complex(epsilon, 0)
			ratio := x2 / x1
			a := cmplx.Abs(ratio)
			alpha[k][t] = a - 1/a
			delta[k][t] = -cmplx.Phase(ratio) / omega[k]
			weight[k][t] = math.Pow(cmplx.Abs(X1[k][t])*cmplx.Abs(X2[k][t]), p.P) * math.Pow(math.Abs(omega[k]), p.Q)
		}
	}

	hist, alphaEdges, deltaEdges := buildHistogram(alpha, delta, weight, p)
	hist = normalizeMax(hist)
	hist = smoothing.Convolve2D(hist, smoothing.Box(3))
	hist = normalizeMax(hist)

	pts, err := peaks.Find2D(hist, p.Threshold, p.AlphaMinDist, p.DeltaMinDist, p.NumSources)
	if err != nil {
		return nil, err
	}

	alphaPeak := make([]float64, p.NumSources)
	deltaPeak := make([]float64, p.NumSources)
	atnPeak := make([]float64, p.NumSources)
	estimates := make([][2]float64, p.NumSources)
	for i, pt := range pts {
		a := alphaEdges[pt.Row]
		d := deltaEdges[pt.Col]
		alphaPeak[i] = a
		deltaPeak[i] = d
		atnPeak[i] = (a + math.Sqrt(a*a+4)) / 2
		estimates[i] = [2]float64{a, d}
	}

	bestIdx := make([][]int, f)
	bestScore := make([][]float64, f)
	for k := 0; k < f; k++ {
		bestIdx[k] = make([]int, frames)
		bestScore[k] = make([]float64, frames)
		for t := 0; t < frames; t++ {
			bestScore[k][t] = math.Inf(1)
		}
	}
	for i := 0; i < p.NumSources; i++ {
		a := atnPeak[i]
		d := deltaPeak[i]
		denom := 1 + a*a
		for k := 0; k < f; k++ {
			rot := cmplx.Exp(complex(0, -omega[k]*d))
			for t := 0; t < frames; t++ {
				diff := complex(a, 0)*rot*X1[k][t] - X2[k][t]
				score := cmplx.Abs(diff) * cmplx.Abs(diff) / denom
				if score < bestScore[k][t] {
					bestScore[k][t] = score
					bestIdx[k][t] = i
				}
			}
		}
	}

	sources := make([]*pcm.Buffer, p.NumSources)
	for i := 0; i < p.NumSources; i++ {
		data := make([][]complex128, fullBins)
		data[0] = make([]complex128, frames) // DC row stays zero
		a := atnPeak[i]
		d := deltaPeak[i]
		denom := 1 + a*a
		for k := 0; k < f; k++ {
			data[k+1] = make([]complex128, frames)
			rot := cmplx.Exp(complex(0, omega[k]*d))
			for t := 0; t < frames; t++ {
				if bestIdx[k][t] != i {
					continue
				}
				combined := (X1[k][t] + complex(a, 0)*rot*X2[k][t]) / complex(denom, 0)
				data[k+1][t] = combined
			}
		}

		recSpec := &stft.Spectrogram{
			Data:       data,
			Freqs:      spec1.Freqs,
			Times:      spec1.Times,
			Params:     spec1.Params,
			NFFT:       spec1.NFFT,
			SampleRate: sr,
			SignalLen:  spec1.SignalLen,
		}
		rec, _, err := stft.Inverse(recSpec)
		if err != nil {
			return nil, err
		}
		n := mix.NumSamples()
		if len(rec) > n {
			rec = rec[:n]
		} else if len(rec) < n {
			padded := make([]float64, n)
			copy(padded, rec)
			rec = padded
		}
		sources[i] = pcm.Mono(rec, sr)
	}

	return &Result{
		Sources:    sources,
		Estimates:  estimates,
		Histogram:  hist,
		AlphaEdges: alphaEdges,
		DeltaEdges: deltaEdges,
	}, nil
}

// buildHistogram accumulates the weighted (alpha, delta) histogram over
// uniform bin edges, masking off points outside [AlphaMin,AlphaMax] x
// [DeltaMin,DeltaMax], matching DUET.py's strict a_min<alpha<a_max mask.
func buildHistogram(alpha, delta, weight [][]float64, p Params) (hist [][]float64, alphaEdges, deltaEdges []float64) {
	hist = make([][]float64, p.AlphaBins)
	for i := range hist {
		hist[i] = make([]float64, p.DeltaBins)
	}

	alphaEdges = linspace(p.AlphaMin, p.AlphaMax, p.AlphaBins+1)
	deltaEdges = linspace(p.DeltaMin, p.DeltaMax, p.DeltaBins+1)
	alphaWidth := (p.AlphaMax - p.AlphaMin) / float64(p.AlphaBins)
	deltaWidth := (p.DeltaMax - p.DeltaMin) / float64(p.DeltaBins)

	for k := range alpha {
		for t := range alpha[k] {
			a := alpha[k][t]
			d := delta[k][t]
			if !(p.AlphaMin < a && a < p.AlphaMax) {
				continue
			}
			if !(p.DeltaMin < d && d < p.DeltaMax) {
				continue
			}
			ai := int((a - p.AlphaMin) / alphaWidth)
			if ai >= p.AlphaBins {
				ai = p.AlphaBins - 1
			}
			di := int((d - p.DeltaMin) / deltaWidth)
			if di >= p.DeltaBins {
				di = p.DeltaBins - 1
			}
			hist[ai][di] += weight[k][t]
		}
	}
	return hist, alphaEdges, deltaEdges
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	return out
}

func normalizeMax(m [][]float64) [][]float64 {
	max := 0.0
	for _, row := range m {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	if max == 0 {
		return m
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = v / max
		}
	}
	return out
}
