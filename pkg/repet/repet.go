// Package repet implements the REPET-original (periodic) and REPET-SIM
// (similarity) repeating-background separators from spec.md §4.E,
// grounded on original_source/Repet.py: a shared front end (per-channel
// STFT, magnitude, channel mean), a beat spectrum / similarity matrix,
// and a median-filtered soft repeating mask with a high-pass-forced
// foreground band.
package repet

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"audiosep/pkg/peaks"
	"audiosep/pkg/pcm"
	"audiosep/pkg/stft"
)

// Variant selects REPET-original (periodic) or REPET-SIM (similarity).
type Variant int

const (
	Original Variant = iota
	SIM
)

// ErrInvalidParameter reports a malformed configuration.
var ErrInvalidParameter = errors.New("repet: invalid parameter")

// epsilon guards mask ratios against division by zero, per spec.md §6.
const epsilon = 1e-16

// Params configures a REPET run. Only the fields relevant to Variant need
// to be set: MinPeriodFrames/MaxPeriodFrames for Original,
// SimilarityThreshold/MinDistanceFrames/MaxRepeatingFrames for SIM.
type Params struct {
	Variant Variant
	STFT    stft.Params

	HighPassCutoffHz float64 // default 100 Hz, per Repet.py

	MinPeriodFrames, MaxPeriodFrames int

	SimilarityThreshold float64
	MinDistanceFrames   int
	MaxRepeatingFrames  int
}

func (p Params) withDefaults() Params {
	if p.HighPassCutoffHz == 0 {
		p.HighPassCutoffHz = 100
	}
	return p
}

// Result holds the separated background/foreground and the intermediate
// feature the variant computed (period in frames for Original, the
// per-frame similar-frame index sets for SIM).
type Result struct {
	Background *pcm.Buffer
	Foreground *pcm.Buffer

	Period            int          // Original only
	BeatSpectrum      []float64    // Original only
	SimilarityIndices [][]int      // SIM only
	SimilarityMatrix  [][]float64  // SIM only
}

// Separate runs REPET on a (possibly multi-channel) mixture.
func Separate(mix *pcm.Buffer, p Params) (*Result, error) {
	p = p.withDefaults()
	if err := p.STFT.Validate(); err != nil {
		return nil, err
	}

	channels := mix.NumChannels()
	sr := mix.SampleRate()

	specs := make([]*stft.Spectrogram, channels)
	magnitude := make([][][]float64, channels) // [channel][bin][frame]
	for c := 0; c < channels; c++ {
		x, _ := mix.Channel(c + 1)
		s, err := stft.Forward(x, sr, p.STFT)
		if err != nil {
			return nil, err
		}
		specs[c] = s
		magnitude[c] = s.Magnitude()
	}

	bins := specs[0].Bins()
	frames := specs[0].Frames()
	vbar := channelMean(magnitude, bins, frames)

	result := &Result{}

	var similarFrames [][]int
	var period int
	if p.Variant == SIM {
		if p.MaxRepeatingFrames <= 0 {
			return nil, fmt.Errorf("%w: MaxRepeatingFrames must be positive", ErrInvalidParameter)
		}
		S := similarityMatrix(vbar)
		similarFrames = make([][]int, frames)
		for t := 0; t < frames; t++ {
			idx, err := peaks.Find1D(S[t], p.SimilarityThreshold, p.MinDistanceFrames, p.MaxRepeatingFrames)
			if err != nil {
				return nil, err
			}
			similarFrames[t] = idx
		}
		result.SimilarityIndices = similarFrames
		result.SimilarityMatrix = S
	} else {
		power := make([][]float64, bins)
		for k := 0; k < bins; k++ {
			power[k] = make([]float64, frames)
			for t := 0; t < frames; t++ {
				power[k][t] = vbar[k][t] * vbar[k][t]
			}
		}
		beat := beatSpectrum(power)
		per, err := findRepeatingPeriod(beat, p.MinPeriodFrames, p.MaxPeriodFrames)
		if err != nil {
			return nil, err
		}
		period = per
		result.Period = period
		result.BeatSpectrum = beat
	}

	nfft := specs[0].NFFT
	cutoffBin := int(math.Ceil(p.HighPassCutoffHz * float64(nfft-1) / float64(sr)))

	bgChannels := make([][]float64, channels)
	n := mix.NumSamples()
	for c := 0; c < channels; c++ {
		var rep [][]float64
		if p.Variant == SIM {
			rep = repeatingMaskSIM(magnitude[c], similarFrames)
		} else {
			rep = repeatingMaskOriginal(magnitude[c], period)
		}

		mask := make([][]float64, bins)
		for k := 0; k < bins; k++ {
			mask[k] = make([]float64, frames)
			for t := 0; t < frames; t++ {
				v := magnitude[c][k][t]
				m := rep[k][t]
				if m > v {
					m = v
				}
				mask[k][t] = (m + epsilon) / (v + epsilon)
			}
		}
		for k := 1; k < cutoffBin && k < bins; k++ {
			for t := 0; t < frames; t++ {
				mask[k][t] = 1
			}
		}

		data := make([][]complex128, bins)
		for k := 0; k < bins; k++ {
			data[k] = make([]complex128, frames)
			for t := 0; t < frames; t++ {
				data[k][t] = complex(mask[k][t], 0) * specs[c].Data[k][t]
			}
		}
		recSpec := &stft.Spectrogram{
			Data:       data,
			Freqs:      specs[c].Freqs,
			Times:      specs[c].Times,
			Params:     specs[c].Params,
			NFFT:       specs[c].NFFT,
			SampleRate: sr,
			SignalLen:  specs[c].SignalLen,
		}
		rec, _, err := stft.Inverse(recSpec)
		if err != nil {
			return nil, err
		}
		if len(rec) > n {
			rec = rec[:n]
		} else if len(rec) < n {
			padded := make([]float64, n)
			copy(padded, rec)
			rec = padded
		}
		bgChannels[c] = rec
	}

	background := pcm.New(bgChannels, sr)
	foreground, err := mix.Sub(background)
	if err != nil {
		return nil, err
	}

	result.Background = background
	result.Foreground = foreground
	return result, nil
}

func channelMean(magnitude [][][]float64, bins, frames int) [][]float64 {
	c := len(magnitude)
	out := make([][]float64, bins)
	for k := 0; k < bins; k++ {
		out[k] = make([]float64, frames)
		for t := 0; t < frames; t++ {
			var sum float64
			for ch := 0; ch < c; ch++ {
				sum += magnitude[ch][k][t]
			}
			out[k][t] = sum / float64(c)
		}
	}
	return out
}

// similarityMatrix computes the cosine-similarity matrix of V's columns
// (frames), via gonum/mat: normalize each column to unit L2 norm, then
// S = V_normalizedᵀ * V_normalized.
func similarityMatrix(v [][]float64) [][]float64 {
	bins := len(v)
	frames := len(v[0])

	data := make([]float64, bins*frames)
	for k := 0; k < bins; k++ {
		for t := 0; t < frames; t++ {
			data[k*frames+t] = v[k][t]
		}
	}
	m := mat.NewDense(bins, frames, data)

	for t := 0; t < frames; t++ {
		col := mat.Col(nil, t, m)
		norm := 0.0
		for _, x := range col {
			norm += x * x
		}
		norm = math.Sqrt(norm) + epsilon
		for k := 0; k < bins; k++ {
			m.Set(k, t, m.At(k, t)/norm)
		}
	}

	var s mat.Dense
	s.Mul(m.T(), m)

	out := make([][]float64, frames)
	for i := 0; i < frames; i++ {
		out[i] = make([]float64, frames)
		for j := 0; j < frames; j++ {
			out[i][j] = s.At(i, j)
		}
	}
	return out
}

// repeatingMaskSIM builds the repeating-pattern estimate for one channel's
// magnitude spectrogram V, using each frame's similar-frame index set I.
func repeatingMaskSIM(v [][]float64, similar [][]int) [][]float64 {
	bins := len(v)
	frames := len(v[0])
	out := make([][]float64, bins)
	for k := range out {
		out[k] = make([]float64, frames)
	}

	col := make([]float64, 0, len(similar[0]))
	for t := 0; t < frames; t++ {
		for k := 0; k < bins; k++ {
			col = col[:0]
			for _, idx := range similar[t] {
				col = append(col, v[k][idx])
			}
			out[k][t] = median(col)
		}
	}
	return out
}

// repeatingMaskOriginal builds the repeating-pattern estimate for one
// channel's magnitude spectrogram V, periodic with period p frames.
//
// Equivalent to Repet.py's ComputeRepeatingMaskBeat: V is split into
// r = ceil(Lt/p) period-length blocks (the last zero-padded with NaN in
// the reference implementation), and each phase j in [0,p) is
// median-filtered across blocks — all r blocks when the last block has a
// real frame at that phase, only the first r-1 otherwise — then tiled
// back across time. Tiling a value that's constant per (phase, freq) pair
// across blocks is exactly what the reference's reshape/tile dance
// produces, so it's computed directly here instead of replaying the
// reshape.
func repeatingMaskOriginal(v [][]float64, p int) [][]float64 {
	bins := len(v)
	frames := len(v[0])
	if p <= 0 || p > frames {
		p = frames
	}
	r := (frames + p - 1) / p
	validInLastBlock := frames - (r-1)*p

	medByPhase := make([][]float64, p)
	vals := make([]float64, 0, r)
	for j := 0; j < p; j++ {
		rowsToUse := r - 1
		if j < validInLastBlock {
			rowsToUse = r
		}
		medByPhase[j] = make([]float64, bins)
		if rowsToUse <= 0 {
			continue
		}
		for k := 0; k < bins; k++ {
			vals = vals[:0]
			for block := 0; block < rowsToUse; block++ {
				vals = append(vals, v[k][block*p+j])
			}
			medByPhase[j][k] = median(vals)
		}
	}

	out := make([][]float64, bins)
	for k := range out {
		out[k] = make([]float64, frames)
	}
	for t := 0; t < frames; t++ {
		j := t % p
		for k := 0; k < bins; k++ {
			out[k][t] = medByPhase[j][k]
		}
	}
	return out
}

// median returns the middle element of a sorted copy of x, or the average
// of the two middle elements for an even count, matching numpy's default
// np.median.
func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// beatSpectrum computes the per-lag average of row-wise autocorrelations
// of a power spectrogram X (bins x frames), via FFT-based autocorrelation
// zero-padded to 2*frames, matching Repet.py's ComputeBeatSpectrum.
func beatSpectrum(x [][]float64) []float64 {
	bins := len(x)
	frames := len(x[0])
	n := 2 * frames
	fft := fourier.NewFFT(n)

	sums := make([]float64, frames)
	row := make([]float64, n)
	for k := 0; k < bins; k++ {
		for i := range row {
			row[i] = 0
		}
		copy(row, x[k])

		coeffs := fft.Coefficients(nil, row)
		power := make([]float64, len(coeffs))
		for i, c := range coeffs {
			re, im := real(c), imag(c)
			power[i] = re*re + im*im
		}
		auto := fft.Sequence(nil, toComplex(power))
		for t := 0; t < frames; t++ {
			sums[t] += auto[t]
		}
	}

	b := make([]float64, frames)
	for t := 0; t < frames; t++ {
		norm := float64(frames - t)
		b[t] = sums[t] / norm / float64(bins)
	}
	return b
}

func toComplex(x []float64) []complex128 {
	out := make([]complex128, len(x))
	for i, v := range x {
		out[i] = complex(v, 0)
	}
	return out
}

// findRepeatingPeriod returns argmax(beat[min-1:max]) + min, discarding
// lag 0, matching Repet.py's FindRepeatingPeriod.
func findRepeatingPeriod(beat []float64, min, max int) (int, error) {
	if min <= 0 || max < min || max >= len(beat) {
		return 0, fmt.Errorf("%w: period search range [%d,%d] invalid for beat spectrum of length %d", ErrInvalidParameter, min, max, len(beat))
	}
	rest := beat[1:]
	window := rest[min-1 : max]
	bestIdx := 0
	bestVal := window[0]
	for i := 1; i < len(window); i++ {
		if window[i] > bestVal {
			bestVal = window[i]
			bestIdx = i
		}
	}
	return bestIdx + min, nil
}
