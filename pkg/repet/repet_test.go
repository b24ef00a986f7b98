package repet

import (
	"math"
	"testing"

	"audiosep/pkg/pcm"
	"audiosep/pkg/stft"
	"audiosep/pkg/window"
)

func sineMix(sr, n int, period int) (mono []float64) {
	mono = make([]float64, n)
	beat := make([]float64, period)
	for i := range beat {
		beat[i] = math.Sin(2*math.Pi*220*float64(i)/float64(sr)) * 0.5
	}
	for i := 0; i < n; i++ {
		mono[i] = beat[i%period] + 0.2*math.Sin(2*math.Pi*3000*float64(i)/float64(sr))
	}
	return mono
}

func TestSeparateOriginalReconstructsMixture(t *testing.T) {
	sr := 4000
	n := sr * 2
	samples := sineMix(sr, n, 200)
	mix := pcm.New([][]float64{samples}, sr)

	p := Params{
		Variant:          Original,
		STFT:             stft.Params{L: 512, H: 256, Window: window.Hamming, N: 512},
		MinPeriodFrames:  2,
		MaxPeriodFrames:  30,
		HighPassCutoffHz: 100,
	}
	res, err := Separate(mix, p)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if res.Background.NumSamples() != n {
		t.Fatalf("background length %d, want %d", res.Background.NumSamples(), n)
	}
	if res.Period <= 0 {
		t.Fatalf("expected a positive period estimate, got %d", res.Period)
	}

	bg, _ := res.Background.Channel(1)
	fg, _ := res.Foreground.Channel(1)
	var sumSq float64
	for i := 0; i < n; i++ {
		diff := (bg[i] + fg[i]) - samples[i]
		sumSq += diff * diff
	}
	rms := math.Sqrt(sumSq / float64(n))
	if rms > 1e-6 {
		t.Fatalf("background+foreground should reconstruct the mixture, rms error = %v", rms)
	}
}

func TestSeparateSIMReconstructsMixture(t *testing.T) {
	sr := 4000
	n := sr * 2
	samples := sineMix(sr, n, 200)
	mix := pcm.New([][]float64{samples}, sr)

	p := Params{
		Variant:             SIM,
		STFT:                stft.Params{L: 512, H: 256, Window: window.Hamming, N: 512},
		SimilarityThreshold: 0,
		MinDistanceFrames:   1,
		MaxRepeatingFrames:  4,
		HighPassCutoffHz:    100,
	}
	res, err := Separate(mix, p)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if res.Background.NumSamples() != n {
		t.Fatalf("background length %d, want %d", res.Background.NumSamples(), n)
	}
	if len(res.SimilarityIndices) == 0 {
		t.Fatalf("expected per-frame similarity index sets")
	}
	for i, idx := range res.SimilarityIndices {
		if len(idx) != p.MaxRepeatingFrames {
			t.Fatalf("frame %d: expected %d similar frames, got %d", i, p.MaxRepeatingFrames, len(idx))
		}
	}

	bg, _ := res.Background.Channel(1)
	fg, _ := res.Foreground.Channel(1)
	var sumSq float64
	for i := 0; i < n; i++ {
		diff := (bg[i] + fg[i]) - samples[i]
		sumSq += diff * diff
	}
	rms := math.Sqrt(sumSq / float64(n))
	if rms > 1e-6 {
		t.Fatalf("background+foreground should reconstruct the mixture, rms error = %v", rms)
	}
}

func TestFindRepeatingPeriod(t *testing.T) {
	beat := []float64{100, 1, 1, 5, 1, 9, 1, 1}
	period, err := findRepeatingPeriod(beat, 1, len(beat)-1)
	if err != nil {
		t.Fatalf("findRepeatingPeriod: %v", err)
	}
	if period != 5 {
		t.Fatalf("expected argmax lag 5, got %d", period)
	}
}

func TestFindRepeatingPeriodInvalidRange(t *testing.T) {
	beat := []float64{1, 2, 3}
	if _, err := findRepeatingPeriod(beat, 5, 10); err == nil {
		t.Fatalf("expected error for out-of-range period search")
	}
}

func TestRepeatingMaskOriginalPeriodic(t *testing.T) {
	// A 1-bin, 6-frame signal with period 2: values alternate 10, 0.
	v := [][]float64{{10, 0, 10, 0, 10, 0}}
	out := repeatingMaskOriginal(v, 2)
	for t_, want := range []float64{10, 0, 10, 0, 10, 0} {
		if out[0][t_] != want {
			t.Fatalf("frame %d: got %v, want %v", t_, out[0][t_], want)
		}
	}
}

func TestMedianMatchesEvenAndOdd(t *testing.T) {
	if got := median([]float64{1, 2, 3}); got != 2 {
		t.Fatalf("median of 3 odd values = %v, want 2", got)
	}
	if got := median([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Fatalf("median of 4 even values = %v, want 2.5", got)
	}
}
