package stft

import (
	"math"
	"math/rand"
	"testing"

	"audiosep/pkg/window"
)

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, l := range []int{256, 1024, 2048} {
		for _, wt := range []window.Type{window.Hamming, window.Hanning} {
			l, wt := l, wt
			t.Run(wt.String(), func(t *testing.T) {
				n := 2*l + 37
				x := make([]float64, n)
				for i := range x {
					x[i] = r.Float64()*2 - 1
				}

				p := Params{L: l, H: l / 2, Window: wt, N: l}
				spec, err := Forward(x, 44100, p)
				if err != nil {
					t.Fatalf("Forward: %v", err)
				}

				recovered, _, err := Inverse(spec)
				if err != nil {
					t.Fatalf("Inverse: %v", err)
				}
				if len(recovered) < n {
					t.Fatalf("recovered signal too short: %d < %d", len(recovered), n)
				}

				diff := make([]float64, n)
				for i := 0; i < n; i++ {
					diff[i] = recovered[i] - x[i]
				}
				rel := rms(diff) / rms(x)
				if rel > 1e-5 {
					t.Fatalf("round trip RMS error too large: %e", rel)
				}
			})
		}
	}
}

func TestShape(t *testing.T) {
	x := make([]float64, 5000)
	p := Params{L: 1024, H: 512, Window: window.Hanning, N: 1024}
	spec, err := Forward(x, 44100, p)
	if err != nil {
		t.Fatal(err)
	}

	wantFrames := (5000-1024+511)/512 + 1
	if spec.Frames() != wantFrames {
		t.Fatalf("frames = %d, want %d", spec.Frames(), wantFrames)
	}
	wantBins := 1024/2 + 1
	if spec.Bins() != wantBins {
		t.Fatalf("bins = %d, want %d", spec.Bins(), wantBins)
	}
}

func TestInvalidParams(t *testing.T) {
	cases := []Params{
		{L: 0, H: 1, Window: window.Hamming, N: 4},
		{L: 4, H: 0, Window: window.Hamming, N: 4},
		{L: 4, H: 8, Window: window.Hamming, N: 4},
		{L: 8, H: 4, Window: window.Hamming, N: 4},
	}
	for _, p := range cases {
		if _, err := Forward([]float64{1, 2, 3}, 44100, p); err == nil {
			t.Errorf("Forward(%+v) expected error, got nil", p)
		}
	}
}

func TestInverseWithoutForward(t *testing.T) {
	if _, _, err := Inverse(&Spectrogram{}); err == nil {
		t.Fatal("expected ErrInvalidStftState")
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		if got := nextPow2(in); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
