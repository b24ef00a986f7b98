package window

import (
	"math"
	"testing"
)

func TestGenerateEndpoints(t *testing.T) {
	cases := []struct {
		t        Type
		endpoint float64
	}{
		{Hamming, 0.08},
		{Hanning, 0},
		{Blackman, 0},
		{Rectangular, 1},
	}
	for _, c := range cases {
		w := Generate(c.t, 16)
		if math.Abs(w[0]-c.endpoint) > 1e-9 {
			t.Fatalf("%v: w[0] = %v, want %v", c.t, w[0], c.endpoint)
		}
		if math.Abs(w[len(w)-1]-c.endpoint) > 1e-9 {
			t.Fatalf("%v: w[n-1] = %v, want %v", c.t, w[len(w)-1], c.endpoint)
		}
	}
}

func TestGenerateSingleSample(t *testing.T) {
	w := Generate(Hamming, 1)
	if len(w) != 1 || w[0] != 1 {
		t.Fatalf("Generate(_, 1) = %v, want [1]", w)
	}
}

func TestGeneratePanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for n<=0")
		}
	}()
	Generate(Hamming, 0)
}

func TestStringNames(t *testing.T) {
	if Hamming.String() != "hamming" {
		t.Fatalf("Hamming.String() = %q", Hamming.String())
	}
	if Type(99).String() == "" {
		t.Fatalf("unknown type should still stringify")
	}
}
