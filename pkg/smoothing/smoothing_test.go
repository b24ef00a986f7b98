package smoothing

import "testing"

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestConvolve2DOneHot(t *testing.T) {
	m := make([][]float64, 5)
	for i := range m {
		m[i] = make([]float64, 5)
	}
	m[2][2] = 1

	out := Convolve2D(m, Box(3))

	max := 0.0
	for r := range out {
		for c := range out[r] {
			if out[r][c] > max {
				max = out[r][c]
			}
		}
	}
	if !approxEqual(max, 1.0/9.0, 1e-12) {
		t.Fatalf("expected max = 1/9, got %v", max)
	}

	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			inBlock := r >= 1 && r <= 3 && c >= 1 && c <= 3
			if inBlock {
				if !approxEqual(out[r][c], 1.0/9.0, 1e-12) {
					t.Fatalf("(%d,%d): expected 1/9, got %v", r, c, out[r][c])
				}
			} else if out[r][c] != 0 {
				t.Fatalf("(%d,%d): expected 0, got %v", r, c, out[r][c])
			}
		}
	}

	// Renormalize: divide by max, check the 3x3 block becomes all ones.
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			if v := out[r][c] / max; !approxEqual(v, 1.0, 1e-9) {
				t.Fatalf("renormalized (%d,%d) = %v, want 1", r, c, v)
			}
		}
	}
}

func TestConvolve2DShapePreserved(t *testing.T) {
	m := make([][]float64, 7)
	for i := range m {
		m[i] = make([]float64, 4)
		for j := range m[i] {
			m[i][j] = float64(i*4 + j)
		}
	}
	out := Convolve2D(m, Box(3))
	if len(out) != 7 || len(out[0]) != 4 {
		t.Fatalf("shape changed: got %dx%d, want 7x4", len(out), len(out[0]))
	}
}

func TestConvolve2DIdempotentOnConstant(t *testing.T) {
	m := make([][]float64, 6)
	for i := range m {
		m[i] = make([]float64, 6)
		for j := range m[i] {
			m[i][j] = 3.5
		}
	}
	out := Convolve2D(m, Box(3))
	for r := range out {
		for c := range out[r] {
			if !approxEqual(out[r][c], 3.5, 1e-9) {
				t.Fatalf("(%d,%d) = %v, want 3.5", r, c, out[r][c])
			}
		}
	}
}

func TestConvolve2DEvenKernel(t *testing.T) {
	m := make([][]float64, 5)
	for i := range m {
		m[i] = make([]float64, 5)
		for j := range m[i] {
			m[i][j] = 1
		}
	}
	kernel := [][]float64{{0.25, 0.25}, {0.25, 0.25}}
	out := Convolve2D(m, kernel)
	if len(out) != 5 || len(out[0]) != 5 {
		t.Fatalf("shape changed with even kernel: got %dx%d", len(out), len(out[0]))
	}
	for r := range out {
		for c := range out[r] {
			if !approxEqual(out[r][c], 1.0, 1e-9) {
				t.Fatalf("(%d,%d) = %v, want 1 on constant input", r, c, out[r][c])
			}
		}
	}
}
