// Package smoothing implements the small 2-D box/kernel convolution used
// to denoise the DUET histogram, grounded on original_source/DUET.py's
// twoDsmooth: edge-replicated padding, odd-kernel normalization, then a
// valid-mode convolution that returns the input's original shape.
package smoothing

// Box returns a k x k averaging kernel (all entries 1/k^2).
func Box(k int) [][]float64 {
	if k <= 0 {
		panic("smoothing: kernel size must be positive")
	}
	kernel := make([][]float64, k)
	v := 1.0 / float64(k*k)
	for i := range kernel {
		kernel[i] = make([]float64, k)
		for j := range kernel[i] {
			kernel[i][j] = v
		}
	}
	return kernel
}

// Convolve2D smooths m with kernel, replicate-padding the edges by
// floor(k/2) and convolving in "valid" mode so the result has m's original
// shape. If kernel has an even dimension, it's first convolved with
// [1;1]/2 (or [1,1]/2) along that axis to make it odd, matching
// twoDsmooth's handling of even-sized kernels.
func Convolve2D(m [][]float64, kernel [][]float64) [][]float64 {
	kernel = oddify(kernel)
	kr := len(kernel)
	kc := len(kernel[0])
	padR := kr / 2
	padC := kc / 2

	padded := replicatePad(m, padR, padC)

	rows := len(m)
	cols := len(m[0])
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			var sum float64
			for kr_ := 0; kr_ < kr; kr_++ {
				for kc_ := 0; kc_ < kc; kc_++ {
					sum += padded[r+kr_][c+kc_] * kernel[kr-1-kr_][kc-1-kc_]
				}
			}
			out[r][c] = sum
		}
	}
	return out
}

// oddify convolves an even kernel dimension with [1;1]/2 to make it odd,
// mirroring twoDsmooth's signal.convolve2d(Kmat, ones((2,1)))/2 step.
func oddify(kernel [][]float64) [][]float64 {
	kr := len(kernel)
	kc := len(kernel[0])

	if kr%2 == 0 {
		grown := make([][]float64, kr+1)
		for i := range grown {
			grown[i] = make([]float64, kc)
		}
		for i := 0; i < kr; i++ {
			for j := 0; j < kc; j++ {
				grown[i][j] += kernel[i][j] / 2
				grown[i+1][j] += kernel[i][j] / 2
			}
		}
		kernel = grown
		kr++
	}
	if kc%2 == 0 {
		grown := make([][]float64, kr)
		for i := range grown {
			grown[i] = make([]float64, kc+1)
		}
		for i := 0; i < kr; i++ {
			for j := 0; j < kc; j++ {
				grown[i][j] += kernel[i][j] / 2
				grown[i][j+1] += kernel[i][j] / 2
			}
		}
		kernel = grown
	}
	return kernel
}

// replicatePad pads m by padR rows on top/bottom and padC columns on
// left/right, replicating the nearest edge value (including corners).
func replicatePad(m [][]float64, padR, padC int) [][]float64 {
	rows := len(m)
	cols := len(m[0])
	out := make([][]float64, rows+2*padR)
	for i := range out {
		out[i] = make([]float64, cols+2*padC)
	}
	for i := 0; i < rows+2*padR; i++ {
		srcR := i - padR
		if srcR < 0 {
			srcR = 0
		} else if srcR >= rows {
			srcR = rows - 1
		}
		for j := 0; j < cols+2*padC; j++ {
			srcC := j - padC
			if srcC < 0 {
				srcC = 0
			} else if srcC >= cols {
				srcC = cols - 1
			}
			out[i][j] = m[srcR][srcC]
		}
	}
	return out
}
