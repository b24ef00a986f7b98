// Package peaks implements the greedy 1-D and 2-D peak finder from
// spec.md §4.C: threshold, argmax, rectangular suppression, repeat.
//
// Grounded on original_source/DUET.py's find_peaks / find_peaks2: mask
// below threshold, repeatedly take argmax, zero a neighborhood around the
// pick, stop at maxNum or when nothing is left above threshold.
package peaks

import "errors"

// ErrInsufficientPeaks reports fewer than maxNum candidates survived the
// threshold before suppression exhausted them.
var ErrInsufficientPeaks = errors.New("peaks: insufficient peaks above threshold")

// Find1D returns exactly maxNum indices of v, sorted ascending, using greedy
// argmax with suppression, or ErrInsufficientPeaks when fewer can be found.
// minDist defaults to len(v)/4 when <= 0.
func Find1D(v []float64, threshold float64, minDist, maxNum int) ([]int, error) {
	if minDist <= 0 {
		minDist = len(v) / 4
	}
	work := make([]float64, len(v))
	survivors := 0
	for i, x := range v {
		if x >= threshold {
			work[i] = x
			survivors++
		}
	}
	if survivors < maxNum {
		return nil, ErrInsufficientPeaks
	}

	result := make([]int, 0, maxNum)
	for len(result) < maxNum {
		idx := argmax1D(work)
		if work[idx] == 0 {
			break
		}
		result = append(result, idx)

		lo := idx - minDist
		if lo < 0 {
			lo = 0
		}
		hi := idx + minDist
		if hi >= len(work) {
			hi = len(work) - 1
		}
		for i := lo; i <= hi; i++ {
			work[i] = 0
		}
	}
	if len(result) < maxNum {
		return nil, ErrInsufficientPeaks
	}

	sortInts(result)
	return result, nil
}

// Point is a (row, col) index pair into a 2-D matrix.
type Point struct {
	Row, Col int
}

// Find2D returns exactly maxNum (row, col) peaks of M, in selection order,
// using greedy argmax with rectangular suppression, or ErrInsufficientPeaks
// when fewer can be found. minDistRow/minDistCol
// default to R/4 and C/4 respectively when <= 0.
func Find2D(m [][]float64, threshold float64, minDistRow, minDistCol, maxNum int) ([]Point, error) {
	rows := len(m)
	if rows == 0 {
		return nil, ErrInsufficientPeaks
	}
	cols := len(m[0])

	if minDistRow <= 0 {
		minDistRow = rows / 4
	}
	if minDistCol <= 0 {
		minDistCol = cols / 4
	}

	work := make([][]float64, rows)
	survivors := 0
	for r := range m {
		work[r] = make([]float64, cols)
		for c, x := range m[r] {
			if x >= threshold {
				work[r][c] = x
				survivors++
			}
		}
	}
	if survivors < maxNum {
		return nil, ErrInsufficientPeaks
	}

	result := make([]Point, 0, maxNum)
	for len(result) < maxNum {
		p, v := argmax2D(work)
		if v == 0 {
			break
		}
		result = append(result, p)

		rLo, rHi := clampRange(p.Row-minDistRow, p.Row+minDistRow, rows)
		cLo, cHi := clampRange(p.Col-minDistCol, p.Col+minDistCol, cols)
		for r := rLo; r <= rHi; r++ {
			for c := cLo; c <= cHi; c++ {
				work[r][c] = 0
			}
		}
	}
	if len(result) < maxNum {
		return nil, ErrInsufficientPeaks
	}
	return result, nil
}

func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	return lo, hi
}

// argmax1D returns the first (row-major, trivially left-to-right for a
// vector) index achieving the maximum value, per spec.md §4.C's tie-break.
func argmax1D(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// argmax2D returns the first row-major index achieving the maximum value.
func argmax2D(m [][]float64) (Point, float64) {
	best := Point{0, 0}
	bestVal := m[0][0]
	for r := range m {
		for c := range m[r] {
			if m[r][c] > bestVal {
				bestVal = m[r][c]
				best = Point{r, c}
			}
		}
	}
	return best, bestVal
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}
