package dsp

import (
	"fmt"
	"math"
)

// SavGol is a Savitzky-Golay smoothing filter: each output sample is the
// value at the center of a least-squares polynomial fitted over a sliding
// window. Convolution coefficients are precomputed once; Apply is safe
// for concurrent use.
type SavGol struct {
	coeffs []float64
	half   int
}

// NewSavGol builds a filter for an odd window size and a polynomial
// order below the window size.
func NewSavGol(window, order int) (*SavGol, error) {
	if window < 3 || window%2 == 0 {
		return nil, fmt.Errorf("window must be odd and at least 3, got %d", window)
	}
	if order < 1 || order >= window {
		return nil, fmt.Errorf("order must be in [1, %d), got %d", window, order)
	}

	coeffs, err := savgolCoeffs(window, order)
	if err != nil {
		return nil, err
	}
	return &SavGol{coeffs: coeffs, half: window / 2}, nil
}

// Window returns the filter window size.
func (f *SavGol) Window() int {
	return 2*f.half + 1
}

// Apply smooths data into a new slice of the same length. Edges are
// mirror-extended so the window never runs out of samples. Input shorter
// than the window is returned as an unmodified copy.
func (f *SavGol) Apply(data []float64) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n < f.Window() {
		copy(out, data)
		return out
	}

	for i := 0; i < n; i++ {
		var acc float64
		for j := -f.half; j <= f.half; j++ {
			acc += f.coeffs[j+f.half] * data[reflect(i+j, n)]
		}
		out[i] = acc
	}
	return out
}

// reflect mirrors an out-of-range index back into [0, n).
func reflect(i, n int) int {
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - 2 - i
	}
	return i
}

// savgolCoeffs solves the least-squares normal equations for the window
// offsets -half..half: the smoothed center value is the fitted
// polynomial evaluated at zero, a linear combination of the window
// samples with these weights.
func savgolCoeffs(window, order int) ([]float64, error) {
	half := window / 2
	size := order + 1

	// Normal matrix M[k][l] = sum over j of j^(k+l).
	m := make([][]float64, size)
	for k := range m {
		m[k] = make([]float64, size)
		for l := range m[k] {
			var sum float64
			for j := -half; j <= half; j++ {
				sum += math.Pow(float64(j), float64(k+l))
			}
			m[k][l] = sum
		}
	}

	// Solve M b = e0; b holds the polynomial coefficients of the unit
	// response at the window center.
	b := make([]float64, size)
	b[0] = 1
	if err := solve(m, b); err != nil {
		return nil, err
	}

	coeffs := make([]float64, window)
	for j := -half; j <= half; j++ {
		var c float64
		for k := 0; k < size; k++ {
			c += b[k] * math.Pow(float64(j), float64(k))
		}
		coeffs[j+half] = c
	}
	return coeffs, nil
}

// solve performs in-place Gaussian elimination with partial pivoting on
// the small normal system.
func solve(m [][]float64, b []float64) error {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return fmt.Errorf("singular smoothing system at column %d", col)
		}
		m[col], m[pivot] = m[pivot], m[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k < n; k++ {
				m[row][k] -= factor * m[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	for col := n - 1; col >= 0; col-- {
		for k := col + 1; k < n; k++ {
			b[col] -= m[col][k] * b[k]
		}
		b[col] /= m[col][col]
	}
	return nil
}
