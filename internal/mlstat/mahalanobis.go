package mlstat

import (
	"fmt"
	"math"
)

// regularization added to the covariance diagonal before inversion so
// near-singular matrices (collinear features, tiny samples) stay invertible.
const covRegularization = 1e-6

// MahalanobisDistance computes sqrt((x-mean)ᵀ · cov⁻¹ · (x-mean)), the
// covariance-aware distance of x from a reference distribution. The quadratic
// form is clamped at 0 before the square root to absorb floating-point error.
func MahalanobisDistance(x, mean []float64, cov [][]float64) (float64, error) {
	n := len(x)
	if n == 0 || len(mean) != n {
		return 0, fmt.Errorf("dimension mismatch: input %d, mean %d", n, len(mean))
	}
	if len(cov) != n {
		return 0, fmt.Errorf("dimension mismatch: input %d, covariance %dx%d", n, len(cov), len(cov))
	}

	reg := make([][]float64, n)
	for i := range cov {
		if len(cov[i]) != n {
			return 0, fmt.Errorf("covariance matrix is not square at row %d", i)
		}
		reg[i] = append([]float64(nil), cov[i]...)
		reg[i][i] += covRegularization
	}

	inv, err := invertMatrix(reg)
	if err != nil {
		return 0, fmt.Errorf("inverting covariance: %w", err)
	}

	diff := make([]float64, n)
	for i := range diff {
		diff[i] = x[i] - mean[i]
	}

	var quad float64
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < n; j++ {
			s += inv[i][j] * diff[j]
		}
		quad += diff[i] * s
	}
	if quad < 0 {
		quad = 0
	}
	return math.Sqrt(quad), nil
}

// invertMatrix inverts a square matrix using Gauss–Jordan elimination with
// partial pivoting. The input is destroyed.
func invertMatrix(m [][]float64) ([][]float64, error) {
	n := len(m)
	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
		inv[i][i] = 1
	}

	for col := 0; col < n; col++ {
		// Partial pivot: swap in the row with the largest absolute value
		// in this column.
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("matrix is singular at column %d", col)
		}
		m[col], m[pivot] = m[pivot], m[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		p := m[col][col]
		for j := 0; j < n; j++ {
			m[col][j] /= p
			inv[col][j] /= p
		}

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			f := m[row][col]
			if f == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				m[row][j] -= f * m[col][j]
				inv[row][j] -= f * inv[col][j]
			}
		}
	}
	return inv, nil
}
