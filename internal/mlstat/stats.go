// Package mlstat provides the statistical primitives behind the threat
// detectors: distributional divergence measures, sample moment estimation,
// and Mahalanobis distance. Everything here is pure computation with no
// shared state — detectors own the data they pass in.
package mlstat

import (
	"math"
	"sort"
)

// KolmogorovSmirnovD computes the two-sample Kolmogorov–Smirnov statistic:
// the maximum absolute gap between the empirical CDFs of a and b.
// Returns 0 for empty inputs — callers must guard the no-data case in
// detector logic rather than treating 0 as a meaningful score.
func KolmogorovSmirnovD(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	sa := append([]float64(nil), a...)
	sb := append([]float64(nil), b...)
	sort.Float64s(sa)
	sort.Float64s(sb)

	na := float64(len(sa))
	nb := float64(len(sb))

	var maxGap float64
	i, j := 0, 0
	for i < len(sa) && j < len(sb) {
		va, vb := sa[i], sb[j]
		if va <= vb {
			i++
		}
		if vb <= va {
			j++
		}
		gap := math.Abs(float64(i)/na - float64(j)/nb)
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

// JensenShannonDivergence computes the Jensen–Shannon divergence between the
// histograms of a and b, binned over their shared value range and normalized
// by ln 2 so results fall in [0,1]. A degenerate range (max == min) or empty
// sample yields 0.
func JensenShannonDivergence(a, b []float64, bins int) float64 {
	if len(a) == 0 || len(b) == 0 || bins <= 0 {
		return 0
	}

	lo, hi := a[0], a[0]
	for _, v := range a {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for _, v := range b {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 0
	}

	p := histogram(a, lo, hi, bins)
	q := histogram(b, lo, hi, bins)

	var div float64
	for i := 0; i < bins; i++ {
		m := (p[i] + q[i]) / 2
		if p[i] > 0 && m > 0 {
			div += 0.5 * p[i] * math.Log(p[i]/m)
		}
		if q[i] > 0 && m > 0 {
			div += 0.5 * q[i] * math.Log(q[i]/m)
		}
	}
	return div / math.Ln2
}

// histogram builds a normalized histogram of sample over [lo, hi] with the
// given number of bins. Values exactly at hi land in the last bin.
func histogram(sample []float64, lo, hi float64, bins int) []float64 {
	h := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range sample {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h[idx]++
	}
	n := float64(len(sample))
	for i := range h {
		h[i] /= n
	}
	return h
}

// Mean computes the per-column sample mean of a feature matrix.
// Returns nil for an empty matrix.
func Mean(matrix [][]float64) []float64 {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil
	}
	cols := len(matrix[0])
	mean := make([]float64, cols)
	for _, row := range matrix {
		for j := 0; j < cols && j < len(row); j++ {
			mean[j] += row[j]
		}
	}
	n := float64(len(matrix))
	for j := range mean {
		mean[j] /= n
	}
	return mean
}

// Covariance computes the unbiased sample covariance matrix of a feature
// matrix (n−1 denominator, floored at 1). Returns nil for an empty matrix.
func Covariance(matrix [][]float64) [][]float64 {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil
	}
	mean := Mean(matrix)
	cols := len(mean)
	denom := float64(len(matrix) - 1)
	if denom < 1 {
		denom = 1
	}

	cov := make([][]float64, cols)
	for i := range cov {
		cov[i] = make([]float64, cols)
	}
	for _, row := range matrix {
		for i := 0; i < cols && i < len(row); i++ {
			di := row[i] - mean[i]
			for j := 0; j < cols && j < len(row); j++ {
				cov[i][j] += di * (row[j] - mean[j])
			}
		}
	}
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] /= denom
		}
	}
	return cov
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0 if either vector has zero magnitude or lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ColumnVariances computes the population variance of each column of a
// feature matrix. Returns nil for an empty matrix.
func ColumnVariances(matrix [][]float64) []float64 {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil
	}
	mean := Mean(matrix)
	vars := make([]float64, len(mean))
	for _, row := range matrix {
		for j := 0; j < len(mean) && j < len(row); j++ {
			d := row[j] - mean[j]
			vars[j] += d * d
		}
	}
	n := float64(len(matrix))
	for j := range vars {
		vars[j] /= n
	}
	return vars
}
