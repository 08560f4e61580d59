// Package poisoning scores a candidate training dataset against per-feature
// baseline samples to detect training-data poisoning: distributional shifts
// measured by Jensen–Shannon divergence and the Kolmogorov–Smirnov statistic,
// plus a coarse row-outlier sweep.
package poisoning

import (
	"math"
	"sort"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/mlsentinel-project/mlsentinel/internal/mlstat"
	"github.com/rs/zerolog"
)

// Detector compares feature columns against baseline reference samples.
// Stateless between calls; the caller owns baseline refresh cadence.
type Detector struct {
	cfg    core.PoisoningConfig
	logger zerolog.Logger
}

// New creates a poisoning detector.
func New(cfg core.PoisoningConfig, logger zerolog.Logger) *Detector {
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = 20
	}
	if cfg.OutlierZThreshold <= 0 {
		cfg.OutlierZThreshold = 2.0
	}
	return &Detector{
		cfg:    cfg,
		logger: logger.With().Str("component", "poisoning_detector").Logger(),
	}
}

// Detect scores dataset against baseline, a map from feature column index to
// that feature's reference sample. Columns without a baseline of more than
// one sample are skipped. An empty dataset yields a zero result — a
// poisoning signal cannot be computed from no data.
func (d *Detector) Detect(dataset [][]float64, baseline map[int][]float64) core.DetectionResult {
	if len(dataset) == 0 || len(dataset[0]) == 0 {
		return core.DetectionResult{Details: map[string]interface{}{"reason": "empty dataset"}}
	}

	cols := len(dataset[0])
	var sumJS, sumKS float64
	compared := 0

	for col := 0; col < cols; col++ {
		ref, ok := baseline[col]
		if !ok || len(ref) <= 1 {
			continue
		}
		column := columnOf(dataset, col)
		sumJS += mlstat.JensenShannonDivergence(column, ref, d.cfg.HistogramBins)
		sumKS += mlstat.KolmogorovSmirnovD(column, ref)
		compared++
	}

	var score float64
	if compared > 0 {
		avgJS := sumJS / float64(compared)
		avgKS := sumKS / float64(compared)
		score = math.Min(1, 0.5*avgJS+0.5*avgKS)
	}

	outliers := d.rowOutliers(dataset)

	confidence := 0.0
	if cols > 0 {
		confidence = float64(compared) / float64(cols)
	}

	result := core.DetectionResult{
		ThreatScore:      score,
		AnomalousIndices: outliers,
		Confidence:       confidence,
		Details: map[string]interface{}{
			"rows":              len(dataset),
			"features":          cols,
			"features_compared": compared,
			"anomalous_rows":    len(outliers),
		},
	}

	d.logger.Debug().
		Float64("score", score).
		Int("features_compared", compared).
		Int("outliers", len(outliers)).
		Msg("poisoning detection complete")

	return result
}

// rowOutliers flags rows whose feature-value sum deviates from the row-sum
// population by more than the configured z threshold. A zero-variance
// population flags nothing.
func (d *Detector) rowOutliers(dataset [][]float64) []int {
	sums := make([]float64, len(dataset))
	for i, row := range dataset {
		for _, v := range row {
			sums[i] += v
		}
	}

	var mean float64
	for _, s := range sums {
		mean += s
	}
	mean /= float64(len(sums))

	var variance float64
	for _, s := range sums {
		diff := s - mean
		variance += diff * diff
	}
	variance /= float64(len(sums))
	std := math.Sqrt(variance)
	if std == 0 {
		return nil
	}

	var out []int
	for i, s := range sums {
		if math.Abs((s-mean)/std) > d.cfg.OutlierZThreshold {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func columnOf(matrix [][]float64, col int) []float64 {
	out := make([]float64, 0, len(matrix))
	for _, row := range matrix {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return out
}
