// Package integrity assesses a deployed model for tampering and degradation:
// prediction consistency, decision boundary stability, fingerprint match,
// performance drop, and output distribution drift. Each check is independent
// and the overall score is the maximum across violated checks — a single
// severe violation dominates rather than being diluted by mild anomalies.
package integrity

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/mlsentinel-project/mlsentinel/internal/mlstat"
	"github.com/rs/zerolog"
)

// Snapshot captures a model's identity at a point in time.
type Snapshot struct {
	ModelID            string    `json:"model_id"`
	Checksum           string    `json:"checksum"`
	OutputDistribution []float64 `json:"output_distribution,omitempty"`
	TakenAt            time.Time `json:"taken_at,omitempty"`
}

// PredictionRecord is one observed {input, output} pair.
type PredictionRecord struct {
	Input     []float64 `json:"input"`
	Output    []float64 `json:"output"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// PerformanceMetrics carries current metrics alongside their baselines.
type PerformanceMetrics struct {
	Accuracy         float64 `json:"accuracy"`
	BaselineAccuracy float64 `json:"baseline_accuracy"`
	Loss             float64 `json:"loss"`
	BaselineLoss     float64 `json:"baseline_loss"`
	F1               float64 `json:"f1"`
	BaselineF1       float64 `json:"baseline_f1"`
}

// Violation names of the five checks, used in recommendations and details.
const (
	ViolationConsistency = "prediction_consistency"
	ViolationStability   = "boundary_stability"
	ViolationFingerprint = "fingerprint_mismatch"
	ViolationPerformance = "performance_degradation"
	ViolationDrift       = "distribution_drift"
)

// fingerprintScore is the fixed severity contribution of a checksum
// mismatch: tampering is never a mild finding.
const fingerprintScore = 0.9

// Assessment is the full outcome of an integrity check.
type Assessment struct {
	Result         core.DetectionResult `json:"result"`
	Level          core.ThreatLevel     `json:"level"`
	Violations     []string             `json:"violations"`
	Recommendation string               `json:"recommendation"`
}

// Monitor performs point-in-time integrity assessments. Stateless; the
// caller supplies the rolling prediction window and snapshots.
type Monitor struct {
	cfg    core.IntegrityConfig
	logger zerolog.Logger
}

// New creates an integrity monitor.
func New(cfg core.IntegrityConfig, logger zerolog.Logger) *Monitor {
	if cfg.RecentOutputs <= 0 {
		cfg.RecentOutputs = 10
	}
	if cfg.DriftHistogramBins <= 0 {
		cfg.DriftHistogramBins = 10
	}
	return &Monitor{
		cfg:    cfg,
		logger: logger.With().Str("component", "integrity_monitor").Logger(),
	}
}

// Assess runs all five checks. baseline, predictions, and metrics are each
// optional; absent inputs simply skip their checks rather than erroring.
func (m *Monitor) Assess(current, baseline *Snapshot, predictions []PredictionRecord, metrics *PerformanceMetrics) Assessment {
	var violations []string
	var maxScore float64

	record := func(name string, score float64) {
		violations = append(violations, name)
		if score > maxScore {
			maxScore = score
		}
	}

	if score, violated := m.checkConsistency(predictions); violated {
		record(ViolationConsistency, score)
	}
	if score, violated := m.checkStability(predictions); violated {
		record(ViolationStability, score)
	}
	if current != nil && baseline != nil && current.Checksum != "" && baseline.Checksum != "" &&
		current.Checksum != baseline.Checksum {
		record(ViolationFingerprint, fingerprintScore)
	}
	if score, violated := m.checkPerformance(metrics); violated {
		record(ViolationPerformance, score)
	}
	if score, violated := m.checkDrift(current, baseline); violated {
		record(ViolationDrift, score)
	}

	level := levelFor(maxScore, len(violations))

	assessment := Assessment{
		Result: core.DetectionResult{
			ThreatScore: maxScore,
			Confidence:  confidenceFor(len(violations)),
			Details: map[string]interface{}{
				"violations":      violations,
				"violation_count": len(violations),
				"level":           level.String(),
			},
		},
		Level:          level,
		Violations:     violations,
		Recommendation: recommendationFor(level, violations),
	}

	if current != nil {
		assessment.Result.Details["model_id"] = current.ModelID
	}

	m.logger.Debug().
		Float64("score", maxScore).
		Int("violations", len(violations)).
		Str("level", level.String()).
		Msg("integrity assessment complete")

	return assessment
}

// checkConsistency computes average pairwise cosine similarity over the most
// recent N outputs; low similarity means the model's answers are incoherent
// for similar traffic.
func (m *Monitor) checkConsistency(predictions []PredictionRecord) (float64, bool) {
	outputs := recentOutputs(predictions, m.cfg.RecentOutputs)
	if len(outputs) < 2 {
		return 0, false
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			sum += mlstat.CosineSimilarity(outputs[i], outputs[j])
			pairs++
		}
	}
	avg := sum / float64(pairs)
	if avg < m.cfg.ConsistencyThreshold {
		return clamp01(1 - avg), true
	}
	return 0, false
}

// checkStability maps the average per-feature variance of recent inputs
// through exp(-avgVariance); a low stability score indicates the decision
// boundary is being probed with widely scattered inputs.
func (m *Monitor) checkStability(predictions []PredictionRecord) (float64, bool) {
	inputs := make([][]float64, 0, len(predictions))
	for _, p := range predictions {
		if len(p.Input) > 0 {
			inputs = append(inputs, p.Input)
		}
	}
	if len(inputs) < 2 {
		return 0, false
	}

	vars := mlstat.ColumnVariances(inputs)
	if len(vars) == 0 {
		return 0, false
	}
	var avg float64
	for _, v := range vars {
		avg += v
	}
	avg /= float64(len(vars))

	stability := math.Exp(-avg)
	if stability < m.cfg.StabilityThreshold {
		return clamp01(1 - stability), true
	}
	return 0, false
}

// checkPerformance compares relative accuracy/F1 drops and loss rise against
// the degradation threshold.
func (m *Monitor) checkPerformance(metrics *PerformanceMetrics) (float64, bool) {
	if metrics == nil {
		return 0, false
	}

	var worst float64
	if metrics.BaselineAccuracy > 0 {
		worst = math.Max(worst, (metrics.BaselineAccuracy-metrics.Accuracy)/metrics.BaselineAccuracy)
	}
	if metrics.BaselineF1 > 0 {
		worst = math.Max(worst, (metrics.BaselineF1-metrics.F1)/metrics.BaselineF1)
	}
	if metrics.BaselineLoss > 0 {
		worst = math.Max(worst, (metrics.Loss-metrics.BaselineLoss)/metrics.BaselineLoss)
	}

	if worst > m.cfg.DegradationThreshold {
		return clamp01(worst), true
	}
	return 0, false
}

// checkDrift measures JS divergence between the current and baseline output
// distributions.
func (m *Monitor) checkDrift(current, baseline *Snapshot) (float64, bool) {
	if current == nil || baseline == nil ||
		len(current.OutputDistribution) == 0 || len(baseline.OutputDistribution) == 0 {
		return 0, false
	}
	div := mlstat.JensenShannonDivergence(current.OutputDistribution, baseline.OutputDistribution, m.cfg.DriftHistogramBins)
	if div > m.cfg.DriftThreshold {
		return clamp01(div), true
	}
	return 0, false
}

// levelFor maps the combined score and violation count to a threat level.
// An empty violation list is always LOW regardless of score.
func levelFor(score float64, count int) core.ThreatLevel {
	if count == 0 {
		return core.LevelLow
	}
	switch {
	case score >= 0.8 || count >= 4:
		return core.LevelCritical
	case score >= 0.6 || count >= 3:
		return core.LevelHigh
	case score >= 0.4 || count >= 2:
		return core.LevelMedium
	default:
		return core.LevelLow
	}
}

func confidenceFor(violations int) float64 {
	// More independent checks agreeing means higher confidence in the
	// overall verdict.
	return clamp01(0.5 + 0.125*float64(violations))
}

func recommendationFor(level core.ThreatLevel, violations []string) string {
	list := strings.Join(violations, ", ")
	switch level {
	case core.LevelCritical:
		return fmt.Sprintf("CRITICAL: model integrity compromised (%s). Take the model offline, verify weights against signed checksums, and initiate incident response.", list)
	case core.LevelHigh:
		return fmt.Sprintf("HIGH: significant integrity violations (%s). Freeze deployments and audit the model artifact pipeline before the next release.", list)
	case core.LevelMedium:
		return fmt.Sprintf("MEDIUM: integrity anomalies observed (%s). Increase monitoring frequency and review recent prediction traffic.", list)
	default:
		if len(violations) == 0 {
			return "Model integrity checks passed. No action required."
		}
		return fmt.Sprintf("LOW: minor anomalies observed (%s). Continue routine monitoring.", list)
	}
}

func recentOutputs(predictions []PredictionRecord, n int) [][]float64 {
	start := len(predictions) - n
	if start < 0 {
		start = 0
	}
	outputs := make([][]float64, 0, n)
	for _, p := range predictions[start:] {
		if len(p.Output) > 0 {
			outputs = append(outputs, p.Output)
		}
	}
	return outputs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
