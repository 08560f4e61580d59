// Package adversarial flags inference inputs that sit far outside the
// reference feature distribution, using Mahalanobis distance mapped through
// a logistic function so the score is a smooth confidence rather than a hard
// threshold artifact.
package adversarial

import (
	"fmt"
	"math"
	"sync"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/mlsentinel-project/mlsentinel/internal/mlstat"
	"github.com/rs/zerolog"
)

// Detector holds the reference feature-space distribution. UpdateReference
// and Detect may be called concurrently from request-serving goroutines.
type Detector struct {
	mu     sync.RWMutex
	mean   []float64
	cov    [][]float64
	center float64
	logger zerolog.Logger
}

// New creates an adversarial input detector. center is the Mahalanobis
// distance at which the logistic score crosses 0.5 — 3.0 approximates a
// 3-sigma cutoff for Gaussian-like reference distributions.
func New(cfg core.AdversarialConfig, logger zerolog.Logger) *Detector {
	center := cfg.DistanceCenter
	if center <= 0 {
		center = 3.0
	}
	return &Detector{
		center: center,
		logger: logger.With().Str("component", "adversarial_detector").Logger(),
	}
}

// UpdateReference recalibrates the reference distribution from a matrix of
// clean embeddings. At least two samples are required to estimate
// covariance.
func (d *Detector) UpdateReference(clean [][]float64) error {
	if len(clean) < 2 || len(clean[0]) == 0 {
		return fmt.Errorf("reference update requires at least 2 samples, got %d", len(clean))
	}

	mean := mlstat.Mean(clean)
	cov := mlstat.Covariance(clean)

	d.mu.Lock()
	d.mean = mean
	d.cov = cov
	d.mu.Unlock()

	d.logger.Info().
		Int("samples", len(clean)).
		Int("dimensions", len(mean)).
		Msg("reference distribution updated")
	return nil
}

// Calibrated reports whether a reference distribution has been supplied.
func (d *Detector) Calibrated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mean != nil
}

// Detect scores a single input vector against the reference distribution.
// With no reference, a dimension mismatch, or a numerically unusable
// covariance, the result is neutral — an adversarial signal cannot be
// computed, and that is not an error the caller can act on.
func (d *Detector) Detect(input []float64) core.DetectionResult {
	d.mu.RLock()
	mean := d.mean
	cov := d.cov
	d.mu.RUnlock()

	if mean == nil {
		return core.DetectionResult{Details: map[string]interface{}{"reason": "detector not calibrated"}}
	}
	if len(input) != len(mean) {
		return core.DetectionResult{Details: map[string]interface{}{
			"reason": fmt.Sprintf("dimension mismatch: input %d, reference %d", len(input), len(mean)),
		}}
	}

	dist, err := mlstat.MahalanobisDistance(input, mean, cov)
	if err != nil {
		d.logger.Warn().Err(err).Msg("distance computation failed, returning neutral result")
		return core.DetectionResult{Details: map[string]interface{}{"reason": err.Error()}}
	}

	score := 1 / (1 + math.Exp(-(dist - d.center)))
	isAdversarial := score > 0.5

	return core.DetectionResult{
		ThreatScore: score,
		Confidence:  score,
		Details: map[string]interface{}{
			"distance":       dist,
			"is_adversarial": isAdversarial,
		},
	}
}
