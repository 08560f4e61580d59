package adversarial

import (
	"testing"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/rs/zerolog"
)

func testDetector() *Detector {
	return New(core.AdversarialConfig{DistanceCenter: 3.0}, zerolog.Nop())
}

// referenceCluster is a well-conditioned cluster centered on (0.5, 0.5, 0.5)
// with independent per-dimension spread.
func referenceCluster() [][]float64 {
	return [][]float64{
		{0.4, 0.5, 0.5},
		{0.6, 0.5, 0.5},
		{0.5, 0.4, 0.5},
		{0.5, 0.6, 0.5},
		{0.5, 0.5, 0.4},
		{0.5, 0.5, 0.6},
	}
}

func TestUpdateReference_RequiresTwoSamples(t *testing.T) {
	d := testDetector()
	if err := d.UpdateReference([][]float64{{1, 2, 3}}); err == nil {
		t.Error("single sample should be rejected")
	}
	if d.Calibrated() {
		t.Error("failed update must not calibrate the detector")
	}
	if err := d.UpdateReference(referenceCluster()); err != nil {
		t.Fatalf("UpdateReference: %v", err)
	}
	if !d.Calibrated() {
		t.Error("detector should be calibrated after a valid update")
	}
}

func TestDetect_UncalibratedReturnsNeutral(t *testing.T) {
	d := testDetector()
	result := d.Detect([]float64{1, 2, 3})

	if result.ThreatScore != 0 || result.Confidence != 0 {
		t.Errorf("uncalibrated result = %+v, want zero", result)
	}
	if result.Details["reason"] != "detector not calibrated" {
		t.Errorf("reason = %v", result.Details["reason"])
	}
}

func TestDetect_DimensionMismatchReturnsNeutral(t *testing.T) {
	d := testDetector()
	if err := d.UpdateReference(referenceCluster()); err != nil {
		t.Fatal(err)
	}
	result := d.Detect([]float64{0.5, 0.5})

	if result.ThreatScore != 0 {
		t.Errorf("mismatched input scored %f", result.ThreatScore)
	}
	if result.Details["reason"] == nil {
		t.Error("expected a mismatch reason")
	}
}

func TestDetect_InputAtReferenceCenterIsClean(t *testing.T) {
	d := testDetector()
	if err := d.UpdateReference(referenceCluster()); err != nil {
		t.Fatal(err)
	}
	result := d.Detect([]float64{0.5, 0.5, 0.5})

	if result.ThreatScore > 0.5 {
		t.Errorf("centered input scored %f, want below 0.5", result.ThreatScore)
	}
	if result.Details["is_adversarial"] != false {
		t.Errorf("is_adversarial = %v", result.Details["is_adversarial"])
	}
}

func TestDetect_DistantInputIsAdversarial(t *testing.T) {
	d := testDetector()
	if err := d.UpdateReference(referenceCluster()); err != nil {
		t.Fatal(err)
	}
	result := d.Detect([]float64{10, 10, 10})

	if result.ThreatScore <= 0.5 {
		t.Errorf("distant input scored %f, want above 0.5", result.ThreatScore)
	}
	if result.Details["is_adversarial"] != true {
		t.Errorf("is_adversarial = %v", result.Details["is_adversarial"])
	}
	if result.Confidence != result.ThreatScore {
		t.Errorf("confidence %f should mirror the score %f", result.Confidence, result.ThreatScore)
	}
	if dist, ok := result.Details["distance"].(float64); !ok || dist <= 3.0 {
		t.Errorf("distance = %v, want well past the logistic center", result.Details["distance"])
	}
}

func TestUpdateReference_ReplacesPreviousDistribution(t *testing.T) {
	d := testDetector()
	if err := d.UpdateReference(referenceCluster()); err != nil {
		t.Fatal(err)
	}
	before := d.Detect([]float64{10, 10, 10}).ThreatScore

	// Recalibrate around the previously-distant point.
	shifted := make([][]float64, 0, 6)
	for _, row := range referenceCluster() {
		shifted = append(shifted, []float64{row[0] + 9.5, row[1] + 9.5, row[2] + 9.5})
	}
	if err := d.UpdateReference(shifted); err != nil {
		t.Fatal(err)
	}
	after := d.Detect([]float64{10, 10, 10}).ThreatScore

	if after >= before {
		t.Errorf("score after recalibration = %f, want below %f", after, before)
	}
}
