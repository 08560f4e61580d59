package poisoning

import (
	"testing"

	"github.com/mlsentinel-project/mlsentinel/internal/core"
	"github.com/rs/zerolog"
)

func testDetector() *Detector {
	return New(core.PoisoningConfig{HistogramBins: 20, OutlierZThreshold: 2.0}, zerolog.Nop())
}

// rampDataset builds rows whose column values sweep [0, rows/100) with an
// optional offset, giving a known continuous distribution per column.
func rampDataset(rows, cols int, offset float64) [][]float64 {
	data := make([][]float64, rows)
	for i := range data {
		row := make([]float64, cols)
		for j := range row {
			row[j] = offset + float64(i)*0.01
		}
		data[i] = row
	}
	return data
}

func rampBaseline(rows, cols int) map[int][]float64 {
	baseline := make(map[int][]float64, cols)
	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := range col {
			col[i] = float64(i) * 0.01
		}
		baseline[j] = col
	}
	return baseline
}

func TestDetect_CleanDatasetScoresZero(t *testing.T) {
	d := testDetector()
	result := d.Detect(rampDataset(100, 3, 0), rampBaseline(100, 3))

	if result.ThreatScore != 0 {
		t.Errorf("clean dataset score = %f, want 0", result.ThreatScore)
	}
	if result.Confidence != 1.0 {
		t.Errorf("confidence = %f, all columns had baselines", result.Confidence)
	}
	if len(result.AnomalousIndices) != 0 {
		t.Errorf("anomalous rows = %v, want none", result.AnomalousIndices)
	}
}

func TestDetect_ShiftedDatasetScoresHigh(t *testing.T) {
	d := testDetector()
	// Every value sits in [10, 11) while the baseline covers [0, 1):
	// fully disjoint distributions.
	result := d.Detect(rampDataset(100, 3, 10), rampBaseline(100, 3))

	if result.ThreatScore < 0.9 {
		t.Errorf("disjoint dataset score = %f, want near 1", result.ThreatScore)
	}
	if result.Details["features_compared"] != 3 {
		t.Errorf("features compared = %v", result.Details["features_compared"])
	}
}

func TestDetect_FlagsRowOutliers(t *testing.T) {
	d := testDetector()
	dataset := make([][]float64, 20)
	for i := range dataset {
		dataset[i] = []float64{1, 1, 1}
	}
	dataset[7] = []float64{100, 100, 100}

	result := d.Detect(dataset, nil)
	if len(result.AnomalousIndices) != 1 || result.AnomalousIndices[0] != 7 {
		t.Errorf("anomalous rows = %v, want [7]", result.AnomalousIndices)
	}
}

func TestDetect_UniformRowsFlagNothing(t *testing.T) {
	d := testDetector()
	dataset := make([][]float64, 10)
	for i := range dataset {
		dataset[i] = []float64{2, 2}
	}

	result := d.Detect(dataset, nil)
	if len(result.AnomalousIndices) != 0 {
		t.Errorf("zero-variance rows flagged: %v", result.AnomalousIndices)
	}
}

func TestDetect_EmptyDatasetYieldsZeroResult(t *testing.T) {
	d := testDetector()
	result := d.Detect(nil, rampBaseline(10, 2))

	if result.ThreatScore != 0 || result.Confidence != 0 {
		t.Errorf("empty dataset result = %+v, want zero", result)
	}
	if result.Details["reason"] != "empty dataset" {
		t.Errorf("reason = %v", result.Details["reason"])
	}
}

func TestDetect_SkipsColumnsWithoutBaseline(t *testing.T) {
	d := testDetector()
	baseline := rampBaseline(100, 1) // only column 0
	result := d.Detect(rampDataset(100, 2, 0), baseline)

	if result.Details["features_compared"] != 1 {
		t.Errorf("features compared = %v, want 1", result.Details["features_compared"])
	}
	if result.Confidence != 0.5 {
		t.Errorf("confidence = %f, want 0.5 for 1 of 2 columns", result.Confidence)
	}
}
