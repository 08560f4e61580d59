package mlstat

import (
	"math"
	"testing"
)

func TestMahalanobisDistance_IdentityCovariance(t *testing.T) {
	// With identity covariance the distance reduces to Euclidean
	cov := [][]float64{{1, 0}, {0, 1}}
	d, err := MahalanobisDistance([]float64{3, 4}, []float64{0, 0}, cov)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(d, 5, 1e-3) {
		t.Errorf("expected distance ~5, got %f", d)
	}
}

func TestMahalanobisDistance_AtMean(t *testing.T) {
	cov := [][]float64{{2, 0}, {0, 3}}
	d, err := MahalanobisDistance([]float64{1, 2}, []float64{1, 2}, cov)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(d, 0, 1e-9) {
		t.Errorf("distance at the mean should be 0, got %f", d)
	}
}

func TestMahalanobisDistance_ScalesWithVariance(t *testing.T) {
	// Same offset, higher variance means smaller distance
	tight := [][]float64{{1, 0}, {0, 1}}
	loose := [][]float64{{100, 0}, {0, 100}}
	x := []float64{10, 0}
	mean := []float64{0, 0}

	dTight, err := MahalanobisDistance(x, mean, tight)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dLoose, err := MahalanobisDistance(x, mean, loose)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dLoose >= dTight {
		t.Errorf("higher variance should shrink distance: tight %f, loose %f", dTight, dLoose)
	}
}

func TestMahalanobisDistance_DimensionMismatch(t *testing.T) {
	cov := [][]float64{{1, 0}, {0, 1}}
	if _, err := MahalanobisDistance([]float64{1, 2, 3}, []float64{0, 0}, cov); err == nil {
		t.Error("expected error for input/mean dimension mismatch")
	}
	if _, err := MahalanobisDistance([]float64{1, 2, 3}, []float64{0, 0, 0}, cov); err == nil {
		t.Error("expected error for input/covariance dimension mismatch")
	}
}

func TestMahalanobisDistance_SingularCovarianceRegularized(t *testing.T) {
	// A zero covariance matrix is singular but the diagonal regularization
	// keeps the inversion alive.
	cov := [][]float64{{0, 0}, {0, 0}}
	d, err := MahalanobisDistance([]float64{1, 1}, []float64{0, 0}, cov)
	if err != nil {
		t.Fatalf("regularization should make zero covariance invertible: %v", err)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) {
		t.Errorf("expected finite distance, got %f", d)
	}
	if d <= 0 {
		t.Errorf("off-mean point should have positive distance, got %f", d)
	}
}

func TestInvertMatrix_Identity(t *testing.T) {
	m := [][]float64{{1, 0}, {0, 1}}
	inv, err := invertMatrix(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]float64{{1, 0}, {0, 1}}
	for i := range want {
		for j := range want[i] {
			if !almostEqual(inv[i][j], want[i][j], 1e-12) {
				t.Errorf("inv[%d][%d] = %f, want %f", i, j, inv[i][j], want[i][j])
			}
		}
	}
}

func TestInvertMatrix_Known2x2(t *testing.T) {
	// [[4,7],[2,6]] has inverse [[0.6,-0.7],[-0.2,0.4]]
	m := [][]float64{{4, 7}, {2, 6}}
	inv, err := invertMatrix(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]float64{{0.6, -0.7}, {-0.2, 0.4}}
	for i := range want {
		for j := range want[i] {
			if !almostEqual(inv[i][j], want[i][j], 1e-9) {
				t.Errorf("inv[%d][%d] = %f, want %f", i, j, inv[i][j], want[i][j])
			}
		}
	}
}

func TestInvertMatrix_NeedsPivoting(t *testing.T) {
	// Zero in the leading position forces a row swap
	m := [][]float64{{0, 1}, {1, 0}}
	inv, err := invertMatrix(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(inv[0][1], 1, 1e-12) || !almostEqual(inv[1][0], 1, 1e-12) {
		t.Errorf("unexpected inverse for permutation matrix: %v", inv)
	}
}

func TestInvertMatrix_Singular(t *testing.T) {
	m := [][]float64{{1, 2}, {2, 4}}
	if _, err := invertMatrix(m); err == nil {
		t.Error("expected error for singular matrix")
	}
}
