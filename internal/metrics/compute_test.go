package metrics

import (
	"errors"
	"math"
	"testing"

	"risklab/internal/domain"
)

func TestComputeRiskPoint_Empty(t *testing.T) {
	_, err := ComputeRiskPoint(nil)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestComputeRiskPoint_SingleOutcome(t *testing.T) {
	point, err := ComputeRiskPoint([]float64{42.5})
	if err != nil {
		t.Fatalf("ComputeRiskPoint failed: %v", err)
	}
	// Degenerate distribution: all metrics equal the sole outcome
	if point.EV != 42.5 || point.VaR95 != 42.5 || point.CVaR95 != 42.5 {
		t.Errorf("expected all metrics 42.5, got %+v", point)
	}
}

func TestComputeRiskPoint_KnownSequence(t *testing.T) {
	// Outcomes 1..100 shuffled order must not matter
	outcomes := make([]float64, 100)
	for i := range outcomes {
		outcomes[i] = float64(100 - i)
	}

	point, err := ComputeRiskPoint(outcomes)
	if err != nil {
		t.Fatalf("ComputeRiskPoint failed: %v", err)
	}

	// Mean of 1..100 = 50.5
	if math.Abs(point.EV-50.5) > 1e-9 {
		t.Errorf("expected EV 50.5, got %f", point.EV)
	}
	// 5th percentile: idx = 0.05*99 = 4.95 → 5 + 0.95*(6-5) = 5.95
	if math.Abs(point.VaR95-5.95) > 1e-9 {
		t.Errorf("expected VaR95 5.95, got %f", point.VaR95)
	}
	// Tail at or below 5.95 is {1,2,3,4,5}, mean 3
	if math.Abs(point.CVaR95-3.0) > 1e-9 {
		t.Errorf("expected CVaR95 3.0, got %f", point.CVaR95)
	}
}

func TestComputeRiskPoint_TwoOutcomes(t *testing.T) {
	point, err := ComputeRiskPoint([]float64{20, 10})
	if err != nil {
		t.Fatalf("ComputeRiskPoint failed: %v", err)
	}
	// idx = 0.05*1 = 0.05 → 10 + 0.05*10 = 10.5
	if math.Abs(point.VaR95-10.5) > 1e-9 {
		t.Errorf("expected VaR95 10.5, got %f", point.VaR95)
	}
	// Only the minimum sits at or below 10.5
	if point.CVaR95 != 10 {
		t.Errorf("expected CVaR95 10, got %f", point.CVaR95)
	}
}

func TestComputeRiskPoint_ConstantOutcomes(t *testing.T) {
	point, err := ComputeRiskPoint([]float64{7, 7, 7, 7})
	if err != nil {
		t.Fatalf("ComputeRiskPoint failed: %v", err)
	}
	if point.EV != 7 || point.VaR95 != 7 || point.CVaR95 != 7 {
		t.Errorf("expected all metrics 7, got %+v", point)
	}
}

func TestComputeRiskPoint_CVaRNeverAboveVaR(t *testing.T) {
	outcomes := []float64{-30, 120, 45, -5, 80, 15, 200, -60, 33, 90, 12, 7}
	point, err := ComputeRiskPoint(outcomes)
	if err != nil {
		t.Fatalf("ComputeRiskPoint failed: %v", err)
	}
	if point.CVaR95 > point.VaR95 {
		t.Errorf("expected CVaR95 <= VaR95, got cvar=%f var=%f", point.CVaR95, point.VaR95)
	}
	if point.VaR95 > point.EV {
		t.Errorf("expected VaR95 <= EV on this sample, got var=%f ev=%f", point.VaR95, point.EV)
	}
}

func TestStddev_KnownSample(t *testing.T) {
	// Squared deviations from mean 5 sum to 32; sample variance 32/7
	outcomes := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	want := math.Sqrt(32.0 / 7.0)
	got := Stddev(outcomes)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected stddev %f, got %f", want, got)
	}
}

func TestStddev_TooFewSamples(t *testing.T) {
	if got := Stddev(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := Stddev([]float64{5}); got != 0 {
		t.Errorf("expected 0 for single sample, got %f", got)
	}
}
