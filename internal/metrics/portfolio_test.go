package metrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"risklab/internal/domain"
	"risklab/internal/idhash"
	"risklab/internal/storage/memory"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestPortfolioAggregator_Compute_Empty(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())
	_, err := agg.Compute(nil)
	if !errors.Is(err, ErrNoDecisions) {
		t.Errorf("expected ErrNoDecisions, got %v", err)
	}
}

func TestPortfolioAggregator_Compute_SingleDecision(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	metrics, err := agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 50, CVaR95: 40},
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// A single decision is fully diversified by convention
	if metrics.DiversificationIndex != 1 {
		t.Errorf("expected diversification 1, got %f", metrics.DiversificationIndex)
	}
	if metrics.AggregateEV != 100 {
		t.Errorf("expected aggregate EV 100, got %f", metrics.AggregateEV)
	}
	// Quadratic form with one element: sqrt(1^2 * 50^2) = 50
	if math.Abs(metrics.AggregateVaR95-50) > 1e-9 {
		t.Errorf("expected aggregate VaR 50, got %f", metrics.AggregateVaR95)
	}
	if math.Abs(metrics.AggregateCVaR95-50*domain.CVaRApproximationFactor) > 1e-9 {
		t.Errorf("expected aggregate CVaR %f, got %f", 50*domain.CVaRApproximationFactor, metrics.AggregateCVaR95)
	}
	// 40*1 (diversified) + 30 (positive EV) + 30 (|VaR| < |EV|) = 100
	if metrics.AntifragilityScore != 100 {
		t.Errorf("expected antifragility 100, got %f", metrics.AntifragilityScore)
	}
}

func TestPortfolioAggregator_Compute_IdenticalDecisions(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	d := domain.DecisionMetrics{EV: 100, VaR95: 80, CVaR95: 70}
	d1, d2 := d, d
	d1.DecisionID, d2.DecisionID = "d1", "d2"

	metrics, err := agg.Compute([]domain.DecisionMetrics{d1, d2})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// Identical risk profiles: similarity matrix is all ones,
	// 1 - 4/4 = 0 diversification
	if metrics.DiversificationIndex != 0 {
		t.Errorf("expected diversification 0, got %f", metrics.DiversificationIndex)
	}
	if math.Abs(metrics.AggregateEV-100) > 1e-9 {
		t.Errorf("expected aggregate EV 100, got %f", metrics.AggregateEV)
	}
	// Fully correlated equal positions: variance = (0.5*80 + 0.5*80)^2
	if math.Abs(metrics.AggregateVaR95-80) > 1e-9 {
		t.Errorf("expected aggregate VaR 80, got %f", metrics.AggregateVaR95)
	}
	// 0 + 30 (positive EV) + 30 (|VaR| < |EV|) = 60
	if math.Abs(metrics.AntifragilityScore-60) > 1e-9 {
		t.Errorf("expected antifragility 60, got %f", metrics.AntifragilityScore)
	}
}

func TestPortfolioAggregator_Compute_OpposedDecisions(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	metrics, err := agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 80, CVaR95: 70},
		{DecisionID: "d2", EV: -100, VaR95: -80, CVaR95: -70},
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// Every metric pair is maximally different: similarity 0 off-diagonal,
	// matrix sum 2, index 1 - 2/4 = 0.5
	if math.Abs(metrics.DiversificationIndex-0.5) > 1e-9 {
		t.Errorf("expected diversification 0.5, got %f", metrics.DiversificationIndex)
	}
	if math.Abs(metrics.AggregateEV) > 1e-9 {
		t.Errorf("expected aggregate EV 0, got %f", metrics.AggregateEV)
	}
}

func TestPortfolioAggregator_Compute_WeightHandling(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	// Explicit weights renormalize to 0.75 / 0.25
	metrics, err := agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 50, CVaR95: 40, Weight: floatPtr(3)},
		{DecisionID: "d2", EV: 200, VaR95: 90, CVaR95: 80, Weight: floatPtr(1)},
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if math.Abs(metrics.AggregateEV-125) > 1e-9 {
		t.Errorf("expected weighted EV 125, got %f", metrics.AggregateEV)
	}

	// Missing weights default to equal shares
	equal, err := agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 50, CVaR95: 40},
		{DecisionID: "d2", EV: 200, VaR95: 90, CVaR95: 80},
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if math.Abs(equal.AggregateEV-150) > 1e-9 {
		t.Errorf("expected equal-weight EV 150, got %f", equal.AggregateEV)
	}
}

func TestPortfolioAggregator_Compute_RejectsBadWeights(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	_, err := agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 50, CVaR95: 40, Weight: floatPtr(-1)},
	})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for negative weight, got %v", err)
	}

	_, err = agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 50, CVaR95: 40, Weight: floatPtr(0)},
		{DecisionID: "d2", EV: 200, VaR95: 90, CVaR95: 80, Weight: floatPtr(0)},
	})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero weight sum, got %v", err)
	}
}

func TestPortfolioAggregator_Compute_Idempotent(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	decisions := []domain.DecisionMetrics{
		{DecisionID: "d1", EV: 120, VaR95: 60, CVaR95: 50, Weight: floatPtr(2)},
		{DecisionID: "d2", EV: -40, VaR95: -90, CVaR95: -110},
		{DecisionID: "d3", EV: 75, VaR95: 30, CVaR95: 25},
	}

	first, err := agg.Compute(decisions)
	if err != nil {
		t.Fatalf("first Compute failed: %v", err)
	}
	second, err := agg.Compute(decisions)
	if err != nil {
		t.Fatalf("second Compute failed: %v", err)
	}
	if first != second {
		t.Errorf("expected identical metrics across runs: %+v vs %+v", first, second)
	}
	if first.DiversificationIndex < 0 || first.DiversificationIndex > 1 {
		t.Errorf("diversification out of [0,1]: %f", first.DiversificationIndex)
	}
	if first.AntifragilityScore < 0 || first.AntifragilityScore > 100 {
		t.Errorf("antifragility out of [0,100]: %f", first.AntifragilityScore)
	}
}

func TestPortfolioAggregator_Compute_FragilePortfolioScoresZero(t *testing.T) {
	agg := NewPortfolioAggregator(memory.NewPortfolioSnapshotStore())

	// Identical loss-making decisions with risk beyond return: every
	// heuristic component contributes zero.
	metrics, err := agg.Compute([]domain.DecisionMetrics{
		{DecisionID: "d1", EV: -100, VaR95: -200, CVaR95: -250},
		{DecisionID: "d2", EV: -100, VaR95: -200, CVaR95: -250},
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if metrics.AntifragilityScore != 0 {
		t.Errorf("expected antifragility 0, got %f", metrics.AntifragilityScore)
	}
}

func TestPortfolioAggregator_Update_AppendsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPortfolioSnapshotStore()

	fixedNow := time.UnixMilli(1700000000000).UTC()
	agg := NewPortfolioAggregator(store).WithClock(func() time.Time { return fixedNow })

	snapshot, err := agg.Update(ctx, "acme", "port-1", []domain.DecisionMetrics{
		{DecisionID: "d1", EV: 100, VaR95: 50, CVaR95: 40},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	wantID := idhash.ComputeSnapshotID("acme", "port-1", fixedNow.UnixMilli())
	if snapshot.ID != wantID {
		t.Errorf("expected snapshot id %s, got %s", wantID, snapshot.ID)
	}
	if snapshot.Decisions != 1 {
		t.Errorf("expected 1 decision counted, got %d", snapshot.Decisions)
	}
	if snapshot.RecordedAt != fixedNow.UnixMilli() {
		t.Errorf("expected recordedAt %d, got %d", fixedNow.UnixMilli(), snapshot.RecordedAt)
	}

	history, err := store.History(ctx, "acme", "port-1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].ID != wantID {
		t.Errorf("expected stored snapshot %s, got %+v", wantID, history)
	}
}
