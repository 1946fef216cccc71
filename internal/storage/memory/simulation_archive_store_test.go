package memory

import (
	"context"
	"errors"
	"testing"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

func testMetricRow(decisionID, optionID string, recordedAt int64) *domain.SimulationMetricRow {
	return &domain.SimulationMetricRow{
		Tenant:     "acme",
		DecisionID: decisionID,
		OptionID:   optionID,
		Seed:       1,
		Runs:       1000,
		EV:         100,
		VaR95:      60,
		CVaR95:     50,
		Trigger:    domain.TriggerManual,
		RecordedAt: recordedAt,
	}
}

func TestSimulationArchiveStore_InsertBulkAndGet(t *testing.T) {
	store := NewSimulationArchiveStore()
	ctx := context.Background()

	rows := []*domain.SimulationMetricRow{
		testMetricRow("dec-1", "opt-b", 2000),
		testMetricRow("dec-1", "opt-a", 2000),
		testMetricRow("dec-1", "opt-a", 1000),
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByDecision failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Ordered by recorded_at ASC, option_id ASC
	if got[0].RecordedAt != 1000 {
		t.Errorf("expected earliest row first, got %d", got[0].RecordedAt)
	}
	if got[1].OptionID != "opt-a" || got[2].OptionID != "opt-b" {
		t.Errorf("expected option tiebreak ASC, got %s, %s", got[1].OptionID, got[2].OptionID)
	}
}

func TestSimulationArchiveStore_InvalidRowFailsBatch(t *testing.T) {
	store := NewSimulationArchiveStore()
	ctx := context.Background()

	rows := []*domain.SimulationMetricRow{
		testMetricRow("dec-1", "opt-a", 1000),
		{Tenant: "acme", DecisionID: "", OptionID: "opt-b"},
	}
	err := store.InsertBulk(ctx, rows)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}

	// Nothing from the failed batch was stored
	got, err := store.GetByDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByDecision failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty archive after failed batch, got %d rows", len(got))
	}
}

func TestSimulationArchiveStore_EmptyBatchIsNoop(t *testing.T) {
	store := NewSimulationArchiveStore()

	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Errorf("expected nil error for empty batch, got %v", err)
	}
}
