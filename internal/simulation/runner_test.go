package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"risklab/internal/domain"
	"risklab/internal/storage"
	"risklab/internal/storage/memory"
)

// Helper to build a stored two-option decision
func testDecision() *domain.Decision {
	return &domain.Decision{
		ID:     "dec-1",
		Tenant: "acme",
		Label:  "Warehouse expansion",
		Options: []domain.Option{
			{ID: "opt-build", Label: "Build"},
			{ID: "opt-lease", Label: "Lease"},
		},
		Variables: []domain.ScenarioVariable{
			{
				Key:    "demand",
				Dist:   domain.DistributionSpec{Kind: domain.DistNormal, Normal: &domain.NormalParams{Mean: 100, Stdev: 20}},
				Weight: 1,
			},
		},
		Seed: 1,
		Runs: 500,
	}
}

func TestRunner_Run_PersistsResults(t *testing.T) {
	ctx := context.Background()

	decisionStore := memory.NewDecisionStore()
	documentStore := memory.NewDocumentStore()
	archiveStore := memory.NewSimulationArchiveStore()

	decision := testDecision()
	if err := decisionStore.Insert(ctx, decision); err != nil {
		t.Fatalf("Insert decision failed: %v", err)
	}

	fixedNow := time.UnixMilli(1700000000000).UTC()
	runner := NewRunner(RunnerOptions{
		DecisionStore: decisionStore,
		DocumentStore: documentStore,
		ArchiveStore:  archiveStore,
		Clock:         func() time.Time { return fixedNow },
	})

	resp, err := runner.Run(ctx, "dec-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}

	// Latest-results document
	raw, err := documentStore.Get(ctx, "acme", "dec-1", DocKeyLatestResults)
	if err != nil {
		t.Fatalf("Get document failed: %v", err)
	}
	var doc StoredResults
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal stored results failed: %v", err)
	}
	if doc.DecisionID != "dec-1" || doc.Tenant != "acme" {
		t.Errorf("stored document identity mismatch: %+v", doc)
	}
	if doc.Trigger != domain.TriggerManual {
		t.Errorf("expected trigger %q, got %q", domain.TriggerManual, doc.Trigger)
	}
	if doc.RecordedAt != fixedNow.UnixMilli() {
		t.Errorf("expected recordedAt %d, got %d", fixedNow.UnixMilli(), doc.RecordedAt)
	}
	if len(doc.Results) != 2 {
		t.Fatalf("expected 2 stored option results, got %d", len(doc.Results))
	}
	for i, stored := range doc.Results {
		if stored.EV != resp.Results[i].EV {
			t.Errorf("stored EV mismatch for %s: %f vs %f", stored.OptionID, stored.EV, resp.Results[i].EV)
		}
	}

	// Archive rows
	rows, err := archiveStore.GetByDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByDecision failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 archive rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Trigger != domain.TriggerManual {
			t.Errorf("archive trigger mismatch: %q", row.Trigger)
		}
		if row.Runs != 500 || row.Seed != 1 {
			t.Errorf("archive config mismatch: runs=%d seed=%d", row.Runs, row.Seed)
		}
		if row.RecordedAt != fixedNow.UnixMilli() {
			t.Errorf("archive recordedAt mismatch: %d", row.RecordedAt)
		}
	}
}

func TestRunner_Run_DecisionNotFound(t *testing.T) {
	ctx := context.Background()

	runner := NewRunner(RunnerOptions{
		DecisionStore: memory.NewDecisionStore(),
	})

	_, err := runner.Run(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected storage.ErrNotFound, got %v", err)
	}
}

func TestRunner_RunDecision_RefreshTrigger(t *testing.T) {
	ctx := context.Background()

	decisionStore := memory.NewDecisionStore()
	archiveStore := memory.NewSimulationArchiveStore()

	decision := testDecision()
	if err := decisionStore.Insert(ctx, decision); err != nil {
		t.Fatalf("Insert decision failed: %v", err)
	}

	runner := NewRunner(RunnerOptions{
		DecisionStore: decisionStore,
		ArchiveStore:  archiveStore,
	})

	// Shifted variables stand in for a signal-adjusted re-run.
	shifted := []domain.ScenarioVariable{
		{
			Key:    "demand",
			Dist:   domain.DistributionSpec{Kind: domain.DistNormal, Normal: &domain.NormalParams{Mean: 110, Stdev: 20}},
			Weight: 1,
		},
	}
	resp, err := runner.RunDecision(ctx, decision, shifted, domain.TriggerSignalRefresh)
	if err != nil {
		t.Fatalf("RunDecision failed: %v", err)
	}
	if resp.Results[0].EV < 105 || resp.Results[0].EV > 115 {
		t.Errorf("expected shifted EV near 110, got %f", resp.Results[0].EV)
	}

	rows, err := archiveStore.GetByDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByDecision failed: %v", err)
	}
	for _, row := range rows {
		if row.Trigger != domain.TriggerSignalRefresh {
			t.Errorf("expected refresh trigger, got %q", row.Trigger)
		}
	}
}

func TestRunner_RunDecision_NilDecision(t *testing.T) {
	runner := NewRunner(RunnerOptions{})
	_, err := runner.RunDecision(context.Background(), nil, nil, domain.TriggerManual)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunner_Run_WithoutOptionalStores(t *testing.T) {
	ctx := context.Background()

	decisionStore := memory.NewDecisionStore()
	decision := testDecision()
	if err := decisionStore.Insert(ctx, decision); err != nil {
		t.Fatalf("Insert decision failed: %v", err)
	}

	// No document or archive store configured; the run still succeeds.
	runner := NewRunner(RunnerOptions{DecisionStore: decisionStore})
	resp, err := runner.Run(ctx, "dec-1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(resp.Results))
	}
}
