package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"risklab/internal/domain"
	"risklab/internal/simulation"
	"risklab/internal/storage/memory"
)

func seedDecision(t *testing.T, store *memory.DecisionStore, id, tenant, signalID string) *domain.Decision {
	t.Helper()

	decision := &domain.Decision{
		ID:     id,
		Tenant: tenant,
		Label:  "Build vs lease",
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
		Runs: 200,
	}
	if signalID != "" {
		decision.Links = []domain.SignalLink{
			{SignalID: signalID, VariableKey: "demand", Direction: 1},
		}
	}
	if err := store.Insert(context.Background(), decision); err != nil {
		t.Fatalf("seed decision: %v", err)
	}
	return decision
}

func TestRegistry_Get(t *testing.T) {
	decisions := memory.NewDecisionStore()
	reg := NewRegistry(decisions, memory.NewDocumentStore())
	seedDecision(t, decisions, "dec-1", "acme", "")

	got, err := reg.Get(context.Background(), "dec-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != "dec-1" || len(got.Options) != 2 {
		t.Errorf("Get() = %+v, want dec-1 with 2 options", got)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg := NewRegistry(memory.NewDecisionStore(), memory.NewDocumentStore())

	_, err := reg.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want domain.ErrNotFound", err)
	}
}

func TestRegistry_ListBySignal(t *testing.T) {
	decisions := memory.NewDecisionStore()
	reg := NewRegistry(decisions, memory.NewDocumentStore())
	seedDecision(t, decisions, "dec-linked", "acme", "sig-churn")
	seedDecision(t, decisions, "dec-other", "acme", "sig-price")
	seedDecision(t, decisions, "dec-unlinked", "acme", "")

	got, err := reg.ListBySignal(context.Background(), "sig-churn")
	if err != nil {
		t.Fatalf("ListBySignal() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "dec-linked" {
		t.Errorf("ListBySignal() = %v, want [dec-linked]", got)
	}
}

func TestRegistry_PriorResults(t *testing.T) {
	decisions := memory.NewDecisionStore()
	documents := memory.NewDocumentStore()
	reg := NewRegistry(decisions, documents)
	ctx := context.Background()

	stored := simulation.StoredResults{
		DecisionID: "dec-1",
		Tenant:     "acme",
		Seed:       1,
		Runs:       200,
		Trigger:    domain.TriggerManual,
		RecordedAt: 1700000000000,
		Results: []simulation.StoredOptionResult{
			{OptionID: "opt-build", Label: "Build", EV: 104.2, VaR95: 61.5, CVaR95: 55.3},
		},
	}
	doc, err := json.Marshal(stored)
	if err != nil {
		t.Fatalf("marshal stored results: %v", err)
	}
	if err := documents.Set(ctx, "acme", "dec-1", simulation.DocKeyLatestResults, doc); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	got, err := reg.PriorResults(ctx, "acme", "dec-1")
	if err != nil {
		t.Fatalf("PriorResults() error = %v", err)
	}
	if got.DecisionID != "dec-1" || len(got.Results) != 1 {
		t.Errorf("PriorResults() = %+v, want dec-1 with 1 option result", got)
	}
	if got.Results[0].EV != 104.2 {
		t.Errorf("EV = %v, want 104.2", got.Results[0].EV)
	}
}

func TestRegistry_PriorResultsNotFound(t *testing.T) {
	reg := NewRegistry(memory.NewDecisionStore(), memory.NewDocumentStore())

	_, err := reg.PriorResults(context.Background(), "acme", "dec-never-run")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("PriorResults() error = %v, want domain.ErrNotFound", err)
	}
}

func TestRegistry_PriorResultsWithoutDocumentStore(t *testing.T) {
	reg := NewRegistry(memory.NewDecisionStore(), nil)

	_, err := reg.PriorResults(context.Background(), "acme", "dec-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("PriorResults() error = %v, want domain.ErrNotFound", err)
	}
}
