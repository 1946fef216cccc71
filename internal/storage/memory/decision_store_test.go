package memory

import (
	"context"
	"errors"
	"testing"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

func testStoreDecision(id, tenant string) *domain.Decision {
	return &domain.Decision{
		ID:     id,
		Tenant: tenant,
		Label:  "Test decision",
		Options: []domain.Option{
			{ID: "opt-1", Label: "First"},
		},
		Variables: []domain.ScenarioVariable{
			{
				Key:    "demand",
				Dist:   domain.DistributionSpec{Kind: domain.DistNormal, Normal: &domain.NormalParams{Mean: 100, Stdev: 10}},
				Weight: 1,
			},
		},
		Links: []domain.SignalLink{
			{SignalID: "sig-cpi", VariableKey: "demand", Direction: 1},
		},
		Seed: 1,
		Runs: 100,
	}
}

func TestDecisionStore_InsertAndGet(t *testing.T) {
	store := NewDecisionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testStoreDecision("dec-1", "acme")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Tenant != "acme" || len(got.Variables) != 1 {
		t.Errorf("decision mismatch: %+v", got)
	}
}

func TestDecisionStore_DuplicateKey(t *testing.T) {
	store := NewDecisionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testStoreDecision("dec-1", "acme")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, testStoreDecision("dec-1", "acme"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestDecisionStore_NotFound(t *testing.T) {
	store := NewDecisionStore()

	_, err := store.GetByID(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDecisionStore_ListByTenant(t *testing.T) {
	store := NewDecisionStore()
	ctx := context.Background()

	for _, id := range []string{"dec-b", "dec-a", "dec-c"} {
		if err := store.Insert(ctx, testStoreDecision(id, "acme")); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}
	if err := store.Insert(ctx, testStoreDecision("dec-other", "globex")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.ListByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("ListByTenant failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(got))
	}
	// Ordered by id ASC
	for i, want := range []string{"dec-a", "dec-b", "dec-c"} {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}

func TestDecisionStore_ListBySignal(t *testing.T) {
	store := NewDecisionStore()
	ctx := context.Background()

	linked := testStoreDecision("dec-linked", "acme")
	if err := store.Insert(ctx, linked); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	unlinked := testStoreDecision("dec-unlinked", "acme")
	unlinked.Links = nil
	if err := store.Insert(ctx, unlinked); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.ListBySignal(ctx, "sig-cpi")
	if err != nil {
		t.Fatalf("ListBySignal failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "dec-linked" {
		t.Errorf("expected only dec-linked, got %+v", got)
	}

	none, err := store.ListBySignal(ctx, "sig-unknown")
	if err != nil {
		t.Fatalf("ListBySignal failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no matches, got %d", len(none))
	}
}

func TestDecisionStore_ReturnsCopies(t *testing.T) {
	store := NewDecisionStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testStoreDecision("dec-1", "acme")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first, err := store.GetByID(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	// Mutating the returned value must not leak into the store
	first.Variables[0].Weight = 99
	first.Label = "mutated"

	second, err := store.GetByID(ctx, "dec-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if second.Variables[0].Weight != 1 || second.Label != "Test decision" {
		t.Errorf("stored decision was mutated through a returned copy: %+v", second)
	}
}
