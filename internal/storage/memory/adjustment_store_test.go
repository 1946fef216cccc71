package memory

import (
	"context"
	"errors"
	"testing"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

func testAdjustment(id string, occurredAt int64) *domain.AutoAdjustmentRecord {
	return &domain.AutoAdjustmentRecord{
		ID:                id,
		GuardrailID:       "g-1",
		OldThreshold:      100,
		NewThreshold:      90,
		AdjustmentPercent: -10,
		TriggeredBy:       []string{"v-1", "v-2"},
		OccurredAt:        occurredAt,
	}
}

func TestAdjustmentStore_InsertAndList(t *testing.T) {
	store := NewAdjustmentStore()
	ctx := context.Background()

	for _, a := range []*domain.AutoAdjustmentRecord{
		testAdjustment("a-2", 2000),
		testAdjustment("a-1", 1000),
	} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert %s failed: %v", a.ID, err)
		}
	}

	got, err := store.ListByGuardrail(ctx, "g-1")
	if err != nil {
		t.Fatalf("ListByGuardrail failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 adjustments, got %d", len(got))
	}
	// Ordered by occurred_at ASC
	if got[0].ID != "a-1" || got[1].ID != "a-2" {
		t.Errorf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestAdjustmentStore_LatestByGuardrail(t *testing.T) {
	store := NewAdjustmentStore()
	ctx := context.Background()

	_, err := store.LatestByGuardrail(ctx, "g-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unadjusted guardrail, got %v", err)
	}

	for _, a := range []*domain.AutoAdjustmentRecord{
		testAdjustment("a-1", 1000),
		testAdjustment("a-3", 3000),
		testAdjustment("a-2", 2000),
	} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert %s failed: %v", a.ID, err)
		}
	}

	latest, err := store.LatestByGuardrail(ctx, "g-1")
	if err != nil {
		t.Fatalf("LatestByGuardrail failed: %v", err)
	}
	if latest.ID != "a-3" || latest.OccurredAt != 3000 {
		t.Errorf("expected a-3 at 3000, got %s at %d", latest.ID, latest.OccurredAt)
	}
}

func TestAdjustmentStore_ReturnsCopies(t *testing.T) {
	store := NewAdjustmentStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testAdjustment("a-1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first, err := store.LatestByGuardrail(ctx, "g-1")
	if err != nil {
		t.Fatalf("LatestByGuardrail failed: %v", err)
	}
	first.TriggeredBy[0] = "mutated"

	second, err := store.LatestByGuardrail(ctx, "g-1")
	if err != nil {
		t.Fatalf("LatestByGuardrail failed: %v", err)
	}
	if second.TriggeredBy[0] != "v-1" {
		t.Errorf("stored record was mutated through a returned copy: %+v", second.TriggeredBy)
	}
}
