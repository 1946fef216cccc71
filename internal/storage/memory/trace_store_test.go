package memory

import (
	"context"
	"errors"
	"testing"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

func testTraceEntry(decisionID string, recordedAt int64, ratio float64) *domain.LearningTraceEntry {
	return &domain.LearningTraceEntry{
		DecisionID:      decisionID,
		OptionID:        "opt-1",
		PreviousUtility: 100,
		NewUtility:      100 + ratio*10,
		DeltaUtility:    ratio * 10,
		ShockMagnitude:  10,
		RecoveryRatio:   ratio,
		RecordedAt:      recordedAt,
	}
}

func TestTraceStore_AppendAndList(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, testTraceEntry("dec-1", int64(1000+i), 0.1)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	got, err := store.ListByDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("ListByDecision failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Oldest first
	if got[0].RecordedAt != 1000 || got[2].RecordedAt != 1002 {
		t.Errorf("unexpected order: %d .. %d", got[0].RecordedAt, got[2].RecordedAt)
	}
}

func TestTraceStore_WindowEviction(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()

	total := domain.LearningTraceLimit + 7
	for i := 0; i < total; i++ {
		if err := store.Append(ctx, testTraceEntry("dec-1", int64(1000+i), 0.1)); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	got, err := store.ListByDecision(ctx, "dec-1")
	if err != nil {
		t.Fatalf("ListByDecision failed: %v", err)
	}
	if len(got) != domain.LearningTraceLimit {
		t.Fatalf("expected window bound %d, got %d", domain.LearningTraceLimit, len(got))
	}
	// The seven oldest entries were evicted
	if got[0].RecordedAt != 1007 {
		t.Errorf("expected oldest retained at 1007, got %d", got[0].RecordedAt)
	}
	if got[len(got)-1].RecordedAt != int64(1000+total-1) {
		t.Errorf("expected newest at %d, got %d", 1000+total-1, got[len(got)-1].RecordedAt)
	}
}

func TestTraceStore_DecisionsIsolated(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()

	if err := store.Append(ctx, testTraceEntry("dec-1", 1000, 0.1)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, testTraceEntry("dec-2", 1000, 0.2)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.ListByDecision(ctx, "dec-2")
	if err != nil {
		t.Fatalf("ListByDecision failed: %v", err)
	}
	if len(got) != 1 || got[0].RecoveryRatio != 0.2 {
		t.Errorf("expected only the dec-2 entry, got %+v", got)
	}
}

func TestTraceStore_RejectsInvalid(t *testing.T) {
	store := NewTraceStore()
	ctx := context.Background()

	if err := store.Append(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil entry, got %v", err)
	}
	if err := store.Append(ctx, testTraceEntry("", 1000, 0.1)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty decision id, got %v", err)
	}
}
