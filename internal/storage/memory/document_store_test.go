package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"risklab/internal/storage"
)

func TestDocumentStore_SetAndGet(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := json.RawMessage(`{"ev": 100.5}`)
	if err := store.Set(ctx, "acme", "dec-1", "simulation.latest", doc); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "acme", "dec-1", "simulation.latest")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"ev": 100.5}` {
		t.Errorf("document mismatch: %s", got)
	}
}

func TestDocumentStore_SetReplaces(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	if err := store.Set(ctx, "acme", "dec-1", "k", json.RawMessage(`{"v": 1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "acme", "dec-1", "k", json.RawMessage(`{"v": 2}`)); err != nil {
		t.Fatalf("Second set failed: %v", err)
	}

	got, err := store.Get(ctx, "acme", "dec-1", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"v": 2}` {
		t.Errorf("expected replaced document, got %s", got)
	}
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.Get(context.Background(), "acme", "dec-1", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_DeleteIsIdempotent(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	if err := store.Set(ctx, "acme", "dec-1", "k", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "acme", "dec-1", "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	// Deleting an absent document is a no-op
	if err := store.Delete(ctx, "acme", "dec-1", "k"); err != nil {
		t.Errorf("expected nil on repeat delete, got %v", err)
	}

	_, err := store.Get(ctx, "acme", "dec-1", "k")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestDocumentStore_ScopesIsolated(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	if err := store.Set(ctx, "acme", "dec-1", "k", json.RawMessage(`{"v": 1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "acme", "dec-2", "k", json.RawMessage(`{"v": 2}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "globex", "dec-1", "k", json.RawMessage(`{"v": 3}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, "acme", "dec-2", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"v": 2}` {
		t.Errorf("expected scope-isolated document, got %s", got)
	}
}

func TestDocumentStore_ReturnsCopies(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	if err := store.Set(ctx, "acme", "dec-1", "k", json.RawMessage(`{"v": 1}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	first, err := store.Get(ctx, "acme", "dec-1", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first[0] = 'X'

	second, err := store.Get(ctx, "acme", "dec-1", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(second) != `{"v": 1}` {
		t.Errorf("stored document was mutated through a returned copy: %s", second)
	}
}
