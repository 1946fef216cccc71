package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// AdjustmentStore is an in-memory implementation of storage.AdjustmentStore.
type AdjustmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AutoAdjustmentRecord // keyed by adjustment id
}

// NewAdjustmentStore creates a new in-memory adjustment store.
func NewAdjustmentStore() *AdjustmentStore {
	return &AdjustmentStore{
		data: make(map[string]*domain.AutoAdjustmentRecord),
	}
}

// cloneAdjustment copies a record including the triggering violation ids.
func cloneAdjustment(a *domain.AutoAdjustmentRecord) *domain.AutoAdjustmentRecord {
	c := *a
	c.TriggeredBy = append([]string(nil), a.TriggeredBy...)
	return &c
}

// Insert adds a new adjustment record. Returns ErrDuplicateKey if the id exists.
func (s *AdjustmentStore) Insert(_ context.Context, a *domain.AutoAdjustmentRecord) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[a.ID] = cloneAdjustment(a)
	return nil
}

// ListByGuardrail retrieves all adjustments for a guardrail, ordered by OccurredAt ASC.
func (s *AdjustmentStore) ListByGuardrail(_ context.Context, guardrailID string) ([]*domain.AutoAdjustmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AutoAdjustmentRecord
	for _, a := range s.data {
		if a.GuardrailID == guardrailID {
			result = append(result, cloneAdjustment(a))
		}
	}

	// Sort by occurred_at ASC, id ASC for a stable order
	sort.Slice(result, func(i, j int) bool {
		if result[i].OccurredAt != result[j].OccurredAt {
			return result[i].OccurredAt < result[j].OccurredAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// LatestByGuardrail retrieves the most recent adjustment.
// Returns ErrNotFound if the guardrail was never adjusted.
func (s *AdjustmentStore) LatestByGuardrail(_ context.Context, guardrailID string) (*domain.AutoAdjustmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.AutoAdjustmentRecord
	for _, a := range s.data {
		if a.GuardrailID != guardrailID {
			continue
		}
		if latest == nil || a.OccurredAt > latest.OccurredAt {
			latest = a
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	return cloneAdjustment(latest), nil
}

// Verify interface compliance at compile time.
var _ storage.AdjustmentStore = (*AdjustmentStore)(nil)
