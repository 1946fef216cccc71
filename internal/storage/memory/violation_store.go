package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// ViolationStore is an in-memory implementation of storage.ViolationStore.
type ViolationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.GuardrailViolation // keyed by violation id
}

// NewViolationStore creates a new in-memory violation store.
func NewViolationStore() *ViolationStore {
	return &ViolationStore{
		data: make(map[string]*domain.GuardrailViolation),
	}
}

// Insert adds a new violation. Returns ErrDuplicateKey if the id exists.
func (s *ViolationStore) Insert(_ context.Context, v *domain.GuardrailViolation) error {
	if v == nil || v.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[v.ID]; exists {
		return storage.ErrDuplicateKey
	}

	violationCopy := *v
	s.data[v.ID] = &violationCopy
	return nil
}

// ListByGuardrail retrieves all violations for a guardrail, ordered by RecordedAt ASC, ID ASC.
func (s *ViolationStore) ListByGuardrail(_ context.Context, guardrailID string) ([]*domain.GuardrailViolation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GuardrailViolation
	for _, v := range s.data {
		if v.GuardrailID == guardrailID {
			violationCopy := *v
			result = append(result, &violationCopy)
		}
	}

	sortViolations(result)
	return result, nil
}

// GetByTimeRange retrieves violations for a guardrail within [start, end]
// (inclusive, milliseconds), ordered by RecordedAt ASC.
func (s *ViolationStore) GetByTimeRange(_ context.Context, guardrailID string, start, end int64) ([]*domain.GuardrailViolation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GuardrailViolation
	for _, v := range s.data {
		if v.GuardrailID == guardrailID && v.RecordedAt >= start && v.RecordedAt <= end {
			violationCopy := *v
			result = append(result, &violationCopy)
		}
	}

	sortViolations(result)
	return result, nil
}

// sortViolations orders by recorded_at ASC, id ASC.
func sortViolations(violations []*domain.GuardrailViolation) {
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].RecordedAt != violations[j].RecordedAt {
			return violations[i].RecordedAt < violations[j].RecordedAt
		}
		return violations[i].ID < violations[j].ID
	})
}

// Verify interface compliance at compile time.
var _ storage.ViolationStore = (*ViolationStore)(nil)
