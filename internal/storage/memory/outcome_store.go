package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ActualOutcome // keyed by outcome id
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.ActualOutcome),
	}
}

// Insert adds a new outcome. Returns ErrDuplicateKey if the id exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.ActualOutcome) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}

	outcomeCopy := *o
	s.data[o.ID] = &outcomeCopy
	return nil
}

// ListByDecision retrieves all outcomes for a decision, ordered by RecordedAt ASC, ID ASC.
func (s *OutcomeStore) ListByDecision(_ context.Context, decisionID string) ([]*domain.ActualOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActualOutcome
	for _, o := range s.data {
		if o.DecisionID == decisionID {
			outcomeCopy := *o
			result = append(result, &outcomeCopy)
		}
	}

	// Sort by recorded_at ASC, id ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].RecordedAt != result[j].RecordedAt {
			return result[i].RecordedAt < result[j].RecordedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)
