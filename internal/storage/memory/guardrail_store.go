package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// GuardrailStore is an in-memory implementation of storage.GuardrailStore.
type GuardrailStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Guardrail // keyed by guardrail id
}

// NewGuardrailStore creates a new in-memory guardrail store.
func NewGuardrailStore() *GuardrailStore {
	return &GuardrailStore{
		data: make(map[string]*domain.Guardrail),
	}
}

// Insert adds a new guardrail. Returns ErrDuplicateKey if the id exists.
func (s *GuardrailStore) Insert(_ context.Context, g *domain.Guardrail) error {
	if g == nil || g.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[g.ID]; exists {
		return storage.ErrDuplicateKey
	}

	guardrailCopy := *g
	s.data[g.ID] = &guardrailCopy
	return nil
}

// GetByID retrieves a guardrail by its ID. Returns ErrNotFound if not exists.
func (s *GuardrailStore) GetByID(_ context.Context, guardrailID string) (*domain.Guardrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, exists := s.data[guardrailID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	guardrailCopy := *g
	return &guardrailCopy, nil
}

// GetByTarget retrieves guardrails watching (decision, option, metric), ordered by ID ASC.
func (s *GuardrailStore) GetByTarget(_ context.Context, decisionID, optionID, metricName string) ([]*domain.Guardrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Guardrail
	for _, g := range s.data {
		if g.DecisionID == decisionID && g.OptionID == optionID && g.MetricName == metricName {
			guardrailCopy := *g
			result = append(result, &guardrailCopy)
		}
	}

	// Sort by id ASC
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ListByDecision retrieves all guardrails for a decision, ordered by ID ASC.
func (s *GuardrailStore) ListByDecision(_ context.Context, decisionID string) ([]*domain.Guardrail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Guardrail
	for _, g := range s.data {
		if g.DecisionID == decisionID {
			guardrailCopy := *g
			result = append(result, &guardrailCopy)
		}
	}

	// Sort by id ASC
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdateThreshold replaces the threshold and updated-at timestamp.
// Returns ErrNotFound if the guardrail does not exist.
func (s *GuardrailStore) UpdateThreshold(_ context.Context, guardrailID string, newThreshold float64, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.data[guardrailID]
	if !exists {
		return storage.ErrNotFound
	}

	g.Threshold = newThreshold
	g.UpdatedAt = updatedAt
	return nil
}

// Delete removes a guardrail. Returns ErrNotFound if it does not exist.
func (s *GuardrailStore) Delete(_ context.Context, guardrailID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[guardrailID]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, guardrailID)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.GuardrailStore = (*GuardrailStore)(nil)
