package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// TraceStore is an in-memory implementation of storage.TraceStore with a
// bounded per-decision window.
type TraceStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.LearningTraceEntry // keyed by decision id
}

// NewTraceStore creates a new in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{
		data: make(map[string][]*domain.LearningTraceEntry),
	}
}

// Append adds a trace entry and evicts the oldest entries beyond
// domain.LearningTraceLimit.
func (s *TraceStore) Append(_ context.Context, e *domain.LearningTraceEntry) error {
	if e == nil || e.DecisionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *e
	window := append(s.data[e.DecisionID], &entryCopy)

	// Sort by recorded_at ASC before trimming so the oldest entries leave first
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].RecordedAt < window[j].RecordedAt
	})
	if len(window) > domain.LearningTraceLimit {
		window = window[len(window)-domain.LearningTraceLimit:]
	}
	s.data[e.DecisionID] = window
	return nil
}

// ListByDecision retrieves the bounded trace window for a decision, oldest first.
func (s *TraceStore) ListByDecision(_ context.Context, decisionID string) ([]*domain.LearningTraceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.data[decisionID]
	result := make([]*domain.LearningTraceEntry, 0, len(window))
	for _, e := range window {
		entryCopy := *e
		result = append(result, &entryCopy)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TraceStore = (*TraceStore)(nil)
