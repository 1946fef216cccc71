package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// SimulationArchiveStore is an in-memory implementation of
// storage.SimulationArchiveStore.
type SimulationArchiveStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.SimulationMetricRow // keyed by decision id
}

// NewSimulationArchiveStore creates a new in-memory archive store.
func NewSimulationArchiveStore() *SimulationArchiveStore {
	return &SimulationArchiveStore{
		data: make(map[string][]*domain.SimulationMetricRow),
	}
}

// InsertBulk adds multiple rows. Fails entire batch on any invalid row.
func (s *SimulationArchiveStore) InsertBulk(_ context.Context, rows []*domain.SimulationMetricRow) error {
	if len(rows) == 0 {
		return nil
	}

	// First pass: validate the whole batch
	for _, row := range rows {
		if row == nil || row.DecisionID == "" || row.OptionID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Second pass: insert all
	for _, row := range rows {
		rowCopy := *row
		if row.CertaintyEquivalent != nil {
			ce := *row.CertaintyEquivalent
			rowCopy.CertaintyEquivalent = &ce
		}
		s.data[row.DecisionID] = append(s.data[row.DecisionID], &rowCopy)
	}
	return nil
}

// GetByDecision retrieves all rows for a decision, ordered by RecordedAt ASC, OptionID ASC.
func (s *SimulationArchiveStore) GetByDecision(_ context.Context, decisionID string) ([]*domain.SimulationMetricRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[decisionID]
	result := make([]*domain.SimulationMetricRow, 0, len(rows))
	for _, row := range rows {
		rowCopy := *row
		if row.CertaintyEquivalent != nil {
			ce := *row.CertaintyEquivalent
			rowCopy.CertaintyEquivalent = &ce
		}
		result = append(result, &rowCopy)
	}

	// Sort by recorded_at ASC, option_id ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].RecordedAt != result[j].RecordedAt {
			return result[i].RecordedAt < result[j].RecordedAt
		}
		return result[i].OptionID < result[j].OptionID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.SimulationArchiveStore = (*SimulationArchiveStore)(nil)
