package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// PortfolioSnapshotStore is an in-memory implementation of
// storage.PortfolioSnapshotStore with a bounded per-portfolio ring.
type PortfolioSnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PortfolioSnapshot // keyed by tenant|portfolio
}

// NewPortfolioSnapshotStore creates a new in-memory snapshot store.
func NewPortfolioSnapshotStore() *PortfolioSnapshotStore {
	return &PortfolioSnapshotStore{
		data: make(map[string][]*domain.PortfolioSnapshot),
	}
}

// portfolioKey generates a unique key for a portfolio ring.
func portfolioKey(tenant, portfolioID string) string {
	return fmt.Sprintf("%s|%s", tenant, portfolioID)
}

// Append adds a snapshot and evicts the oldest entries beyond
// domain.PortfolioHistoryLimit.
func (s *PortfolioSnapshotStore) Append(_ context.Context, snapshot *domain.PortfolioSnapshot) error {
	if snapshot == nil || snapshot.ID == "" || snapshot.Tenant == "" || snapshot.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := portfolioKey(snapshot.Tenant, snapshot.PortfolioID)
	snapshotCopy := *snapshot
	ring := append(s.data[key], &snapshotCopy)

	// Sort by recorded_at ASC before trimming so the oldest entries leave first
	sort.Slice(ring, func(i, j int) bool {
		return ring[i].RecordedAt < ring[j].RecordedAt
	})
	if len(ring) > domain.PortfolioHistoryLimit {
		ring = ring[len(ring)-domain.PortfolioHistoryLimit:]
	}
	s.data[key] = ring
	return nil
}

// History retrieves up to limit snapshots for a portfolio, newest first.
// A non-positive limit returns the full ring.
func (s *PortfolioSnapshotStore) History(_ context.Context, tenant, portfolioID string, limit int) ([]*domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.data[portfolioKey(tenant, portfolioID)]

	// Newest first
	result := make([]*domain.PortfolioSnapshot, 0, len(ring))
	for i := len(ring) - 1; i >= 0; i-- {
		snapshotCopy := *ring[i]
		result = append(result, &snapshotCopy)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PortfolioSnapshotStore = (*PortfolioSnapshotStore)(nil)
