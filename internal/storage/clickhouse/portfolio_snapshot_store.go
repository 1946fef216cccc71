package clickhouse

import (
	"context"
	"fmt"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// PortfolioSnapshotStore implements storage.PortfolioSnapshotStore using
// ClickHouse. The table keeps the full archive; History serves at most the
// ring bound the memory backend enforces.
type PortfolioSnapshotStore struct {
	conn *Conn
}

// NewPortfolioSnapshotStore creates a new PortfolioSnapshotStore.
func NewPortfolioSnapshotStore(conn *Conn) *PortfolioSnapshotStore {
	return &PortfolioSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PortfolioSnapshotStore = (*PortfolioSnapshotStore)(nil)

// Append adds a snapshot.
func (s *PortfolioSnapshotStore) Append(ctx context.Context, snapshot *domain.PortfolioSnapshot) error {
	if snapshot == nil || snapshot.ID == "" || snapshot.Tenant == "" || snapshot.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO portfolio_snapshots (
			snapshot_id, tenant, portfolio_id,
			aggregate_ev, aggregate_var95, aggregate_cvar95,
			diversification_index, antifragility_score,
			decisions, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		snapshot.ID, snapshot.Tenant, snapshot.PortfolioID,
		snapshot.Metrics.AggregateEV, snapshot.Metrics.AggregateVaR95, snapshot.Metrics.AggregateCVaR95,
		snapshot.Metrics.DiversificationIndex, snapshot.Metrics.AntifragilityScore,
		uint32(snapshot.Decisions), uint64(snapshot.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert portfolio snapshot: %w", err)
	}
	return nil
}

// History retrieves up to limit snapshots for a portfolio, newest first.
// The limit is capped at domain.PortfolioHistoryLimit; a non-positive limit
// serves the whole ring.
func (s *PortfolioSnapshotStore) History(ctx context.Context, tenant, portfolioID string, limit int) ([]*domain.PortfolioSnapshot, error) {
	if limit <= 0 || limit > domain.PortfolioHistoryLimit {
		limit = domain.PortfolioHistoryLimit
	}

	query := `
		SELECT snapshot_id, tenant, portfolio_id,
		       aggregate_ev, aggregate_var95, aggregate_cvar95,
		       diversification_index, antifragility_score,
		       decisions, recorded_at
		FROM portfolio_snapshots
		WHERE tenant = ? AND portfolio_id = ?
		ORDER BY recorded_at DESC, snapshot_id DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, tenant, portfolioID, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query portfolio history: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.PortfolioSnapshot
	for rows.Next() {
		var snap domain.PortfolioSnapshot
		var decisions uint32
		var recordedAt uint64

		err := rows.Scan(
			&snap.ID, &snap.Tenant, &snap.PortfolioID,
			&snap.Metrics.AggregateEV, &snap.Metrics.AggregateVaR95, &snap.Metrics.AggregateCVaR95,
			&snap.Metrics.DiversificationIndex, &snap.Metrics.AntifragilityScore,
			&decisions, &recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio snapshot row: %w", err)
		}

		snap.Decisions = int(decisions)
		snap.RecordedAt = int64(recordedAt)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio snapshot rows: %w", err)
	}
	return snapshots, nil
}
