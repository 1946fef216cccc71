package clickhouse

import (
	"context"
	"fmt"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// SimulationArchiveStore implements storage.SimulationArchiveStore using
// ClickHouse.
type SimulationArchiveStore struct {
	conn *Conn
}

// NewSimulationArchiveStore creates a new SimulationArchiveStore.
func NewSimulationArchiveStore(conn *Conn) *SimulationArchiveStore {
	return &SimulationArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SimulationArchiveStore = (*SimulationArchiveStore)(nil)

// InsertBulk adds multiple rows. An invalid row fails the entire batch
// before anything is sent.
func (s *SimulationArchiveStore) InsertBulk(ctx context.Context, metricRows []*domain.SimulationMetricRow) error {
	if len(metricRows) == 0 {
		return nil
	}

	for _, r := range metricRows {
		if r == nil || r.DecisionID == "" || r.OptionID == "" || r.Runs <= 0 {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO simulation_metrics (
			tenant, decision_id, option_id, seed, runs,
			ev, var95, cvar95, certainty_equivalent,
			trigger, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range metricRows {
		err = batch.Append(
			r.Tenant, r.DecisionID, r.OptionID, r.Seed, uint32(r.Runs),
			r.EV, r.VaR95, r.CVaR95, r.CertaintyEquivalent,
			r.Trigger, uint64(r.RecordedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDecision retrieves all rows for a decision, ordered by
// RecordedAt ASC, OptionID ASC.
func (s *SimulationArchiveStore) GetByDecision(ctx context.Context, decisionID string) ([]*domain.SimulationMetricRow, error) {
	query := `
		SELECT tenant, decision_id, option_id, seed, runs,
		       ev, var95, cvar95, certainty_equivalent,
		       trigger, recorded_at
		FROM simulation_metrics
		WHERE decision_id = ?
		ORDER BY recorded_at ASC, option_id ASC
	`

	rows, err := s.conn.Query(ctx, query, decisionID)
	if err != nil {
		return nil, fmt.Errorf("query metrics by decision: %w", err)
	}
	defer rows.Close()

	var result []*domain.SimulationMetricRow
	for rows.Next() {
		var r domain.SimulationMetricRow
		var runs uint32
		var recordedAt uint64

		err := rows.Scan(
			&r.Tenant, &r.DecisionID, &r.OptionID, &r.Seed, &runs,
			&r.EV, &r.VaR95, &r.CVaR95, &r.CertaintyEquivalent,
			&r.Trigger, &recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric row: %w", err)
		}

		r.Runs = int(runs)
		r.RecordedAt = int64(recordedAt)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric rows: %w", err)
	}
	return result, nil
}
