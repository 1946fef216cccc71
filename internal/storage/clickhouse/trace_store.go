package clickhouse

import (
	"context"
	"fmt"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// TraceStore implements storage.TraceStore using ClickHouse. The table keeps
// the full archive; ListByDecision serves the bounded window.
type TraceStore struct {
	conn *Conn
}

// NewTraceStore creates a new TraceStore.
func NewTraceStore(conn *Conn) *TraceStore {
	return &TraceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TraceStore = (*TraceStore)(nil)

// Append adds a trace entry.
func (s *TraceStore) Append(ctx context.Context, e *domain.LearningTraceEntry) error {
	if e == nil || e.DecisionID == "" || e.OptionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO learning_trace (
			decision_id, option_id,
			previous_utility, new_utility, delta_utility,
			shock_magnitude, recovery_ratio, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		e.DecisionID, e.OptionID,
		e.PreviousUtility, e.NewUtility, e.DeltaUtility,
		e.ShockMagnitude, e.RecoveryRatio, uint64(e.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trace entry: %w", err)
	}
	return nil
}

// ListByDecision retrieves the newest domain.LearningTraceLimit entries for
// a decision, returned oldest first.
func (s *TraceStore) ListByDecision(ctx context.Context, decisionID string) ([]*domain.LearningTraceEntry, error) {
	// Inner query selects the newest window, outer reverses to oldest first
	query := `
		SELECT decision_id, option_id,
		       previous_utility, new_utility, delta_utility,
		       shock_magnitude, recovery_ratio, recorded_at
		FROM (
			SELECT decision_id, option_id,
			       previous_utility, new_utility, delta_utility,
			       shock_magnitude, recovery_ratio, recorded_at
			FROM learning_trace
			WHERE decision_id = ?
			ORDER BY recorded_at DESC, option_id DESC
			LIMIT ?
		)
		ORDER BY recorded_at ASC, option_id ASC
	`

	rows, err := s.conn.Query(ctx, query, decisionID, uint64(domain.LearningTraceLimit))
	if err != nil {
		return nil, fmt.Errorf("query trace by decision: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LearningTraceEntry
	for rows.Next() {
		var e domain.LearningTraceEntry
		var recordedAt uint64

		err := rows.Scan(
			&e.DecisionID, &e.OptionID,
			&e.PreviousUtility, &e.NewUtility, &e.DeltaUtility,
			&e.ShockMagnitude, &e.RecoveryRatio, &recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}

		e.RecordedAt = int64(recordedAt)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace rows: %w", err)
	}
	return entries, nil
}
