package postgres

import (
	"context"
	"fmt"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
// Outcomes are append-only; there is no update or delete path.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// Insert adds a new outcome. Returns ErrDuplicateKey if the id exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.ActualOutcome) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO actual_outcomes (
			outcome_id, decision_id, option_id, metric_name,
			actual, recorded_at, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.DecisionID, o.OptionID, o.MetricName,
		o.Actual, o.RecordedAt, o.Source,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListByDecision retrieves all outcomes for a decision, ordered by
// RecordedAt ASC with ID ASC as the tiebreak.
func (s *OutcomeStore) ListByDecision(ctx context.Context, decisionID string) ([]*domain.ActualOutcome, error) {
	query := `
		SELECT outcome_id, decision_id, option_id, metric_name,
		       actual, recorded_at, source
		FROM actual_outcomes
		WHERE decision_id = $1
		ORDER BY recorded_at ASC, outcome_id ASC
	`

	rows, err := s.pool.Query(ctx, query, decisionID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes by decision: %w", err)
	}
	defer rows.Close()

	var outcomes []*domain.ActualOutcome
	for rows.Next() {
		var o domain.ActualOutcome
		err := rows.Scan(
			&o.ID, &o.DecisionID, &o.OptionID, &o.MetricName,
			&o.Actual, &o.RecordedAt, &o.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outcome row: %w", err)
		}
		outcomes = append(outcomes, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome rows: %w", err)
	}
	return outcomes, nil
}
