package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// ViolationStore implements storage.ViolationStore using PostgreSQL.
// Violations are immutable once written.
type ViolationStore struct {
	pool *Pool
}

// NewViolationStore creates a new ViolationStore.
func NewViolationStore(pool *Pool) *ViolationStore {
	return &ViolationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ViolationStore = (*ViolationStore)(nil)

// Insert adds a new violation. Returns ErrDuplicateKey if the id exists.
func (s *ViolationStore) Insert(ctx context.Context, v *domain.GuardrailViolation) error {
	if v == nil || v.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO guardrail_violations (
			violation_id, guardrail_id, outcome_id, decision_id,
			actual, threshold, direction, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		v.ID, v.GuardrailID, v.OutcomeID, v.DecisionID,
		v.Actual, v.Threshold, string(v.Direction), v.RecordedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

// ListByGuardrail retrieves all violations for a guardrail, ordered by
// RecordedAt ASC with ID ASC as the tiebreak.
func (s *ViolationStore) ListByGuardrail(ctx context.Context, guardrailID string) ([]*domain.GuardrailViolation, error) {
	query := `
		SELECT violation_id, guardrail_id, outcome_id, decision_id,
		       actual, threshold, direction, recorded_at
		FROM guardrail_violations
		WHERE guardrail_id = $1
		ORDER BY recorded_at ASC, violation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, guardrailID)
	if err != nil {
		return nil, fmt.Errorf("list violations by guardrail: %w", err)
	}
	defer rows.Close()

	return scanViolations(rows)
}

// GetByTimeRange retrieves violations recorded inside [start, end], both
// bounds inclusive, ordered by RecordedAt ASC with ID ASC as the tiebreak.
func (s *ViolationStore) GetByTimeRange(ctx context.Context, guardrailID string, start, end int64) ([]*domain.GuardrailViolation, error) {
	query := `
		SELECT violation_id, guardrail_id, outcome_id, decision_id,
		       actual, threshold, direction, recorded_at
		FROM guardrail_violations
		WHERE guardrail_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at ASC, violation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, guardrailID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get violations by time range: %w", err)
	}
	defer rows.Close()

	return scanViolations(rows)
}

// scanViolations scans multiple rows into a slice of GuardrailViolation.
func scanViolations(rows pgx.Rows) ([]*domain.GuardrailViolation, error) {
	var violations []*domain.GuardrailViolation

	for rows.Next() {
		var v domain.GuardrailViolation
		var direction string
		err := rows.Scan(
			&v.ID, &v.GuardrailID, &v.OutcomeID, &v.DecisionID,
			&v.Actual, &v.Threshold, &direction, &v.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan violation row: %w", err)
		}
		v.Direction = domain.BreachDirection(direction)
		violations = append(violations, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violation rows: %w", err)
	}
	return violations, nil
}
