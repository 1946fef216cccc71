package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// GuardrailStore implements storage.GuardrailStore using PostgreSQL.
type GuardrailStore struct {
	pool *Pool
}

// NewGuardrailStore creates a new GuardrailStore.
func NewGuardrailStore(pool *Pool) *GuardrailStore {
	return &GuardrailStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GuardrailStore = (*GuardrailStore)(nil)

// Insert adds a new guardrail. Returns ErrDuplicateKey if the id exists.
func (s *GuardrailStore) Insert(ctx context.Context, g *domain.Guardrail) error {
	if g == nil || g.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO guardrails (
			guardrail_id, decision_id, option_id, metric_name,
			threshold, direction, alert_level, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		g.ID, g.DecisionID, g.OptionID, g.MetricName,
		g.Threshold, string(g.Direction), g.AlertLevel, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert guardrail: %w", err)
	}
	return nil
}

// GetByID retrieves a guardrail by its ID. Returns ErrNotFound if not exists.
func (s *GuardrailStore) GetByID(ctx context.Context, guardrailID string) (*domain.Guardrail, error) {
	query := `
		SELECT guardrail_id, decision_id, option_id, metric_name,
		       threshold, direction, alert_level, created_at, updated_at
		FROM guardrails
		WHERE guardrail_id = $1
	`

	row := s.pool.QueryRow(ctx, query, guardrailID)
	g, err := scanGuardrail(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get guardrail by id: %w", err)
	}
	return g, nil
}

// GetByTarget retrieves the guardrails watching one metric of one option,
// ordered by ID ASC. An empty result is not an error.
func (s *GuardrailStore) GetByTarget(ctx context.Context, decisionID, optionID, metricName string) ([]*domain.Guardrail, error) {
	query := `
		SELECT guardrail_id, decision_id, option_id, metric_name,
		       threshold, direction, alert_level, created_at, updated_at
		FROM guardrails
		WHERE decision_id = $1 AND option_id = $2 AND metric_name = $3
		ORDER BY guardrail_id ASC
	`

	rows, err := s.pool.Query(ctx, query, decisionID, optionID, metricName)
	if err != nil {
		return nil, fmt.Errorf("get guardrails by target: %w", err)
	}
	defer rows.Close()

	return scanGuardrails(rows)
}

// ListByDecision retrieves all guardrails for a decision, ordered by ID ASC.
func (s *GuardrailStore) ListByDecision(ctx context.Context, decisionID string) ([]*domain.Guardrail, error) {
	query := `
		SELECT guardrail_id, decision_id, option_id, metric_name,
		       threshold, direction, alert_level, created_at, updated_at
		FROM guardrails
		WHERE decision_id = $1
		ORDER BY guardrail_id ASC
	`

	rows, err := s.pool.Query(ctx, query, decisionID)
	if err != nil {
		return nil, fmt.Errorf("list guardrails by decision: %w", err)
	}
	defer rows.Close()

	return scanGuardrails(rows)
}

// UpdateThreshold changes the threshold of an existing guardrail.
// Returns ErrNotFound if the guardrail does not exist.
func (s *GuardrailStore) UpdateThreshold(ctx context.Context, guardrailID string, newThreshold float64, updatedAt int64) error {
	query := `
		UPDATE guardrails
		SET threshold = $2, updated_at = $3
		WHERE guardrail_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, guardrailID, newThreshold, updatedAt)
	if err != nil {
		return fmt.Errorf("update guardrail threshold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a guardrail. Returns ErrNotFound if it does not exist.
func (s *GuardrailStore) Delete(ctx context.Context, guardrailID string) error {
	query := `DELETE FROM guardrails WHERE guardrail_id = $1`

	tag, err := s.pool.Exec(ctx, query, guardrailID)
	if err != nil {
		return fmt.Errorf("delete guardrail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanGuardrail scans a single row into a Guardrail.
func scanGuardrail(row pgx.Row) (*domain.Guardrail, error) {
	var g domain.Guardrail
	var direction string

	err := row.Scan(
		&g.ID, &g.DecisionID, &g.OptionID, &g.MetricName,
		&g.Threshold, &direction, &g.AlertLevel, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Direction = domain.BreachDirection(direction)
	return &g, nil
}

// scanGuardrails scans multiple rows into a slice of Guardrail.
func scanGuardrails(rows pgx.Rows) ([]*domain.Guardrail, error) {
	var guardrails []*domain.Guardrail

	for rows.Next() {
		g, err := scanGuardrail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan guardrail row: %w", err)
		}
		guardrails = append(guardrails, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guardrail rows: %w", err)
	}
	return guardrails, nil
}
