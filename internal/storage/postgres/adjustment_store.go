package postgres

import (
	"context"
	"fmt"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// AdjustmentStore implements storage.AdjustmentStore using PostgreSQL.
// Adjustment records are the immutable audit trail of automatic threshold
// changes.
type AdjustmentStore struct {
	pool *Pool
}

// NewAdjustmentStore creates a new AdjustmentStore.
func NewAdjustmentStore(pool *Pool) *AdjustmentStore {
	return &AdjustmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AdjustmentStore = (*AdjustmentStore)(nil)

// Insert adds a new adjustment record. Returns ErrDuplicateKey if the id
// exists.
func (s *AdjustmentStore) Insert(ctx context.Context, a *domain.AutoAdjustmentRecord) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	triggeredBy := a.TriggeredBy
	if triggeredBy == nil {
		triggeredBy = []string{}
	}

	query := `
		INSERT INTO auto_adjustments (
			adjustment_id, guardrail_id, old_threshold, new_threshold,
			adjustment_percent, triggered_by, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.GuardrailID, a.OldThreshold, a.NewThreshold,
		a.AdjustmentPercent, triggeredBy, a.OccurredAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert adjustment: %w", err)
	}
	return nil
}

// ListByGuardrail retrieves all adjustments for a guardrail, ordered by
// OccurredAt ASC with ID ASC as the tiebreak.
func (s *AdjustmentStore) ListByGuardrail(ctx context.Context, guardrailID string) ([]*domain.AutoAdjustmentRecord, error) {
	query := `
		SELECT adjustment_id, guardrail_id, old_threshold, new_threshold,
		       adjustment_percent, triggered_by, occurred_at
		FROM auto_adjustments
		WHERE guardrail_id = $1
		ORDER BY occurred_at ASC, adjustment_id ASC
	`

	rows, err := s.pool.Query(ctx, query, guardrailID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments by guardrail: %w", err)
	}
	defer rows.Close()

	var adjustments []*domain.AutoAdjustmentRecord
	for rows.Next() {
		var a domain.AutoAdjustmentRecord
		err := rows.Scan(
			&a.ID, &a.GuardrailID, &a.OldThreshold, &a.NewThreshold,
			&a.AdjustmentPercent, &a.TriggeredBy, &a.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan adjustment row: %w", err)
		}
		adjustments = append(adjustments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate adjustment rows: %w", err)
	}
	return adjustments, nil
}

// LatestByGuardrail retrieves the most recent adjustment for a guardrail.
// Returns ErrNotFound if none exists.
func (s *AdjustmentStore) LatestByGuardrail(ctx context.Context, guardrailID string) (*domain.AutoAdjustmentRecord, error) {
	query := `
		SELECT adjustment_id, guardrail_id, old_threshold, new_threshold,
		       adjustment_percent, triggered_by, occurred_at
		FROM auto_adjustments
		WHERE guardrail_id = $1
		ORDER BY occurred_at DESC, adjustment_id DESC
		LIMIT 1
	`

	var a domain.AutoAdjustmentRecord
	err := s.pool.QueryRow(ctx, query, guardrailID).Scan(
		&a.ID, &a.GuardrailID, &a.OldThreshold, &a.NewThreshold,
		&a.AdjustmentPercent, &a.TriggeredBy, &a.OccurredAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest adjustment: %w", err)
	}
	return &a, nil
}
