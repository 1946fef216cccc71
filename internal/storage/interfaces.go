package storage

import (
	"context"
	"encoding/json"

	"risklab/internal/domain"
)

// DecisionStore provides access to decision definitions: options, scenario
// variables, signal links and simulation configuration.
type DecisionStore interface {
	// Insert adds a new decision. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, d *domain.Decision) error

	// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, decisionID string) (*domain.Decision, error)

	// ListByTenant retrieves all decisions for a tenant, ordered by ID ASC.
	ListByTenant(ctx context.Context, tenant string) ([]*domain.Decision, error)

	// ListBySignal retrieves decisions with a link to the signal, ordered by ID ASC.
	ListBySignal(ctx context.Context, signalID string) ([]*domain.Decision, error)
}

// GuardrailStore provides access to guardrails storage. Thresholds are
// mutated only through UpdateThreshold.
type GuardrailStore interface {
	// Insert adds a new guardrail. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, g *domain.Guardrail) error

	// GetByID retrieves a guardrail by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, guardrailID string) (*domain.Guardrail, error)

	// GetByTarget retrieves guardrails watching (decision, option, metric),
	// ordered by ID ASC. Empty result is not an error.
	GetByTarget(ctx context.Context, decisionID, optionID, metricName string) ([]*domain.Guardrail, error)

	// ListByDecision retrieves all guardrails for a decision, ordered by ID ASC.
	ListByDecision(ctx context.Context, decisionID string) ([]*domain.Guardrail, error)

	// UpdateThreshold replaces the threshold and updated-at timestamp.
	// Returns ErrNotFound if the guardrail does not exist.
	UpdateThreshold(ctx context.Context, guardrailID string, newThreshold float64, updatedAt int64) error

	// Delete removes a guardrail. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, guardrailID string) error
}

// OutcomeStore provides access to the append-only actual-outcome log.
type OutcomeStore interface {
	// Insert adds a new outcome. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, o *domain.ActualOutcome) error

	// ListByDecision retrieves all outcomes for a decision, ordered by
	// RecordedAt ASC, ID ASC.
	ListByDecision(ctx context.Context, decisionID string) ([]*domain.ActualOutcome, error)
}

// ViolationStore provides access to the append-only violation log.
type ViolationStore interface {
	// Insert adds a new violation. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, v *domain.GuardrailViolation) error

	// ListByGuardrail retrieves all violations for a guardrail, ordered by
	// RecordedAt ASC, ID ASC.
	ListByGuardrail(ctx context.Context, guardrailID string) ([]*domain.GuardrailViolation, error)

	// GetByTimeRange retrieves violations for a guardrail within
	// [start, end] (inclusive, milliseconds), ordered by RecordedAt ASC.
	GetByTimeRange(ctx context.Context, guardrailID string, start, end int64) ([]*domain.GuardrailViolation, error)
}

// AdjustmentStore provides access to the append-only auto-adjustment log.
type AdjustmentStore interface {
	// Insert adds a new adjustment record. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, a *domain.AutoAdjustmentRecord) error

	// ListByGuardrail retrieves all adjustments for a guardrail, ordered by
	// OccurredAt ASC.
	ListByGuardrail(ctx context.Context, guardrailID string) ([]*domain.AutoAdjustmentRecord, error)

	// LatestByGuardrail retrieves the most recent adjustment.
	// Returns ErrNotFound if the guardrail was never adjusted.
	LatestByGuardrail(ctx context.Context, guardrailID string) (*domain.AutoAdjustmentRecord, error)
}

// PortfolioSnapshotStore provides access to portfolio metric history.
type PortfolioSnapshotStore interface {
	// Append adds a snapshot. Implementations retain at least the last
	// domain.PortfolioHistoryLimit snapshots per portfolio; the memory
	// backend evicts beyond that bound, analytical backends may archive
	// more but serve History from the ring.
	Append(ctx context.Context, s *domain.PortfolioSnapshot) error

	// History retrieves up to limit snapshots for a portfolio, newest first.
	History(ctx context.Context, tenant, portfolioID string, limit int) ([]*domain.PortfolioSnapshot, error)
}

// TraceStore provides access to per-decision learning traces.
type TraceStore interface {
	// Append adds a trace entry. Implementations retain at least the last
	// domain.LearningTraceLimit entries per decision; the memory backend
	// evicts beyond that bound.
	Append(ctx context.Context, e *domain.LearningTraceEntry) error

	// ListByDecision retrieves the bounded trace window for a decision,
	// oldest first, at most domain.LearningTraceLimit entries.
	ListByDecision(ctx context.Context, decisionID string) ([]*domain.LearningTraceEntry, error)
}

// SimulationArchiveStore provides access to the append-only per-option
// simulation metric archive.
type SimulationArchiveStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on any invalid row.
	InsertBulk(ctx context.Context, rows []*domain.SimulationMetricRow) error

	// GetByDecision retrieves all rows for a decision, ordered by
	// RecordedAt ASC, OptionID ASC.
	GetByDecision(ctx context.Context, decisionID string) ([]*domain.SimulationMetricRow, error)
}

// DocumentStore is the tenant- and scope-keyed JSON document contract the
// core uses for opaque persistence, latest simulation results included.
type DocumentStore interface {
	// Set stores a document under (tenant, scope, key), replacing any
	// previous value.
	Set(ctx context.Context, tenant, scope, key string, doc json.RawMessage) error

	// Get retrieves a document. Returns ErrNotFound if absent.
	Get(ctx context.Context, tenant, scope, key string) (json.RawMessage, error)

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, tenant, scope, key string) error
}
