// Package guardrail ingests actual outcomes, tracks threshold breaches and
// tightens thresholds automatically when breaches repeat.
package guardrail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"risklab/internal/audit"
	"risklab/internal/domain"
	"risklab/internal/idhash"
	"risklab/internal/storage"
)

// Result reports what one outcome ingestion caused. An outcome with no
// guardrails on its metric yields an empty result, not an error.
type Result struct {
	OutcomeID   string
	Violations  []*domain.GuardrailViolation
	Adjustments []*domain.AutoAdjustmentRecord
}

// Controller drives the per-guardrail breach state machine.
type Controller struct {
	guardrails  storage.GuardrailStore
	outcomes    storage.OutcomeStore
	violations  storage.ViolationStore
	adjustments storage.AdjustmentStore
	sink        audit.Sink
	clock       func() time.Time
	logger      *zap.Logger
}

// ControllerOptions contains configuration for creating a Controller.
type ControllerOptions struct {
	Guardrails  storage.GuardrailStore
	Outcomes    storage.OutcomeStore
	Violations  storage.ViolationStore
	Adjustments storage.AdjustmentStore
	Audit       audit.Sink
	Clock       func() time.Time
	Logger      *zap.Logger
}

// NewController creates a guardrail controller.
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		guardrails:  opts.Guardrails,
		outcomes:    opts.Outcomes,
		violations:  opts.Violations,
		adjustments: opts.Adjustments,
		sink:        opts.Audit,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
	if c.sink == nil {
		c.sink = audit.NewZapSink(nil)
	}
	if c.clock == nil {
		c.clock = func() time.Time { return time.Now().UTC() }
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// RecordOutcome ingests one actual outcome.
// Steps:
//  1. Persist the outcome (id derived when absent)
//  2. Load guardrails watching the outcome's metric; none is a no-op
//  3. For each breached guardrail, persist a violation and emit audit
//  4. Re-count the in-window breaches and tighten when the count reaches
//     the adjustment bar
func (c *Controller) RecordOutcome(ctx context.Context, outcome *domain.ActualOutcome) (*Result, error) {
	if outcome == nil || outcome.DecisionID == "" || outcome.MetricName == "" {
		return nil, fmt.Errorf("%w: outcome requires decision id and metric name", domain.ErrInvalidConfig)
	}

	// 1. Persist the outcome
	if outcome.ID == "" {
		outcome.ID = idhash.ComputeOutcomeID(outcome.DecisionID, outcome.OptionID, outcome.MetricName, outcome.RecordedAt, outcome.Source)
	}
	if err := c.outcomes.Insert(ctx, outcome); err != nil {
		return nil, fmt.Errorf("persist outcome: %w", err)
	}

	result := &Result{OutcomeID: outcome.ID}

	// 2. Load the guardrails watching this metric
	watching, err := c.guardrails.GetByTarget(ctx, outcome.DecisionID, outcome.OptionID, outcome.MetricName)
	if err != nil {
		return nil, fmt.Errorf("load guardrails: %w", err)
	}
	if len(watching) == 0 {
		c.logger.Debug("outcome recorded without guardrails",
			zap.String("decision_id", outcome.DecisionID),
			zap.String("metric", outcome.MetricName),
		)
		return result, nil
	}

	for _, g := range watching {
		if !g.IsBreachedBy(outcome.Actual) {
			continue
		}

		// 3. Persist the violation
		violation, err := c.recordViolation(ctx, g, outcome)
		if err != nil {
			return nil, err
		}
		result.Violations = append(result.Violations, violation)

		// 4. Tighten when the in-window count reaches the bar
		adjustment, err := c.maybeAdjust(ctx, g, violation)
		if err != nil {
			return nil, err
		}
		if adjustment != nil {
			result.Adjustments = append(result.Adjustments, adjustment)
		}
	}

	return result, nil
}

// recordViolation persists one breach and emits the audit event.
func (c *Controller) recordViolation(ctx context.Context, g *domain.Guardrail, outcome *domain.ActualOutcome) (*domain.GuardrailViolation, error) {
	violation := &domain.GuardrailViolation{
		ID:          idhash.ComputeViolationID(g.ID, outcome.ID, outcome.RecordedAt),
		GuardrailID: g.ID,
		OutcomeID:   outcome.ID,
		DecisionID:  outcome.DecisionID,
		Actual:      outcome.Actual,
		Threshold:   g.Threshold,
		Direction:   g.Direction,
		RecordedAt:  outcome.RecordedAt,
	}
	if err := c.violations.Insert(ctx, violation); err != nil {
		return nil, fmt.Errorf("persist violation: %w", err)
	}

	c.emit(ctx, audit.EventOutcomeBreach, map[string]any{
		"guardrailId": g.ID,
		"violationId": violation.ID,
		"outcomeId":   outcome.ID,
		"decisionId":  outcome.DecisionID,
		"actual":      outcome.Actual,
		"threshold":   g.Threshold,
		"direction":   string(g.Direction),
		"alertLevel":  g.AlertLevel,
	})
	c.logger.Info("guardrail breached",
		zap.String("guardrail_id", g.ID),
		zap.Float64("actual", outcome.Actual),
		zap.Float64("threshold", g.Threshold),
		zap.String("direction", string(g.Direction)),
	)
	return violation, nil
}

// maybeAdjust counts breaches in the rolling window ending at the newest
// violation, excluding those consumed by the latest adjustment, and
// tightens the threshold when the count reaches the adjustment bar.
func (c *Controller) maybeAdjust(ctx context.Context, g *domain.Guardrail, newest *domain.GuardrailViolation) (*domain.AutoAdjustmentRecord, error) {
	windowed, err := c.countableViolations(ctx, g.ID, newest.RecordedAt)
	if err != nil {
		return nil, err
	}
	if len(windowed) < domain.BreachesForAdjustment {
		return nil, nil
	}

	factor := domain.TightenFactorAbove
	if g.Direction == domain.DirectionBelow {
		factor = domain.TightenFactorBelow
	}
	newThreshold := g.Threshold * factor
	occurredAt := newest.RecordedAt

	if err := c.guardrails.UpdateThreshold(ctx, g.ID, newThreshold, occurredAt); err != nil {
		return nil, fmt.Errorf("update threshold: %w", err)
	}

	triggeredBy := make([]string, 0, len(windowed))
	for _, v := range windowed {
		triggeredBy = append(triggeredBy, v.ID)
	}

	record := &domain.AutoAdjustmentRecord{
		ID:                idhash.ComputeAdjustmentID(g.ID, occurredAt, triggeredBy),
		GuardrailID:       g.ID,
		OldThreshold:      g.Threshold,
		NewThreshold:      newThreshold,
		AdjustmentPercent: (factor - 1) * 100,
		TriggeredBy:       triggeredBy,
		OccurredAt:        occurredAt,
	}
	if err := c.adjustments.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist adjustment: %w", err)
	}

	c.emit(ctx, audit.EventAutoAdjusted, map[string]any{
		"guardrailId":       g.ID,
		"adjustmentId":      record.ID,
		"oldThreshold":      record.OldThreshold,
		"newThreshold":      record.NewThreshold,
		"adjustmentPercent": record.AdjustmentPercent,
		"triggeredBy":       triggeredBy,
	})
	c.logger.Info("guardrail auto-adjusted",
		zap.String("guardrail_id", g.ID),
		zap.Float64("old_threshold", record.OldThreshold),
		zap.Float64("new_threshold", record.NewThreshold),
		zap.Int("triggering_breaches", len(triggeredBy)),
	)
	return record, nil
}

// countableViolations returns the violations inside the rolling window
// ending at asOf, restricted to those after the latest adjustment. That
// restriction is the counter reset: consumed breaches never count twice.
func (c *Controller) countableViolations(ctx context.Context, guardrailID string, asOf int64) ([]*domain.GuardrailViolation, error) {
	start := asOf - domain.BreachWindowMs

	latest, err := c.adjustments.LatestByGuardrail(ctx, guardrailID)
	switch {
	case err == nil:
		if latest.OccurredAt+1 > start {
			start = latest.OccurredAt + 1
		}
	case errors.Is(err, storage.ErrNotFound):
		// no adjustment yet, the window alone bounds the count
	default:
		return nil, fmt.Errorf("load latest adjustment: %w", err)
	}

	if start > asOf {
		return nil, nil
	}

	windowed, err := c.violations.GetByTimeRange(ctx, guardrailID, start, asOf)
	if err != nil {
		return nil, fmt.Errorf("load windowed violations: %w", err)
	}
	return windowed, nil
}

// State derives the controller state for one guardrail.
func (c *Controller) State(ctx context.Context, guardrailID string) (*domain.GuardrailState, error) {
	if _, err := c.guardrails.GetByID(ctx, guardrailID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: guardrail %q", domain.ErrNotFound, guardrailID)
		}
		return nil, fmt.Errorf("load guardrail: %w", err)
	}

	state := &domain.GuardrailState{
		GuardrailID: guardrailID,
		Phase:       domain.PhaseNormal,
	}

	all, err := c.violations.ListByGuardrail(ctx, guardrailID)
	if err != nil {
		return nil, fmt.Errorf("load violations: %w", err)
	}
	if len(all) == 0 {
		return state, nil
	}

	newest := all[len(all)-1]
	windowed, err := c.countableViolations(ctx, guardrailID, newest.RecordedAt)
	if err != nil {
		return nil, err
	}
	if len(windowed) == 0 {
		return state, nil
	}

	state.Phase = domain.PhaseBreached
	state.BreachCount = len(windowed)
	state.LastBreachAt = windowed[len(windowed)-1].RecordedAt
	return state, nil
}

// emit sends an audit event; failures are logged, never propagated.
func (c *Controller) emit(ctx context.Context, eventType string, payload map[string]any) {
	event := audit.New(eventType, c.clock().UnixMilli(), payload)
	if err := c.sink.Emit(ctx, event); err != nil {
		c.logger.Warn("audit emit failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
