// Package audit emits immutable events for threshold breaches, automatic
// adjustments and signal-triggered refreshes.
package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types emitted by the controllers.
const (
	EventOutcomeBreach       = "guardrail.outcome_breach"
	EventAutoAdjusted        = "guardrail.auto_adjusted"
	EventAutoRefreshed       = "decision.auto_refreshed"
	EventLearningTraceUpdate = "decision.learning_trace_updated"
)

// Event is one audit record. Payload carries the ids, before/after values
// and causes specific to the event type.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	At      int64          `json:"at"` // Unix timestamp in milliseconds
	Payload map[string]any `json:"payload,omitempty"`
}

// New creates an event with a fresh id.
func New(eventType string, at int64, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		At:      at,
		Payload: payload,
	}
}

// Sink receives audit events. Emit failures must not abort the flow that
// produced the event; callers log and continue.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// ZapSink writes audit events to a structured log.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a log-backed sink. A nil logger falls back to a no-op
// logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger}
}

// Compile-time interface check.
var _ Sink = (*ZapSink)(nil)

// Emit logs the event.
func (s *ZapSink) Emit(_ context.Context, e Event) error {
	s.logger.Info("audit event",
		zap.String("event_id", e.ID),
		zap.String("event_type", e.Type),
		zap.Int64("at", e.At),
		zap.Any("payload", e.Payload),
	)
	return nil
}
