// Package learning maintains per-decision learning traces and classifies
// decisions on the fragile-to-antifragile scale.
package learning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"risklab/internal/audit"
	"risklab/internal/domain"
	"risklab/internal/storage"
)

// Shock describes one utility movement under a signal shock.
type Shock struct {
	DecisionID      string
	OptionID        string
	PreviousUtility float64
	NewUtility      float64
	ShockMagnitude  float64 // max |changePercent| * 100 over triggering signals
	RecordedAt      int64   // Unix timestamp in milliseconds, clock-now when 0
}

// Report is the learning classification of one decision.
type Report struct {
	DecisionID string
	Score      float64 // mean recovery ratio over the trace window
	Band       string
	Entries    int
}

// Tracker records utility shocks and derives learning scores.
type Tracker struct {
	traces storage.TraceStore
	sink   audit.Sink
	clock  func() time.Time
	logger *zap.Logger
}

// TrackerOptions contains configuration for creating a Tracker.
type TrackerOptions struct {
	Traces storage.TraceStore
	Audit  audit.Sink
	Clock  func() time.Time
	Logger *zap.Logger
}

// NewTracker creates a learning tracker.
func NewTracker(opts TrackerOptions) *Tracker {
	t := &Tracker{
		traces: opts.Traces,
		sink:   opts.Audit,
		clock:  opts.Clock,
		logger: opts.Logger,
	}
	if t.sink == nil {
		t.sink = audit.NewZapSink(nil)
	}
	if t.clock == nil {
		t.clock = func() time.Time { return time.Now().UTC() }
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	return t
}

// Record derives the delta and recovery ratio for one shock and appends the
// trace entry. A zero-magnitude shock yields a zero ratio rather than a
// division error.
func (t *Tracker) Record(ctx context.Context, shock Shock) (*domain.LearningTraceEntry, error) {
	if shock.DecisionID == "" || shock.OptionID == "" {
		return nil, fmt.Errorf("%w: shock requires decision id and option id", domain.ErrInvalidConfig)
	}
	if shock.ShockMagnitude < 0 {
		return nil, fmt.Errorf("%w: shock magnitude %f is negative", domain.ErrInvalidConfig, shock.ShockMagnitude)
	}

	recordedAt := shock.RecordedAt
	if recordedAt == 0 {
		recordedAt = t.clock().UnixMilli()
	}

	delta := shock.NewUtility - shock.PreviousUtility
	ratio := 0.0
	if shock.ShockMagnitude != 0 {
		ratio = delta / shock.ShockMagnitude
	}

	entry := &domain.LearningTraceEntry{
		DecisionID:      shock.DecisionID,
		OptionID:        shock.OptionID,
		PreviousUtility: shock.PreviousUtility,
		NewUtility:      shock.NewUtility,
		DeltaUtility:    delta,
		ShockMagnitude:  shock.ShockMagnitude,
		RecoveryRatio:   ratio,
		RecordedAt:      recordedAt,
	}
	if err := t.traces.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append trace entry: %w", err)
	}

	event := audit.New(audit.EventLearningTraceUpdate, t.clock().UnixMilli(), map[string]any{
		"decisionId":     entry.DecisionID,
		"optionId":       entry.OptionID,
		"deltaUtility":   entry.DeltaUtility,
		"shockMagnitude": entry.ShockMagnitude,
		"recoveryRatio":  entry.RecoveryRatio,
	})
	if err := t.sink.Emit(ctx, event); err != nil {
		t.logger.Warn("audit emit failed",
			zap.String("event_type", audit.EventLearningTraceUpdate),
			zap.Error(err),
		)
	}

	t.logger.Debug("learning trace updated",
		zap.String("decision_id", entry.DecisionID),
		zap.String("option_id", entry.OptionID),
		zap.Float64("recovery_ratio", entry.RecoveryRatio),
	)
	return entry, nil
}

// Trace retrieves the bounded trace window for a decision, oldest first.
func (t *Tracker) Trace(ctx context.Context, decisionID string) ([]*domain.LearningTraceEntry, error) {
	if decisionID == "" {
		return nil, fmt.Errorf("%w: decision id is empty", domain.ErrInvalidConfig)
	}
	entries, err := t.traces.ListByDecision(ctx, decisionID)
	if err != nil {
		return nil, fmt.Errorf("list trace: %w", err)
	}
	return entries, nil
}

// Assess derives the learning score and band for a decision. An empty trace
// scores zero, which classifies as Robust.
func (t *Tracker) Assess(ctx context.Context, decisionID string) (*Report, error) {
	entries, err := t.Trace(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		DecisionID: decisionID,
		Score:      Score(entries),
		Entries:    len(entries),
	}
	report.Band = Classify(report.Score)
	return report, nil
}

// Score is the mean recovery ratio over a trace window. Empty windows score
// zero.
func Score(entries []*domain.LearningTraceEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range entries {
		sum += e.RecoveryRatio
	}
	return sum / float64(len(entries))
}

// Classify maps a learning score to its antifragility band.
func Classify(score float64) string {
	switch {
	case score <= -0.5:
		return domain.BandHighlyFragile
	case score <= -0.1:
		return domain.BandFragile
	case score < 0.1:
		return domain.BandRobust
	case score < 0.5:
		return domain.BandAntifragile
	default:
		return domain.BandHighlyAntifragile
	}
}
