package refresh

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"risklab/internal/audit"
	"risklab/internal/domain"
	"risklab/internal/learning"
	"risklab/internal/registry"
	"risklab/internal/simulation"
)

// Pass processing defaults.
const (
	DefaultEligibilityThreshold = 0.05 // fractional signal change
	DefaultBatchSize            = 10
)

// DecisionResult reports one decision inside a refresh pass.
type DecisionResult struct {
	DecisionID string
	Success    bool
	Err        error
}

// PassResult summarizes one refresh pass.
type PassResult struct {
	PassID    string
	Eligible  int
	Refreshed int
	Failed    int
	Decisions []DecisionResult
}

// Controller turns coalesced signal batches into simulation refreshes and
// learning-trace updates.
type Controller struct {
	registry  *registry.Registry
	runner    *simulation.Runner
	tracker   *learning.Tracker
	sink      audit.Sink
	threshold float64
	batchSize int
	clock     func() time.Time
	logger    *zap.Logger
}

// ControllerOptions contains configuration for creating a Controller.
// Tracker is optional; when nil the learning-trace step is skipped.
type ControllerOptions struct {
	Registry             *registry.Registry
	Runner               *simulation.Runner
	Tracker              *learning.Tracker
	Audit                audit.Sink
	EligibilityThreshold float64 // defaults to DefaultEligibilityThreshold
	BatchSize            int     // defaults to DefaultBatchSize
	Clock                func() time.Time
	Logger               *zap.Logger
}

// NewController creates a refresh controller.
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		registry:  opts.Registry,
		runner:    opts.Runner,
		tracker:   opts.Tracker,
		sink:      opts.Audit,
		threshold: opts.EligibilityThreshold,
		batchSize: opts.BatchSize,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
	if c.sink == nil {
		c.sink = audit.NewZapSink(nil)
	}
	if c.threshold <= 0 {
		c.threshold = DefaultEligibilityThreshold
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultBatchSize
	}
	if c.clock == nil {
		c.clock = func() time.Time { return time.Now().UTC() }
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Process runs one refresh pass over a coalesced signal batch.
// Steps:
//  1. Keep signals whose movement reaches the eligibility threshold
//  2. Collect the distinct decisions linked to any eligible signal
//  3. Refresh candidates concurrently, bounded by the batch size, isolating
//     per-decision failures
func (c *Controller) Process(ctx context.Context, updates []domain.SignalUpdate) (*PassResult, error) {
	result := &PassResult{PassID: uuid.NewString()}
	if len(updates) == 0 {
		return result, nil
	}

	// 1. Eligible signal movements
	batch := make(map[string]domain.SignalUpdate, len(updates))
	eligible := make([]string, 0, len(updates))
	for _, u := range updates {
		if u.SignalID == "" {
			continue
		}
		batch[u.SignalID] = u
		if math.Abs(u.ChangePercent) >= c.threshold {
			eligible = append(eligible, u.SignalID)
		}
	}
	sort.Strings(eligible)

	// 2. Distinct candidate decisions, ordered by id
	seen := make(map[string]bool)
	var candidates []*domain.Decision
	for _, signalID := range eligible {
		decisions, err := c.registry.ListBySignal(ctx, signalID)
		if err != nil {
			return nil, fmt.Errorf("list decisions for signal %q: %w", signalID, err)
		}
		for _, d := range decisions {
			if !seen[d.ID] {
				seen[d.ID] = true
				candidates = append(candidates, d)
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	result.Eligible = len(candidates)
	if len(candidates) == 0 {
		c.logger.Debug("refresh pass had no eligible decisions",
			zap.String("pass_id", result.PassID),
			zap.Int("signals", len(batch)),
		)
		return result, nil
	}

	// 3. Bounded concurrent refresh, one slot per result index
	result.Decisions = make([]DecisionResult, len(candidates))
	g := &errgroup.Group{}
	g.SetLimit(c.batchSize)
	for i, d := range candidates {
		g.Go(func() error {
			err := c.refreshOne(ctx, d, batch)
			result.Decisions[i] = DecisionResult{DecisionID: d.ID, Success: err == nil, Err: err}
			return nil
		})
	}
	// Failures stay per decision; the group never carries an error.
	_ = g.Wait()

	for _, dr := range result.Decisions {
		if dr.Success {
			result.Refreshed++
		} else {
			result.Failed++
		}
	}

	c.logger.Info("refresh pass completed",
		zap.String("pass_id", result.PassID),
		zap.Int("eligible", result.Eligible),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// refreshOne reruns one decision with shifted variables and records the
// utility movement per option.
func (c *Controller) refreshOne(ctx context.Context, d *domain.Decision, batch map[string]domain.SignalUpdate) error {
	prior := c.priorUtilities(ctx, d)

	shifted := shiftedVariables(d, batch)
	resp, err := c.runner.RunDecision(ctx, d, shifted, domain.TriggerSignalRefresh)
	if err != nil {
		c.logger.Warn("decision refresh failed",
			zap.String("decision_id", d.ID),
			zap.Error(err),
		)
		return err
	}

	shock := shockMagnitude(d, batch)
	signals := triggeringSignals(d, batch)
	recordedAt := c.clock().UnixMilli()

	traced := 0
	if c.tracker != nil {
		for _, r := range resp.Results {
			if r.Utility == nil {
				continue
			}
			previous, ok := prior[r.OptionID]
			if !ok {
				continue
			}
			_, err := c.tracker.Record(ctx, learning.Shock{
				DecisionID:      d.ID,
				OptionID:        r.OptionID,
				PreviousUtility: previous,
				NewUtility:      r.Utility.ExpectedUtility,
				ShockMagnitude:  shock,
				RecordedAt:      recordedAt,
			})
			if err != nil {
				c.logger.Warn("learning trace append failed",
					zap.String("decision_id", d.ID),
					zap.String("option_id", r.OptionID),
					zap.Error(err),
				)
				continue
			}
			traced++
		}
	}

	event := audit.New(audit.EventAutoRefreshed, c.clock().UnixMilli(), map[string]any{
		"decisionId":     d.ID,
		"signalIds":      signals,
		"shockMagnitude": shock,
		"tracedOptions":  traced,
	})
	if err := c.sink.Emit(ctx, event); err != nil {
		c.logger.Warn("audit emit failed",
			zap.String("event_type", audit.EventAutoRefreshed),
			zap.Error(err),
		)
	}

	c.logger.Info("decision auto-refreshed",
		zap.String("decision_id", d.ID),
		zap.Strings("signal_ids", signals),
		zap.Float64("shock_magnitude", shock),
		zap.Int("traced_options", traced),
	)
	return nil
}

// priorUtilities loads the previous expected utility per option. Decisions
// without prior results refresh without trace entries.
func (c *Controller) priorUtilities(ctx context.Context, d *domain.Decision) map[string]float64 {
	stored, err := c.registry.PriorResults(ctx, d.Tenant, d.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("prior results unavailable",
				zap.String("decision_id", d.ID),
				zap.Error(err),
			)
		}
		return nil
	}

	prior := make(map[string]float64, len(stored.Results))
	for _, r := range stored.Results {
		if r.Utility != nil {
			prior[r.OptionID] = r.Utility.ExpectedUtility
		}
	}
	return prior
}
