// Package orchestrator provides end-to-end pipeline orchestration.
// It coordinates: fixture load → simulation → portfolio aggregation →
// guardrail evaluation → report assembly
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"risklab/internal/domain"
	"risklab/internal/guardrail"
	"risklab/internal/metrics"
	"risklab/internal/registry"
	"risklab/internal/reporting"
	"risklab/internal/simulation"
	"risklab/internal/storage"
)

// Orchestrator coordinates the end-to-end pipeline execution.
// Flow: load → simulate → aggregate → evaluate → report
type Orchestrator struct {
	// Stores
	decisions   storage.DecisionStore
	documents   storage.DocumentStore
	guardrails  storage.GuardrailStore
	outcomes    storage.OutcomeStore
	violations  storage.ViolationStore
	adjustments storage.AdjustmentStore
	snapshots   storage.PortfolioSnapshotStore
	archive     storage.SimulationArchiveStore

	// Run scope
	fixtures    *FixtureSet
	tenant      string
	portfolioID string

	engine *simulation.Engine
	clock  func() time.Time
	logger *zap.Logger
}

// Options for creating an Orchestrator.
type Options struct {
	// Required stores
	Decisions   storage.DecisionStore
	Documents   storage.DocumentStore
	Guardrails  storage.GuardrailStore
	Outcomes    storage.OutcomeStore
	Violations  storage.ViolationStore
	Adjustments storage.AdjustmentStore
	Snapshots   storage.PortfolioSnapshotStore

	// Optional; nil skips metric-row archiving
	Archive storage.SimulationArchiveStore

	// Optional; inserted into the stores during the load phase
	Fixtures *FixtureSet

	// Run scope
	Tenant      string
	PortfolioID string // empty skips portfolio aggregation

	Engine *simulation.Engine
	Clock  func() time.Time
	Logger *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		decisions:   opts.Decisions,
		documents:   opts.Documents,
		guardrails:  opts.Guardrails,
		outcomes:    opts.Outcomes,
		violations:  opts.Violations,
		adjustments: opts.Adjustments,
		snapshots:   opts.Snapshots,
		archive:     opts.Archive,
		fixtures:    opts.Fixtures,
		tenant:      opts.Tenant,
		portfolioID: opts.PortfolioID,
		engine:      opts.Engine,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
	if o.engine == nil {
		o.engine = simulation.NewEngine()
	}
	if o.clock == nil {
		o.clock = func() time.Time { return time.Now().UTC() }
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	DecisionsLoaded    int
	DecisionsSimulated int
	OptionsSimulated   int
	OutcomesEvaluated  int
	BreachesDetected   int

	Snapshot *domain.PortfolioSnapshot
	Report   *reporting.Report

	Errors []string
}

// Run executes the full pipeline.
// Phases:
//  1. Insert fixtures and load the tenant's decisions
//  2. Simulate each decision
//  3. Aggregate portfolio metrics and append a snapshot
//  4. Evaluate fixture outcomes against guardrails
//  5. Assemble the report
//
// A phase-1 failure aborts the run; later phases collect per-item errors
// and keep going.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.logger.Info("phase 1: loading decisions", zap.String("tenant", o.tenant))
	decisions, err := o.loadDecisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load decisions): %w", err)
	}
	result.DecisionsLoaded = len(decisions)
	if len(decisions) == 0 {
		return result, nil
	}

	ctrl := guardrail.NewController(guardrail.ControllerOptions{
		Guardrails:  o.guardrails,
		Outcomes:    o.outcomes,
		Violations:  o.violations,
		Adjustments: o.adjustments,
		Clock:       o.clock,
		Logger:      o.logger,
	})

	o.logger.Info("phase 2: running simulations", zap.Int("decisions", len(decisions)))
	perDecision := o.runSimulations(ctx, decisions, result)

	o.logger.Info("phase 3: aggregating portfolio", zap.String("portfolio_id", o.portfolioID))
	o.runAggregation(ctx, perDecision, result)

	o.logger.Info("phase 4: evaluating outcomes")
	o.runEvaluation(ctx, ctrl, result)

	o.logger.Info("phase 5: assembling report")
	o.runReport(ctx, ctrl, result)

	o.logger.Info("pipeline completed",
		zap.Int("decisions", result.DecisionsLoaded),
		zap.Int("simulated", result.DecisionsSimulated),
		zap.Int("outcomes", result.OutcomesEvaluated),
		zap.Int("breaches", result.BreachesDetected),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// loadDecisions inserts fixtures, tolerating reruns over a populated store,
// then lists the tenant's decisions.
func (o *Orchestrator) loadDecisions(ctx context.Context) ([]*domain.Decision, error) {
	if o.fixtures != nil {
		for _, d := range o.fixtures.Decisions {
			if err := o.decisions.Insert(ctx, d); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				return nil, fmt.Errorf("insert fixture decision %s: %w", d.ID, err)
			}
		}
		for _, g := range o.fixtures.Guardrails {
			if err := o.guardrails.Insert(ctx, g); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				return nil, fmt.Errorf("insert fixture guardrail %s: %w", g.ID, err)
			}
		}
	}

	reg := registry.NewRegistry(o.decisions, o.documents)
	return reg.ListByTenant(ctx, o.tenant)
}

// runSimulations simulates every decision and folds the results into
// per-decision portfolio inputs.
func (o *Orchestrator) runSimulations(ctx context.Context, decisions []*domain.Decision, result *RunResult) []domain.DecisionMetrics {
	runner := simulation.NewRunner(simulation.RunnerOptions{
		DecisionStore: o.decisions,
		DocumentStore: o.documents,
		ArchiveStore:  o.archive,
		Engine:        o.engine,
		Clock:         o.clock,
		Logger:        o.logger,
	})

	rows := make([]domain.DecisionMetrics, 0, len(decisions))
	for _, d := range decisions {
		resp, err := runner.RunDecision(ctx, d, d.Variables, domain.TriggerManual)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("simulate %s: %v", d.ID, err))
			continue
		}
		result.DecisionsSimulated++
		result.OptionsSimulated += len(resp.Results)
		if m, ok := leadingMetrics(d.ID, resp.Results); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// runAggregation computes portfolio metrics over the simulated decisions
// and appends a history snapshot.
func (o *Orchestrator) runAggregation(ctx context.Context, rows []domain.DecisionMetrics, result *RunResult) {
	if o.portfolioID == "" || len(rows) == 0 {
		return
	}

	aggregator := metrics.NewPortfolioAggregator(o.snapshots).
		WithClock(o.clock).
		WithLogger(o.logger)
	snapshot, err := aggregator.Update(ctx, o.tenant, o.portfolioID, rows)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("aggregate portfolio %s: %v", o.portfolioID, err))
		return
	}
	result.Snapshot = snapshot
}

// runEvaluation feeds fixture outcomes through the guardrail controller.
// Duplicate outcomes from a rerun are skipped, not errors.
func (o *Orchestrator) runEvaluation(ctx context.Context, ctrl *guardrail.Controller, result *RunResult) {
	if o.fixtures == nil || len(o.fixtures.Outcomes) == 0 {
		return
	}

	for _, outcome := range o.fixtures.Outcomes {
		res, err := ctrl.RecordOutcome(ctx, outcome)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("evaluate outcome %s/%s: %v",
				outcome.DecisionID, outcome.MetricName, err))
			continue
		}
		result.OutcomesEvaluated++
		result.BreachesDetected += len(res.Violations)
	}
}

// runReport assembles the tenant report over everything the run produced.
func (o *Orchestrator) runReport(ctx context.Context, ctrl *guardrail.Controller, result *RunResult) {
	reg := registry.NewRegistry(o.decisions, o.documents)
	generator := reporting.NewGenerator(reg, o.guardrails, ctrl, o.snapshots).WithClock(o.clock)

	report, err := generator.Generate(ctx, o.tenant, o.portfolioID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("assemble report: %v", err))
		return
	}
	result.Report = report
}

// leadingMetrics folds a decision's option results into one portfolio row
// using the highest-EV option, the choice the dashboard would surface.
func leadingMetrics(decisionID string, results []*domain.SimulationResult) (domain.DecisionMetrics, bool) {
	if len(results) == 0 {
		return domain.DecisionMetrics{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.EV > best.EV {
			best = r
		}
	}
	return domain.DecisionMetrics{
		DecisionID: decisionID,
		EV:         best.EV,
		VaR95:      best.VaR95,
		CVaR95:     best.CVaR95,
	}, true
}
