package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// DocKeyLatestResults is the document key under which the most recent
// simulation results for a decision are stored. The document scope is the
// decision ID.
const DocKeyLatestResults = "simulation.latest"

// StoredResults is the JSON document persisted after each simulation. It
// keeps summary metrics only; raw outcome arrays stay in memory.
type StoredResults struct {
	DecisionID string               `json:"decisionId"`
	Tenant     string               `json:"tenant"`
	Seed       int64                `json:"seed"`
	Runs       int                  `json:"runs"`
	Trigger    string               `json:"trigger"`
	RecordedAt int64                `json:"recordedAt"`
	Results    []StoredOptionResult `json:"results"`
	Dependence *StoredDependence    `json:"dependence,omitempty"`
}

// StoredOptionResult is one option's summary inside StoredResults.
type StoredOptionResult struct {
	OptionID string         `json:"optionId"`
	Label    string         `json:"label"`
	EV       float64        `json:"ev"`
	VaR95    float64        `json:"var95"`
	CVaR95   float64        `json:"cvar95"`
	Utility  *StoredUtility `json:"utility,omitempty"`
}

// StoredUtility mirrors domain.UtilityResult for persistence.
type StoredUtility struct {
	Mode                string  `json:"mode"`
	ExpectedUtility     float64 `json:"expectedUtility"`
	CertaintyEquivalent float64 `json:"certaintyEquivalent"`
	RiskPremium         float64 `json:"riskPremium"`
}

// StoredDependence mirrors domain.DependenceReport for persistence.
type StoredDependence struct {
	Keys           []string    `json:"keys"`
	Target         [][]float64 `json:"target"`
	Achieved       [][]float64 `json:"achieved"`
	FrobeniusError float64     `json:"frobeniusError"`
}

// Runner executes simulations for stored decisions and persists the
// resulting summaries.
type Runner struct {
	decisionStore storage.DecisionStore
	documentStore storage.DocumentStore
	archiveStore  storage.SimulationArchiveStore
	engine        *Engine
	clock         func() time.Time
	logger        *zap.Logger
}

// RunnerOptions contains configuration for creating a Runner.
// DocumentStore and ArchiveStore are optional; when nil the corresponding
// persistence step is skipped.
type RunnerOptions struct {
	DecisionStore storage.DecisionStore
	DocumentStore storage.DocumentStore
	ArchiveStore  storage.SimulationArchiveStore
	Engine        *Engine
	Clock         func() time.Time
	Logger        *zap.Logger
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		decisionStore: opts.DecisionStore,
		documentStore: opts.DocumentStore,
		archiveStore:  opts.ArchiveStore,
		engine:        opts.Engine,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if r.engine == nil {
		r.engine = NewEngine()
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Run executes a manually triggered simulation for a stored decision.
// Steps:
//  1. Load decision by ID
//  2. Delegate to RunDecision with the declared variables
func (r *Runner) Run(ctx context.Context, decisionID string) (*Response, error) {
	// 1. Load decision by ID
	decision, err := r.decisionStore.GetByID(ctx, decisionID)
	if err != nil {
		return nil, err // propagates storage.ErrNotFound
	}

	// 2. Delegate with declared variables
	return r.RunDecision(ctx, decision, decision.Variables, domain.TriggerManual)
}

// RunDecision simulates a decision with the given variable set. Refresh
// passes adjusted variables here; manual runs pass the declared ones.
// Steps:
//  1. Build the engine request
//  2. Simulate
//  3. Persist the latest-results document
//  4. Archive per-option metric rows
func (r *Runner) RunDecision(ctx context.Context, decision *domain.Decision, variables []domain.ScenarioVariable, trigger string) (*Response, error) {
	if decision == nil {
		return nil, fmt.Errorf("%w: decision is nil", domain.ErrInvalidConfig)
	}

	// 1. Build the engine request
	req := Request{
		Options:    decision.Options,
		Variables:  variables,
		Seed:       decision.Seed,
		Runs:       decision.Runs,
		Utility:    decision.Utility,
		Game:       decision.Game,
		Dependence: decision.Dependence,
		Copula:     decision.Copula,
		Overrides:  decision.Overrides,
	}

	// 2. Simulate
	resp, err := r.engine.Simulate(ctx, req)
	if err != nil {
		return nil, err
	}

	recordedAt := r.clock().UnixMilli()

	// 3. Persist the latest-results document
	if r.documentStore != nil {
		doc := buildStoredResults(decision, resp, trigger, recordedAt)
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal simulation results: %w", err)
		}
		if err := r.documentStore.Set(ctx, decision.Tenant, decision.ID, DocKeyLatestResults, payload); err != nil {
			return nil, err
		}
	}

	// 4. Archive per-option metric rows
	if r.archiveStore != nil {
		rows := make([]*domain.SimulationMetricRow, 0, len(resp.Results))
		for _, result := range resp.Results {
			row := &domain.SimulationMetricRow{
				Tenant:     decision.Tenant,
				DecisionID: decision.ID,
				OptionID:   result.OptionID,
				Seed:       decision.Seed,
				Runs:       decision.Runs,
				EV:         result.EV,
				VaR95:      result.VaR95,
				CVaR95:     result.CVaR95,
				Trigger:    trigger,
				RecordedAt: recordedAt,
			}
			if result.Utility != nil {
				ce := result.Utility.CertaintyEquivalent
				row.CertaintyEquivalent = &ce
			}
			rows = append(rows, row)
		}
		if err := r.archiveStore.InsertBulk(ctx, rows); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("simulation completed",
		zap.String("decision_id", decision.ID),
		zap.String("trigger", trigger),
		zap.Int("options", len(resp.Results)),
		zap.Int("runs", decision.Runs),
	)
	return resp, nil
}

// buildStoredResults flattens an engine response into the persisted form.
func buildStoredResults(decision *domain.Decision, resp *Response, trigger string, recordedAt int64) *StoredResults {
	doc := &StoredResults{
		DecisionID: decision.ID,
		Tenant:     decision.Tenant,
		Seed:       decision.Seed,
		Runs:       decision.Runs,
		Trigger:    trigger,
		RecordedAt: recordedAt,
		Results:    make([]StoredOptionResult, 0, len(resp.Results)),
	}
	for _, result := range resp.Results {
		stored := StoredOptionResult{
			OptionID: result.OptionID,
			Label:    result.OptionLabel,
			EV:       result.EV,
			VaR95:    result.VaR95,
			CVaR95:   result.CVaR95,
		}
		if result.Utility != nil {
			stored.Utility = &StoredUtility{
				Mode:                string(result.Utility.Mode),
				ExpectedUtility:     result.Utility.ExpectedUtility,
				CertaintyEquivalent: result.Utility.CertaintyEquivalent,
				RiskPremium:         result.Utility.RiskPremium,
			}
		}
		doc.Results = append(doc.Results, stored)
	}
	if resp.Dependence != nil {
		doc.Dependence = &StoredDependence{
			Keys:           resp.Dependence.Keys,
			Target:         resp.Dependence.Target,
			Achieved:       resp.Dependence.Achieved,
			FrobeniusError: resp.Dependence.FrobeniusError,
		}
	}
	return doc
}
