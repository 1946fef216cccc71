package simulation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"risklab/internal/bayes"
	"risklab/internal/dependence"
	"risklab/internal/domain"
	"risklab/internal/game"
	"risklab/internal/metrics"
	"risklab/internal/sampling"
	"risklab/internal/utility"
)

// Request is the full input to one simulation. Validated once at Simulate
// entry; no partial validation happens deeper in the pipeline.
type Request struct {
	Options   []domain.Option
	Variables []domain.ScenarioVariable
	Seed      int64
	Runs      int

	Utility    *domain.UtilityParams
	Game       *domain.GameConfig
	Dependence []domain.DependenceConfig
	Copula     *domain.CopulaConfig
	Overrides  []domain.BayesianOverride
}

// Response carries per-option results plus the dependence report when a
// reordering was applied. Reports are near-identical across options (same
// marginals, same target), so the first option's report stands for all.
type Response struct {
	Results    []*domain.SimulationResult
	Dependence *domain.DependenceReport
}

// Engine runs Monte Carlo scenario simulations.
//
// Determinism contract: option i (declared order) owns the RNG stream
// seeded Seed+i. Within a stream the draw order is fixed: each relevant
// variable in declared order (Runs draws each), then Runs opponent-move
// draws when a game config is present. Identical requests therefore
// reproduce identical outcome arrays bit for bit.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an engine.
func NewEngine() *Engine {
	return &Engine{logger: zap.NewNop()}
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(logger *zap.Logger) *Engine {
	e.logger = logger
	return e
}

// Simulate produces one SimulationResult per option.
// Steps:
//  1. Validate the request
//  2. Resolve Bayesian overrides into adjusted variables
//  3. Per option: draw samples per relevant variable in declared order
//  4. Apply dependence reordering across participating variables
//  5. Draw opponent moves and apply the game payoff
//  6. Combine channels into one outcome per run
//  7. Derive EV / VaR95 / CVaR95 from one sorted copy
//  8. Evaluate utility and certainty equivalent when requested
func (e *Engine) Simulate(ctx context.Context, req Request) (*Response, error) {
	// 1. Validate the request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// 2. Resolve Bayesian overrides
	variables, err := applyOverrides(req.Variables, req.Overrides)
	if err != nil {
		return nil, err
	}

	var utilityFn utility.Function
	if req.Utility != nil {
		utilityFn, err = utility.FromParams(*req.Utility)
		if err != nil {
			return nil, err
		}
	}

	copulaCfg, err := resolveCopula(req)
	if err != nil {
		return nil, err
	}

	resp := &Response{Results: make([]*domain.SimulationResult, 0, len(req.Options))}
	for i, option := range req.Options {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, report, err := e.simulateOption(option, i, variables, req, copulaCfg, utilityFn)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", option.ID, err)
		}
		if resp.Dependence == nil {
			resp.Dependence = report
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// simulateOption runs the per-option pipeline on the option's own RNG stream.
func (e *Engine) simulateOption(
	option domain.Option,
	optionIndex int,
	variables []domain.ScenarioVariable,
	req Request,
	copulaCfg *domain.CopulaConfig,
	utilityFn utility.Function,
) (*domain.SimulationResult, *domain.DependenceReport, error) {
	sampler := sampling.NewSampler(req.Seed + int64(optionIndex))

	// 3. Draw samples per relevant variable, declared order
	relevant := make([]domain.ScenarioVariable, 0, len(variables))
	samplesByKey := make(map[string][]float64)
	for _, v := range variables {
		if v.AppliesTo != "" && v.AppliesTo != option.ID {
			continue
		}
		samples, err := sampler.Draw(v.Dist, req.Runs)
		if err != nil {
			return nil, nil, err
		}
		relevant = append(relevant, v)
		samplesByKey[v.Key] = samples
	}

	// 4. Dependence reordering
	var report *domain.DependenceReport
	if copulaCfg != nil {
		var err error
		report, err = dependence.Reorder(*copulaCfg, samplesByKey)
		if err != nil {
			return nil, nil, err
		}
	}

	// 5. Opponent moves, drawn after all variable samples
	var moves []int
	if req.Game != nil {
		moves = sampler.Bernoulli(req.Game.MoveProbability, req.Runs)
	}

	// 6. Combine channels into one outcome per run
	outcomes := make([]float64, req.Runs)
	for _, v := range relevant {
		samples := samplesByKey[v.Key]
		sign := 1.0
		if v.EffectiveChannel() == domain.ChannelCost {
			sign = -1
		}
		for r := range outcomes {
			outcomes[r] += sign * v.Weight * samples[r]
		}
	}
	if req.Game != nil {
		if err := game.ApplyPayoff(outcomes, moves, *req.Game, option.ID); err != nil {
			return nil, nil, err
		}
	}

	// 7. Point metrics from one sorted copy
	point, err := metrics.ComputeRiskPoint(outcomes)
	if err != nil {
		return nil, nil, err
	}

	result := &domain.SimulationResult{
		OptionID:    option.ID,
		OptionLabel: option.Label,
		Outcomes:    outcomes,
		EV:          point.EV,
		VaR95:       point.VaR95,
		CVaR95:      point.CVaR95,
	}

	// 8. Utility evaluation
	if utilityFn != nil {
		utilityResult, err := utility.Evaluate(utilityFn, outcomes, point.EV)
		switch {
		case errors.Is(err, domain.ErrComputationFailure):
			// Recover with the risk-neutral fallback rather than failing
			// the whole simulation.
			e.logger.Warn("utility evaluation failed, falling back to expected value",
				zap.String("option_id", option.ID),
				zap.Error(err),
			)
			utilityResult = domain.UtilityResult{
				Mode:                utilityFn.Mode(),
				ExpectedUtility:     0,
				CertaintyEquivalent: point.EV,
				RiskPremium:         0,
			}
		case err != nil:
			return nil, nil, err
		}
		result.Utility = &utilityResult
	}

	return result, report, nil
}

// resolveCopula picks the dependence structure: an explicit copula config
// wins, otherwise pairwise requests merge into one matrix.
func resolveCopula(req Request) (*domain.CopulaConfig, error) {
	if req.Copula != nil {
		return req.Copula, nil
	}
	if len(req.Dependence) == 0 {
		return nil, nil
	}
	return dependence.BuildMatrix(req.Dependence)
}

// applyOverrides returns a copy of the variables with Bayesian posteriors
// substituted for declared parameters. Normal variables take the posterior
// (mean, sqrt(var)) directly; lognormal overrides describe the underlying
// normal, so they land on (mu, sigma).
func applyOverrides(variables []domain.ScenarioVariable, overrides []domain.BayesianOverride) ([]domain.ScenarioVariable, error) {
	if len(overrides) == 0 {
		return variables, nil
	}

	byKey := make(map[string]domain.Posterior, len(overrides))
	for _, o := range overrides {
		posterior, err := bayes.Apply(o)
		if err != nil {
			return nil, err
		}
		byKey[o.VariableKey] = posterior
	}

	out := make([]domain.ScenarioVariable, len(variables))
	copy(out, variables)
	for i := range out {
		posterior, ok := byKey[out[i].Key]
		if !ok {
			continue
		}
		switch out[i].Dist.Kind {
		case domain.DistNormal:
			params := *out[i].Dist.Normal
			params.Mean = posterior.Mean
			params.Stdev = sqrtVar(posterior.Var)
			out[i].Dist.Normal = &params
		case domain.DistLognormal:
			params := *out[i].Dist.Lognormal
			params.Mu = posterior.Mean
			params.Sigma = sqrtVar(posterior.Var)
			out[i].Dist.Lognormal = &params
		}
	}
	return out, nil
}
