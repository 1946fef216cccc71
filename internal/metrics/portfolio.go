package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"risklab/internal/domain"
	"risklab/internal/idhash"
	"risklab/internal/storage"
)

// ErrNoDecisions is returned when aggregation is requested over an empty
// decision set.
var ErrNoDecisions = errors.New("no decisions available for aggregation")

// Antifragility heuristic weights. The formula is a documented business
// heuristic, not a risk measure; it is preserved exactly.
const (
	antifragilityDiversificationWeight = 40.0
	antifragilityPositiveEVWeight      = 30.0
	antifragilityRiskBelowWeight       = 30.0
)

// PortfolioAggregator combines per-decision risk metrics into portfolio
// metrics and maintains the bounded snapshot history.
type PortfolioAggregator struct {
	snapshotStore storage.PortfolioSnapshotStore
	clock         func() time.Time
	logger        *zap.Logger
}

// NewPortfolioAggregator creates an aggregator over a snapshot store.
func NewPortfolioAggregator(snapshotStore storage.PortfolioSnapshotStore) *PortfolioAggregator {
	return &PortfolioAggregator{
		snapshotStore: snapshotStore,
		clock:         func() time.Time { return time.Now().UTC() },
		logger:        zap.NewNop(),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (a *PortfolioAggregator) WithClock(clock func() time.Time) *PortfolioAggregator {
	a.clock = clock
	return a
}

// WithLogger sets the logger.
func (a *PortfolioAggregator) WithLogger(logger *zap.Logger) *PortfolioAggregator {
	a.logger = logger
	return a
}

// Compute derives portfolio metrics from per-decision inputs. Pure and
// idempotent: identical inputs yield identical outputs, nothing is stored.
func (a *PortfolioAggregator) Compute(decisions []domain.DecisionMetrics) (domain.PortfolioMetrics, error) {
	n := len(decisions)
	if n == 0 {
		return domain.PortfolioMetrics{}, ErrNoDecisions
	}

	weights, err := normalizeWeights(decisions)
	if err != nil {
		return domain.PortfolioMetrics{}, err
	}

	corr := similarityMatrix(decisions)
	divIdx := diversificationIndex(corr)

	var aggregateEV float64
	for i, d := range decisions {
		aggregateEV += weights[i] * d.EV
	}

	// Quadratic form over raw VaR95 values. Heuristic: the per-decision
	// VaR95 stands in for a volatility, the similarity matrix for a
	// correlation. Sign of the raw variance is preserved through the sqrt.
	variance := 0.0
	for i := range decisions {
		si := decisions[i].VaR95
		variance += weights[i] * weights[i] * si * si
		for j := i + 1; j < n; j++ {
			variance += 2 * weights[i] * weights[j] * corr[i][j] * si * decisions[j].VaR95
		}
	}
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return domain.PortfolioMetrics{}, fmt.Errorf("%w: portfolio variance is not finite", domain.ErrComputationFailure)
	}
	aggregateVaR := math.Copysign(math.Sqrt(math.Abs(variance)), variance)
	aggregateCVaR := aggregateVaR * domain.CVaRApproximationFactor

	return domain.PortfolioMetrics{
		AggregateEV:          aggregateEV,
		AggregateVaR95:       aggregateVaR,
		AggregateCVaR95:      aggregateCVaR,
		DiversificationIndex: divIdx,
		AntifragilityScore:   antifragilityScore(decisions, weights, divIdx),
	}, nil
}

// Update computes metrics and appends a history snapshot, ring-bounded to
// domain.PortfolioHistoryLimit per portfolio.
func (a *PortfolioAggregator) Update(ctx context.Context, tenant, portfolioID string, decisions []domain.DecisionMetrics) (*domain.PortfolioSnapshot, error) {
	metrics, err := a.Compute(decisions)
	if err != nil {
		return nil, err
	}

	now := a.clock().UnixMilli()
	snapshot := &domain.PortfolioSnapshot{
		ID:          idhash.ComputeSnapshotID(tenant, portfolioID, now),
		PortfolioID: portfolioID,
		Tenant:      tenant,
		Metrics:     metrics,
		Decisions:   len(decisions),
		RecordedAt:  now,
	}
	if err := a.snapshotStore.Append(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("append portfolio snapshot: %w", err)
	}

	a.logger.Debug("portfolio metrics updated",
		zap.String("portfolio_id", portfolioID),
		zap.Float64("aggregate_ev", metrics.AggregateEV),
		zap.Float64("diversification_index", metrics.DiversificationIndex),
		zap.Float64("antifragility_score", metrics.AntifragilityScore),
	)
	return snapshot, nil
}

// normalizeWeights fills missing weights with 1/n and renormalizes the full
// vector to sum to 1.
func normalizeWeights(decisions []domain.DecisionMetrics) ([]float64, error) {
	n := len(decisions)
	weights := make([]float64, n)
	defaultWeight := 1 / float64(n)

	sum := 0.0
	for i, d := range decisions {
		w := defaultWeight
		if d.Weight != nil {
			w = *d.Weight
			if w < 0 {
				return nil, fmt.Errorf("%w: decision %q weight must be >= 0, got %v", domain.ErrInvalidConfig, d.DecisionID, w)
			}
		}
		weights[i] = w
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: portfolio weights sum to %v", domain.ErrInvalidConfig, sum)
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}

// similarityMatrix derives a correlation proxy from metric closeness:
// entries are 1 minus the mean normalized absolute difference of EV, VaR95
// and CVaR95. Full historical correlation is unavailable, so closeness of
// risk profiles stands in for it.
func similarityMatrix(decisions []domain.DecisionMetrics) [][]float64 {
	n := len(decisions)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := (normalizedDiff(decisions[i].EV, decisions[j].EV) +
				normalizedDiff(decisions[i].VaR95, decisions[j].VaR95) +
				normalizedDiff(decisions[i].CVaR95, decisions[j].CVaR95)) / 3
			sim := 1 - d
			m[i][j] = sim
			m[j][i] = sim
		}
	}
	return m
}

// normalizedDiff is |x-y| / (|x|+|y|), 0 when both values are 0.
func normalizedDiff(x, y float64) float64 {
	denom := math.Abs(x) + math.Abs(y)
	if denom == 0 {
		return 0
	}
	return math.Abs(x-y) / denom
}

// diversificationIndex is 1 - sum(matrix)/n^2, clamped to [0, 1]. A single
// decision is fully diversified by convention.
func diversificationIndex(corr [][]float64) float64 {
	n := len(corr)
	if n == 1 {
		return 1
	}
	total := 0.0
	for i := range corr {
		for j := range corr[i] {
			total += corr[i][j]
		}
	}
	idx := 1 - total/float64(n*n)
	return clamp(idx, 0, 1)
}

// antifragilityScore is the documented heuristic: diversification,
// positive-EV weight share and risk-below-return weight share, capped to
// [0, 100].
func antifragilityScore(decisions []domain.DecisionMetrics, weights []float64, divIdx float64) float64 {
	var positiveEVShare, riskBelowShare float64
	for i, d := range decisions {
		if d.EV > 0 {
			positiveEVShare += weights[i]
		}
		if math.Abs(d.VaR95) < math.Abs(d.EV) {
			riskBelowShare += weights[i]
		}
	}
	score := antifragilityDiversificationWeight*divIdx +
		antifragilityPositiveEVWeight*positiveEVShare +
		antifragilityRiskBelowWeight*riskBelowShare
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
