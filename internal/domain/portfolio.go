package domain

// PortfolioHistoryLimit bounds the snapshot ring per portfolio. Oldest
// snapshots are evicted first.
const PortfolioHistoryLimit = 30

// CVaRApproximationFactor scales aggregate VaR95 into aggregate CVaR95.
// Documented rule of thumb, not a statistical result.
const CVaRApproximationFactor = 1.15

// DecisionMetrics is the per-decision input to portfolio aggregation.
type DecisionMetrics struct {
	DecisionID string
	EV         float64
	VaR95      float64
	CVaR95     float64
	Weight     *float64 // nil defaults to 1/n before renormalization
}

// PortfolioMetrics is the aggregate risk picture of a named decision group.
type PortfolioMetrics struct {
	AggregateEV          float64
	AggregateVaR95       float64
	AggregateCVaR95      float64
	DiversificationIndex float64 // in [0, 1]
	AntifragilityScore   float64 // in [0, 100]
}

// PortfolioSnapshot is one history entry of a portfolio's metrics.
type PortfolioSnapshot struct {
	ID          string
	PortfolioID string
	Tenant      string
	Metrics     PortfolioMetrics
	Decisions   int   // number of decisions aggregated
	RecordedAt  int64 // Unix timestamp in milliseconds
}
