package domain

// SimulationResult holds the full outcome distribution and the point risk
// metrics for one option of one simulation run.
type SimulationResult struct {
	OptionID    string
	OptionLabel string

	// Outcomes has exactly one entry per run, in run order.
	Outcomes []float64

	// Point metrics, all derived from the same sorted copy of Outcomes.
	EV     float64 // mean outcome
	VaR95  float64 // 5th percentile of outcomes (95% of runs do better)
	CVaR95 float64 // mean of outcomes at or below the VaR95 cutoff

	// Utility is set only when the request carried utility parameters.
	Utility *UtilityResult
}

// UtilityResult is the utility evaluation of one outcome distribution.
type UtilityResult struct {
	Mode                UtilityMode
	ExpectedUtility     float64
	CertaintyEquivalent float64
	RiskPremium         float64 // EV - CertaintyEquivalent; positive reveals risk aversion
}

// Simulation trigger labels recorded in the archive.
const (
	TriggerManual        = "manual"
	TriggerSignalRefresh = "signal_refresh"
)

// SimulationMetricRow is one archived per-option metric row. Full outcome
// arrays stay in the document store; the archive keeps the point metrics
// for analytical queries.
type SimulationMetricRow struct {
	Tenant     string
	DecisionID string
	OptionID   string
	Seed       int64
	Runs       int
	EV         float64
	VaR95      float64
	CVaR95     float64
	// CertaintyEquivalent is set only when utility was evaluated.
	CertaintyEquivalent *float64
	Trigger             string // TriggerManual or TriggerSignalRefresh
	RecordedAt          int64  // Unix timestamp in milliseconds
}

// DependenceReport describes how close the rank reordering came to the
// requested correlation structure.
type DependenceReport struct {
	Keys           []string    // variable keys, matrix order
	Target         [][]float64 // requested correlation matrix
	Achieved       [][]float64 // Spearman correlation after reordering
	FrobeniusError float64     // ||target - achieved||_F
}
