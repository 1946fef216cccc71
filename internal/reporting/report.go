package reporting

import "time"

// Report is the assembled view of one tenant's stored state: latest
// simulation results, utility evaluations, the newest portfolio snapshot
// and derived guardrail states.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	Tenant        string
	DecisionCount int
	OptionCount   int

	// Latest simulation results (sorted by decision_id, declared option order)
	Simulations []SimulationRow

	// Utility evaluations for options simulated with utility parameters
	Utilities []UtilityRow

	// Newest portfolio snapshot, nil when none was recorded
	Portfolio *PortfolioSection

	// Guardrail states (sorted by decision_id, guardrail_id)
	Guardrails []GuardrailRow

	// Determinism verification summary, nil unless verification ran
	Verification *VerificationSection

	// Errors collected while assembling; a failed section is skipped,
	// not fatal
	Errors []string
}

// SimulationRow is one option's latest persisted point metrics.
type SimulationRow struct {
	DecisionID    string
	DecisionLabel string
	OptionID      string
	OptionLabel   string
	Seed          int64
	Runs          int
	EV            float64
	VaR95         float64
	CVaR95        float64
	Trigger       string
	RecordedAt    int64 // Unix ms
}

// UtilityRow is one option's utility evaluation.
type UtilityRow struct {
	DecisionID          string
	OptionID            string
	Mode                string
	ExpectedUtility     float64
	CertaintyEquivalent float64
	RiskPremium         float64
}

// PortfolioSection carries the newest portfolio snapshot.
type PortfolioSection struct {
	PortfolioID          string
	AggregateEV          float64
	AggregateVaR95       float64
	AggregateCVaR95      float64
	DiversificationIndex float64
	AntifragilityScore   float64
	Decisions            int
	RecordedAt           int64 // Unix ms
}

// GuardrailRow is one guardrail with its derived controller state.
type GuardrailRow struct {
	GuardrailID  string
	DecisionID   string
	OptionID     string
	MetricName   string
	Threshold    float64
	Direction    string
	AlertLevel   string
	Phase        string
	BreachCount  int
	LastBreachAt int64 // Unix ms, 0 when never breached
}

// VerificationSection summarizes a determinism verification run.
type VerificationSection struct {
	TotalDecisions     int
	MatchedDecisions   int
	DivergentDecisions int
}
