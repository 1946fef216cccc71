package domain

import "fmt"

// BreachDirection declares which side of the threshold is a breach.
type BreachDirection string

// Breach direction constants
const (
	DirectionAbove BreachDirection = "above" // breach when actual > threshold
	DirectionBelow BreachDirection = "below" // breach when actual < threshold
)

// Alert level constants
const (
	AlertInfo     = "info"
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// Auto-adjustment tuning. Two breaches inside the rolling window tighten the
// threshold by 10% toward the safe side.
const (
	BreachWindowMs        = int64(90) * 24 * 60 * 60 * 1000 // rolling 90 days
	BreachesForAdjustment = 2
	TightenFactorAbove    = 0.9 // above-direction thresholds move down
	TightenFactorBelow    = 1.1 // below-direction thresholds move up
)

// Guardrail is a monitored threshold on one metric of one option. Only the
// auto-adjustment controller or an explicit edit may change Threshold.
type Guardrail struct {
	ID         string
	DecisionID string
	OptionID   string
	MetricName string
	Threshold  float64
	Direction  BreachDirection
	AlertLevel string
	CreatedAt  int64 // Unix timestamp in milliseconds
	UpdatedAt  int64 // Unix timestamp in milliseconds
}

// Validate checks identity fields and the direction.
func (g Guardrail) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("%w: guardrail id is empty", ErrInvalidConfig)
	}
	if g.DecisionID == "" {
		return fmt.Errorf("%w: guardrail %q has no decision id", ErrInvalidConfig, g.ID)
	}
	if g.MetricName == "" {
		return fmt.Errorf("%w: guardrail %q has no metric name", ErrInvalidConfig, g.ID)
	}
	switch g.Direction {
	case DirectionAbove, DirectionBelow:
	default:
		return fmt.Errorf("%w: guardrail %q has unknown direction %q", ErrInvalidConfig, g.ID, g.Direction)
	}
	return nil
}

// IsBreachedBy reports whether an actual value crosses the threshold in the
// breach direction.
func (g Guardrail) IsBreachedBy(actual float64) bool {
	if g.Direction == DirectionAbove {
		return actual > g.Threshold
	}
	return actual < g.Threshold
}

// ActualOutcome is one observed real-world value for a decision metric.
// Append-only.
type ActualOutcome struct {
	ID         string
	DecisionID string
	OptionID   string
	MetricName string
	Actual     float64
	RecordedAt int64 // Unix timestamp in milliseconds
	Source     string
}

// GuardrailViolation links an outcome to the guardrail it breached.
// Immutable once created.
type GuardrailViolation struct {
	ID          string
	GuardrailID string
	OutcomeID   string
	DecisionID  string
	Actual      float64
	Threshold   float64 // threshold at breach time
	Direction   BreachDirection
	RecordedAt  int64 // Unix timestamp in milliseconds
}

// AutoAdjustmentRecord is the immutable audit entity for one automatic
// threshold tightening.
type AutoAdjustmentRecord struct {
	ID                string
	GuardrailID       string
	OldThreshold      float64
	NewThreshold      float64
	AdjustmentPercent float64  // signed percent change, e.g. -10 for above-direction
	TriggeredBy       []string // violation ids inside the window, oldest first
	OccurredAt        int64    // Unix timestamp in milliseconds
}

// GuardrailPhase names the controller state for one guardrail.
type GuardrailPhase string

// Controller states. AutoAdjusted is transient: after an adjustment the
// guardrail returns to Normal with the breach counter reset.
const (
	PhaseNormal   GuardrailPhase = "normal"
	PhaseBreached GuardrailPhase = "breached"
)

// GuardrailState is the derived controller state for one guardrail.
type GuardrailState struct {
	GuardrailID  string
	Phase        GuardrailPhase
	BreachCount  int   // in-window breaches since the last adjustment
	LastBreachAt int64 // 0 when no counted breach
}
