package domain

// LearningTraceLimit bounds the per-decision trace. Oldest entries are
// evicted first.
const LearningTraceLimit = 100

// Antifragility band labels, ordered from worst to best.
const (
	BandHighlyFragile     = "Highly Fragile"     // score <= -0.5
	BandFragile           = "Fragile"            // (-0.5, -0.1]
	BandRobust            = "Robust"             // (-0.1, 0.1)
	BandAntifragile       = "Antifragile"        // [0.1, 0.5)
	BandHighlyAntifragile = "Highly Antifragile" // score >= 0.5
)

// LearningTraceEntry records how one option's utility moved under a signal
// shock.
type LearningTraceEntry struct {
	DecisionID      string
	OptionID        string
	PreviousUtility float64
	NewUtility      float64
	DeltaUtility    float64 // NewUtility - PreviousUtility
	ShockMagnitude  float64 // max |changePercent| * 100 over triggering signals
	RecoveryRatio   float64 // DeltaUtility / ShockMagnitude, 0 on zero shock
	RecordedAt      int64   // Unix timestamp in milliseconds
}

// SignalUpdate is one external signal movement.
type SignalUpdate struct {
	SignalID      string
	OldValue      float64
	NewValue      float64
	ChangePercent float64 // fractional change, e.g. 0.05 for +5%
	ObservedAt    int64   // Unix timestamp in milliseconds
}
