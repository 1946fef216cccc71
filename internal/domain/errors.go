package domain

import "errors"

// Shared failure kinds returned by the computation core. Callers match with
// errors.Is; messages wrapped around these carry the offending field or id.
var (
	// ErrInvalidConfig indicates malformed input: bad distribution
	// parameters, a same-variable dependence request, a non-square or
	// asymmetric copula matrix, nonpositive weights or variances.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInsufficientSamples indicates a dependence transform was requested
	// with fewer than MinDependenceRuns runs.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrNotFound indicates a referenced decision, guardrail or signal is
	// absent. Treated as a no-op where the contract says so.
	ErrNotFound = errors.New("not found")

	// ErrComputationFailure indicates a numeric failure (non-finite
	// intermediate). Recovered locally with a safe default; surfaced only
	// when no fallback exists.
	ErrComputationFailure = errors.New("computation failure")
)

// MinDependenceRuns is the smallest run count for which rank-correlation
// reordering is allowed. Below this the achieved correlation estimate is
// too noisy to be meaningful.
const MinDependenceRuns = 50
