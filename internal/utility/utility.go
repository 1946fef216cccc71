package utility

import (
	"fmt"
	"math"

	"risklab/internal/domain"
)

// Function is a closed-form utility transform with its inverse. Value and
// Inverse satisfy Inverse(Value(x)) ≈ x on the family's domain.
type Function interface {
	// Value maps an outcome to utility units.
	Value(x float64) float64

	// Inverse maps utility units back to an outcome (certainty equivalent).
	Inverse(u float64) float64

	// Mode returns the family identifier.
	Mode() domain.UtilityMode
}

// FromParams creates a Function from validated parameters.
func FromParams(p domain.UtilityParams) (Function, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Mode {
	case domain.UtilityCARA:
		return &caraUtility{a: p.Coefficient, scale: p.Scale}, nil
	case domain.UtilityCRRA:
		return &crraUtility{gamma: p.Coefficient, scale: p.Scale}, nil
	case domain.UtilityExponential:
		return &exponentialUtility{a: p.Coefficient, scale: p.Scale}, nil
	case domain.UtilityQuadratic:
		return &quadraticUtility{a: p.Coefficient, scale: p.Scale}, nil
	case domain.UtilityPower:
		return &powerUtility{exponent: p.Coefficient, scale: p.Scale}, nil
	default:
		return nil, fmt.Errorf("%w: unknown utility mode %q", domain.ErrInvalidConfig, p.Mode)
	}
}

// Evaluate transforms every outcome, averages to expected utility, and
// inverts back to the certainty equivalent. A non-finite intermediate is
// reported as ErrComputationFailure; the caller decides the fallback.
func Evaluate(fn Function, outcomes []float64, ev float64) (domain.UtilityResult, error) {
	if len(outcomes) == 0 {
		return domain.UtilityResult{}, fmt.Errorf("%w: no outcomes to evaluate", domain.ErrInvalidConfig)
	}

	var sum float64
	for _, x := range outcomes {
		sum += fn.Value(x)
	}
	expected := sum / float64(len(outcomes))
	if !isFinite(expected) {
		return domain.UtilityResult{}, fmt.Errorf("%w: expected utility is not finite for mode %s", domain.ErrComputationFailure, fn.Mode())
	}

	ce := fn.Inverse(expected)
	if !isFinite(ce) {
		return domain.UtilityResult{}, fmt.Errorf("%w: certainty equivalent is not finite for mode %s", domain.ErrComputationFailure, fn.Mode())
	}

	return domain.UtilityResult{
		Mode:                fn.Mode(),
		ExpectedUtility:     expected,
		CertaintyEquivalent: ce,
		RiskPremium:         ev - ce,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
