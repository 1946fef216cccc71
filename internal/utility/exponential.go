package utility

import (
	"math"

	"risklab/internal/domain"
)

// exponentialUtility: u(x) = -exp(-a*x/scale). Defined on all reals, always
// negative, strictly increasing.
type exponentialUtility struct {
	a     float64
	scale float64
}

func (e *exponentialUtility) Mode() domain.UtilityMode { return domain.UtilityExponential }

func (e *exponentialUtility) Value(x float64) float64 {
	return -math.Exp(-e.a * x / e.scale)
}

func (e *exponentialUtility) Inverse(u float64) float64 {
	if u >= 0 {
		return math.NaN()
	}
	return -e.scale * math.Log(-u) / e.a
}
