package utility

import (
	"math"

	"risklab/internal/domain"
)

// caraUtility: u(x) = (1 - exp(-a*x/scale)) / a. Constant absolute risk
// aversion; defined on all reals, bounded above by 1/a.
type caraUtility struct {
	a     float64
	scale float64
}

func (c *caraUtility) Mode() domain.UtilityMode { return domain.UtilityCARA }

func (c *caraUtility) Value(x float64) float64 {
	return (1 - math.Exp(-c.a*x/c.scale)) / c.a
}

func (c *caraUtility) Inverse(u float64) float64 {
	// u < 1/a always holds for averages of Value outputs.
	return -c.scale * math.Log(1-c.a*u) / c.a
}
