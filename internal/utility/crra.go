package utility

import (
	"math"

	"risklab/internal/domain"
)

// crraFloor clamps normalized outcomes away from zero: CRRA is undefined at
// or below zero, and decision outcomes occasionally dip negative.
const crraFloor = 1e-9

// crraUtility: u(x) = ((x/scale)^(1-g) - 1) / (1-g), or ln(x/scale) when
// g = 1. Constant relative risk aversion; domain x > 0.
type crraUtility struct {
	gamma float64
	scale float64
}

func (c *crraUtility) Mode() domain.UtilityMode { return domain.UtilityCRRA }

func (c *crraUtility) Value(x float64) float64 {
	n := math.Max(x/c.scale, crraFloor)
	if c.isLog() {
		return math.Log(n)
	}
	return (math.Pow(n, 1-c.gamma) - 1) / (1 - c.gamma)
}

func (c *crraUtility) Inverse(u float64) float64 {
	if c.isLog() {
		return c.scale * math.Exp(u)
	}
	base := 1 + (1-c.gamma)*u
	if base <= 0 {
		return math.NaN()
	}
	return c.scale * math.Pow(base, 1/(1-c.gamma))
}

func (c *crraUtility) isLog() bool {
	return math.Abs(c.gamma-1) < 1e-9
}
