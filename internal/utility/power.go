package utility

import (
	"math"

	"risklab/internal/domain"
)

// powerUtility: u(x) = sign(n)*|n|^e with n = x/scale and exponent e in
// (0, 1]. Sign-preserving, so negative outcomes stay in domain.
type powerUtility struct {
	exponent float64
	scale    float64
}

func (p *powerUtility) Mode() domain.UtilityMode { return domain.UtilityPower }

func (p *powerUtility) Value(x float64) float64 {
	n := x / p.scale
	return math.Copysign(math.Pow(math.Abs(n), p.exponent), n)
}

func (p *powerUtility) Inverse(u float64) float64 {
	return p.scale * math.Copysign(math.Pow(math.Abs(u), 1/p.exponent), u)
}
