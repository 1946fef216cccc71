package utility

import (
	"math"

	"risklab/internal/domain"
)

// quadraticUtility: u(x) = n - (a/2)*n^2 with n = x/scale, clamped at the
// satiation point n = 1/a where the parabola stops increasing.
type quadraticUtility struct {
	a     float64
	scale float64
}

func (q *quadraticUtility) Mode() domain.UtilityMode { return domain.UtilityQuadratic }

func (q *quadraticUtility) Value(x float64) float64 {
	n := math.Min(x/q.scale, 1/q.a)
	return n - (q.a/2)*n*n
}

func (q *quadraticUtility) Inverse(u float64) float64 {
	// Averages of Value outputs stay at or below the satiation utility
	// 1/(2a); tiny float excursions above it are clamped.
	radicand := math.Max(1-2*q.a*u, 0)
	return q.scale * (1 - math.Sqrt(radicand)) / q.a
}
