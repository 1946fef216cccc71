package metrics

import (
	"fmt"
	"math"
	"sort"

	"risklab/internal/domain"
)

// RiskPoint is the point-metric triple derived from one outcome array.
type RiskPoint struct {
	EV     float64
	VaR95  float64
	CVaR95 float64
}

// ComputeRiskPoint derives EV, VaR95 and CVaR95 from a single sorted copy of
// the outcomes. VaR95 is the 5th percentile of outcomes (95% of runs do
// better); CVaR95 is the mean of outcomes at or below that cutoff, so
// CVaR95 <= VaR95 always holds.
func ComputeRiskPoint(outcomes []float64) (RiskPoint, error) {
	n := len(outcomes)
	if n == 0 {
		return RiskPoint{}, fmt.Errorf("%w: no outcomes", domain.ErrInvalidConfig)
	}
	if n == 1 {
		// Degenerate distribution: every metric collapses to the one value.
		return RiskPoint{EV: outcomes[0], VaR95: outcomes[0], CVaR95: outcomes[0]}, nil
	}

	sorted := make([]float64, n)
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	ev := computeMean(outcomes)
	var95 := computePercentile(sorted, 0.05)
	cvar95 := computeTailMean(sorted, var95)

	return RiskPoint{EV: ev, VaR95: var95, CVaR95: cvar95}, nil
}

// computeMean calculates arithmetic mean of outcomes.
func computeMean(outcomes []float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range outcomes {
		sum += o
	}
	return sum / float64(len(outcomes))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.05 = 5th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeTailMean averages the sorted values at or below the cutoff. The
// smallest value always qualifies, so the tail is never empty.
func computeTailMean(sorted []float64, cutoff float64) float64 {
	sum := 0.0
	count := 0
	for _, v := range sorted {
		if v > cutoff {
			break
		}
		sum += v
		count++
	}
	if count == 0 {
		return sorted[0]
	}
	return sum / float64(count)
}

// Stddev calculates sample standard deviation (n-1 denominator).
func Stddev(outcomes []float64) float64 {
	n := len(outcomes)
	if n < 2 {
		return 0
	}
	mean := computeMean(outcomes)
	sumSq := 0.0
	for _, o := range outcomes {
		diff := o - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
