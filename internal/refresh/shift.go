package refresh

import (
	"math"
	"sort"

	"risklab/internal/domain"
)

// minShiftRatio bounds the scale factor away from zero. A signal collapse of
// -100% or worse would otherwise zero out or invert a distribution.
const minShiftRatio = 0.01

// shiftRatio converts one signal movement into a parameter scale factor.
// Direction flips the sign for inversely correlated variables.
func shiftRatio(direction int, changePercent float64) float64 {
	ratio := 1 + float64(direction)*changePercent
	if ratio < minShiftRatio {
		return minShiftRatio
	}
	return ratio
}

// shiftVariable scales one variable's location parameters by ratio. Spread
// parameters are untouched. The lognormal shifts its log-space mean by
// ln(ratio), which multiplies the distribution's scale by ratio.
func shiftVariable(v domain.ScenarioVariable, ratio float64) domain.ScenarioVariable {
	shifted := v
	switch v.Dist.Kind {
	case domain.DistNormal:
		p := *v.Dist.Normal
		p.Mean *= ratio
		shifted.Dist.Normal = &p
	case domain.DistLognormal:
		p := *v.Dist.Lognormal
		p.Mu += math.Log(ratio)
		shifted.Dist.Lognormal = &p
	case domain.DistUniform:
		p := *v.Dist.Uniform
		p.Min *= ratio
		p.Max *= ratio
		shifted.Dist.Uniform = &p
	case domain.DistTriangular:
		p := *v.Dist.Triangular
		p.Min *= ratio
		p.Mode *= ratio
		p.Max *= ratio
		shifted.Dist.Triangular = &p
	}
	return shifted
}

// shiftedVariables applies every linked signal present in the batch to its
// variable, in link declaration order. Two signals linked to the same
// variable compound multiplicatively.
func shiftedVariables(d *domain.Decision, batch map[string]domain.SignalUpdate) []domain.ScenarioVariable {
	out := make([]domain.ScenarioVariable, len(d.Variables))
	copy(out, d.Variables)

	index := make(map[string]int, len(out))
	for i, v := range out {
		index[v.Key] = i
	}

	for _, link := range d.Links {
		update, ok := batch[link.SignalID]
		if !ok {
			continue
		}
		i, ok := index[link.VariableKey]
		if !ok {
			continue
		}
		out[i] = shiftVariable(out[i], shiftRatio(link.Direction, update.ChangePercent))
	}
	return out
}

// shockMagnitude is the largest absolute signal movement, in percent, over
// the decision's linked signals present in the batch.
func shockMagnitude(d *domain.Decision, batch map[string]domain.SignalUpdate) float64 {
	shock := 0.0
	for _, id := range d.LinkedSignalIDs() {
		u, ok := batch[id]
		if !ok {
			continue
		}
		if m := math.Abs(u.ChangePercent) * 100; m > shock {
			shock = m
		}
	}
	return shock
}

// triggeringSignals lists the decision's linked signals present in the
// batch, sorted for stable audit payloads.
func triggeringSignals(d *domain.Decision, batch map[string]domain.SignalUpdate) []string {
	ids := make([]string, 0, len(d.Links))
	for _, id := range d.LinkedSignalIDs() {
		if _, ok := batch[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
