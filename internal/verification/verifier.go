// Package verification re-executes simulations and checks the engine's
// determinism contract: identical requests reproduce identical outputs
// bit for bit.
package verification

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"risklab/internal/domain"
	"risklab/internal/simulation"
)

// FieldDivergence represents a mismatch between two runs of one request.
type FieldDivergence struct {
	Field    string      // field name, prefixed by option id
	Expected interface{} // value from the first run
	Actual   interface{} // value from the second run
}

// Result contains the outcome of verifying a single decision.
type Result struct {
	DecisionID  string            // verified decision ID
	Match       bool              // true if both runs matched bit for bit
	Divergences []FieldDivergence // list of divergent fields
	Options     int               // number of options compared
}

// Report contains results for batch verification.
type Report struct {
	TotalDecisions     int      // total decisions verified
	MatchedDecisions   int      // decisions whose runs matched
	DivergentDecisions int      // decisions with divergences
	Results            []Result // individual results
}

// Verifier runs each decision's request twice through the engine and
// compares the responses.
type Verifier struct {
	engine *simulation.Engine
	logger *zap.Logger
}

// NewVerifier creates a verifier. A nil engine gets a fresh one.
func NewVerifier(engine *simulation.Engine, logger *zap.Logger) *Verifier {
	if engine == nil {
		engine = simulation.NewEngine()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{engine: engine, logger: logger}
}

// VerifyDecision simulates the decision twice with its declared
// configuration and compares the responses.
func (v *Verifier) VerifyDecision(ctx context.Context, decision *domain.Decision) (*Result, error) {
	if decision == nil {
		return nil, fmt.Errorf("%w: decision is nil", domain.ErrInvalidConfig)
	}

	req := simulation.Request{
		Options:    decision.Options,
		Variables:  decision.Variables,
		Seed:       decision.Seed,
		Runs:       decision.Runs,
		Utility:    decision.Utility,
		Game:       decision.Game,
		Dependence: decision.Dependence,
		Copula:     decision.Copula,
		Overrides:  decision.Overrides,
	}

	first, err := v.engine.Simulate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("first run of %s: %w", decision.ID, err)
	}
	second, err := v.engine.Simulate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("second run of %s: %w", decision.ID, err)
	}

	divergences := CompareResponses(first, second)
	result := &Result{
		DecisionID:  decision.ID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
		Options:     len(first.Results),
	}

	if !result.Match {
		v.logger.Warn("determinism check failed",
			zap.String("decision_id", decision.ID),
			zap.Int("divergences", len(divergences)),
		)
	}
	return result, nil
}

// VerifyAll verifies a batch of decisions and aggregates a report.
func (v *Verifier) VerifyAll(ctx context.Context, decisions []*domain.Decision) (*Report, error) {
	report := &Report{Results: make([]Result, 0, len(decisions))}

	for _, decision := range decisions {
		result, err := v.VerifyDecision(ctx, decision)
		if err != nil {
			return nil, err
		}
		report.TotalDecisions++
		if result.Match {
			report.MatchedDecisions++
		} else {
			report.DivergentDecisions++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

// CompareResponses compares two engine responses field by field. All
// float comparisons are bit-exact. For each option's outcome array only
// the first divergent element is reported.
func CompareResponses(first, second *simulation.Response) []FieldDivergence {
	var divergences []FieldDivergence

	if len(first.Results) != len(second.Results) {
		return append(divergences, FieldDivergence{
			Field:    "Results",
			Expected: len(first.Results),
			Actual:   len(second.Results),
		})
	}

	for i, a := range first.Results {
		b := second.Results[i]
		prefix := a.OptionID

		if a.OptionID != b.OptionID {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Results[%d].OptionID", i),
				Expected: a.OptionID,
				Actual:   b.OptionID,
			})
			continue
		}
		if a.OptionLabel != b.OptionLabel {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + ".OptionLabel",
				Expected: a.OptionLabel,
				Actual:   b.OptionLabel,
			})
		}
		if !bitEqual(a.EV, b.EV) {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + ".EV",
				Expected: a.EV,
				Actual:   b.EV,
			})
		}
		if !bitEqual(a.VaR95, b.VaR95) {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + ".VaR95",
				Expected: a.VaR95,
				Actual:   b.VaR95,
			})
		}
		if !bitEqual(a.CVaR95, b.CVaR95) {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + ".CVaR95",
				Expected: a.CVaR95,
				Actual:   b.CVaR95,
			})
		}

		if len(a.Outcomes) != len(b.Outcomes) {
			divergences = append(divergences, FieldDivergence{
				Field:    prefix + ".Outcomes",
				Expected: len(a.Outcomes),
				Actual:   len(b.Outcomes),
			})
		} else {
			for j := range a.Outcomes {
				if !bitEqual(a.Outcomes[j], b.Outcomes[j]) {
					divergences = append(divergences, FieldDivergence{
						Field:    fmt.Sprintf("%s.Outcomes[%d]", prefix, j),
						Expected: a.Outcomes[j],
						Actual:   b.Outcomes[j],
					})
					break
				}
			}
		}

		divergences = append(divergences, compareUtility(prefix, a.Utility, b.Utility)...)
	}

	divergences = append(divergences, compareDependence(first.Dependence, second.Dependence)...)
	return divergences
}

func compareUtility(prefix string, a, b *domain.UtilityResult) []FieldDivergence {
	if a == nil && b == nil {
		return nil
	}
	if a == nil || b == nil {
		return []FieldDivergence{{Field: prefix + ".Utility", Expected: a, Actual: b}}
	}

	var divergences []FieldDivergence
	if a.Mode != b.Mode {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Utility.Mode",
			Expected: a.Mode,
			Actual:   b.Mode,
		})
	}
	if !bitEqual(a.ExpectedUtility, b.ExpectedUtility) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Utility.ExpectedUtility",
			Expected: a.ExpectedUtility,
			Actual:   b.ExpectedUtility,
		})
	}
	if !bitEqual(a.CertaintyEquivalent, b.CertaintyEquivalent) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Utility.CertaintyEquivalent",
			Expected: a.CertaintyEquivalent,
			Actual:   b.CertaintyEquivalent,
		})
	}
	if !bitEqual(a.RiskPremium, b.RiskPremium) {
		divergences = append(divergences, FieldDivergence{
			Field:    prefix + ".Utility.RiskPremium",
			Expected: a.RiskPremium,
			Actual:   b.RiskPremium,
		})
	}
	return divergences
}

func compareDependence(a, b *domain.DependenceReport) []FieldDivergence {
	if a == nil && b == nil {
		return nil
	}
	if a == nil || b == nil {
		return []FieldDivergence{{Field: "Dependence", Expected: a, Actual: b}}
	}

	var divergences []FieldDivergence
	if !bitEqual(a.FrobeniusError, b.FrobeniusError) {
		divergences = append(divergences, FieldDivergence{
			Field:    "Dependence.FrobeniusError",
			Expected: a.FrobeniusError,
			Actual:   b.FrobeniusError,
		})
	}
	for i := range a.Achieved {
		if i >= len(b.Achieved) {
			break
		}
		for j := range a.Achieved[i] {
			if j >= len(b.Achieved[i]) {
				break
			}
			if !bitEqual(a.Achieved[i][j], b.Achieved[i][j]) {
				return append(divergences, FieldDivergence{
					Field:    fmt.Sprintf("Dependence.Achieved[%d][%d]", i, j),
					Expected: a.Achieved[i][j],
					Actual:   b.Achieved[i][j],
				})
			}
		}
	}
	return divergences
}

// bitEqual compares two float64 values bit for bit. Unlike ==, it treats
// two NaNs as equal and distinguishes -0 from 0.
func bitEqual(a, b float64) bool {
	return math.Float64bits(a) == math.Float64bits(b)
}
