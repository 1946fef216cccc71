package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"

	"risklab/internal/domain"
)

// FixtureSet is the JSON fixture document consumed by one-shot runs and
// tests: decisions to register, guardrails to install and recorded
// outcomes to evaluate against them.
type FixtureSet struct {
	Decisions  []*domain.Decision      `json:"decisions"`
	Guardrails []*domain.Guardrail     `json:"guardrails,omitempty"`
	Outcomes   []*domain.ActualOutcome `json:"outcomes,omitempty"`
}

// LoadFixtures reads and validates a fixture file.
func LoadFixtures(path string) (*FixtureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	set, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("fixtures %s: %w", path, err)
	}
	return set, nil
}

// ParseFixtures decodes a fixture document and validates every entry.
func ParseFixtures(data []byte) (*FixtureSet, error) {
	var set FixtureSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	for _, d := range set.Decisions {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if d.Tenant == "" {
			return nil, fmt.Errorf("%w: fixture decision %q has no tenant", domain.ErrInvalidConfig, d.ID)
		}
	}
	for _, g := range set.Guardrails {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	for i, o := range set.Outcomes {
		if o == nil || o.DecisionID == "" || o.MetricName == "" {
			return nil, fmt.Errorf("%w: fixture outcome %d requires decision id and metric name", domain.ErrInvalidConfig, i)
		}
	}
	return &set, nil
}

// DemoFixtures returns the built-in demonstration set: two decisions with
// distinct risk profiles, one guardrail and outcomes that exercise both the
// breach and the no-guardrail path.
func DemoFixtures() *FixtureSet {
	return &FixtureSet{
		Decisions: []*domain.Decision{
			{
				ID:     "dec-cloud-migration",
				Tenant: "demo",
				Label:  "Cloud migration strategy",
				Options: []domain.Option{
					{ID: "opt-lift-shift", Label: "Lift and shift"},
					{ID: "opt-replatform", Label: "Replatform on managed services"},
				},
				Variables: []domain.ScenarioVariable{
					{
						Key:     "adoption_rate",
						Channel: domain.ChannelReturn,
						Dist: domain.DistributionSpec{
							Kind:   domain.DistNormal,
							Normal: &domain.NormalParams{Mean: 120, Stdev: 35},
						},
						Weight: 1,
					},
					{
						Key:     "run_cost",
						Channel: domain.ChannelCost,
						Dist: domain.DistributionSpec{
							Kind:    domain.DistUniform,
							Uniform: &domain.UniformParams{Min: 20, Max: 70},
						},
						Weight: 1,
					},
				},
				Seed: 42,
				Runs: 2000,
				Utility: &domain.UtilityParams{
					Mode:        domain.UtilityCARA,
					Coefficient: 0.5,
					Scale:       100,
				},
				Dependence: []domain.DependenceConfig{
					{VarA: "adoption_rate", VarB: "run_cost", TargetRho: 0.3},
				},
			},
			{
				ID:     "dec-vendor-switch",
				Tenant: "demo",
				Label:  "Analytics vendor switch",
				Options: []domain.Option{
					{ID: "opt-stay", Label: "Stay with incumbent"},
					{ID: "opt-switch", Label: "Switch vendor"},
				},
				Variables: []domain.ScenarioVariable{
					{
						Key:     "contract_savings",
						Channel: domain.ChannelReturn,
						Dist: domain.DistributionSpec{
							Kind:       domain.DistTriangular,
							Triangular: &domain.TriangularParams{Min: 10, Mode: 25, Max: 60},
						},
						Weight: 1,
					},
					{
						Key:     "transition_cost",
						Channel: domain.ChannelCost,
						Dist: domain.DistributionSpec{
							Kind:      domain.DistLognormal,
							Lognormal: &domain.LognormalParams{Mu: 2.5, Sigma: 0.4},
						},
						Weight: 1,
					},
				},
				Seed: 7,
				Runs: 2000,
			},
		},
		Guardrails: []*domain.Guardrail{
			{
				ID:         "gr-demo-churn",
				DecisionID: "dec-cloud-migration",
				OptionID:   "opt-lift-shift",
				MetricName: "churn_rate",
				Threshold:  0.05,
				Direction:  domain.DirectionAbove,
				AlertLevel: domain.AlertWarning,
				CreatedAt:  1704067200000, // 2024-01-01 00:00:00 UTC
				UpdatedAt:  1704067200000,
			},
		},
		Outcomes: []*domain.ActualOutcome{
			{
				DecisionID: "dec-cloud-migration",
				OptionID:   "opt-lift-shift",
				MetricName: "churn_rate",
				Actual:     0.08,
				RecordedAt: 1704240000000, // 2024-01-03 00:00:00 UTC
				Source:     "crm-export",
			},
			{
				DecisionID: "dec-cloud-migration",
				OptionID:   "opt-lift-shift",
				MetricName: "support_tickets",
				Actual:     132,
				RecordedAt: 1704240000000,
				Source:     "helpdesk-export",
			},
		},
	}
}
