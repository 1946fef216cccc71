package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"risklab/internal/domain"
	"risklab/internal/guardrail"
	"risklab/internal/registry"
	"risklab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	registry   *registry.Registry
	guardrails storage.GuardrailStore
	states     *guardrail.Controller
	snapshots  storage.PortfolioSnapshotStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator. The guardrail controller
// derives the per-guardrail state; the snapshot store is optional.
func NewGenerator(
	reg *registry.Registry,
	guardrails storage.GuardrailStore,
	states *guardrail.Controller,
	snapshots storage.PortfolioSnapshotStore,
) *Generator {
	return &Generator{
		registry:   reg,
		guardrails: guardrails,
		states:     states,
		snapshots:  snapshots,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate assembles a complete report for one tenant's portfolio.
// Section failures append to Errors instead of aborting, so a partially
// assembled report still renders.
func (g *Generator) Generate(ctx context.Context, tenant, portfolioID string) (*Report, error) {
	report := &Report{
		GeneratedAt: g.now(),
		Tenant:      tenant,
	}

	decisions, err := g.registry.ListByTenant(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	report.DecisionCount = len(decisions)

	for _, decision := range decisions {
		report.OptionCount += len(decision.Options)
		g.appendResults(ctx, report, decision)
		g.appendGuardrails(ctx, report, decision.ID)
	}

	g.appendPortfolio(ctx, report, tenant, portfolioID)

	sortGuardrailRows(report.Guardrails)
	return report, nil
}

// appendResults adds the decision's latest persisted results, when any.
func (g *Generator) appendResults(ctx context.Context, report *Report, decision *domain.Decision) {
	stored, err := g.registry.PriorResults(ctx, decision.Tenant, decision.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return // never simulated
		}
		report.Errors = append(report.Errors, fmt.Sprintf("results for %s: %v", decision.ID, err))
		return
	}

	for _, result := range stored.Results {
		report.Simulations = append(report.Simulations, SimulationRow{
			DecisionID:    decision.ID,
			DecisionLabel: decision.Label,
			OptionID:      result.OptionID,
			OptionLabel:   result.Label,
			Seed:          stored.Seed,
			Runs:          stored.Runs,
			EV:            result.EV,
			VaR95:         result.VaR95,
			CVaR95:        result.CVaR95,
			Trigger:       stored.Trigger,
			RecordedAt:    stored.RecordedAt,
		})
		if result.Utility != nil {
			report.Utilities = append(report.Utilities, UtilityRow{
				DecisionID:          decision.ID,
				OptionID:            result.OptionID,
				Mode:                result.Utility.Mode,
				ExpectedUtility:     result.Utility.ExpectedUtility,
				CertaintyEquivalent: result.Utility.CertaintyEquivalent,
				RiskPremium:         result.Utility.RiskPremium,
			})
		}
	}
}

// appendGuardrails adds one row per guardrail with its derived state.
func (g *Generator) appendGuardrails(ctx context.Context, report *Report, decisionID string) {
	if g.guardrails == nil || g.states == nil {
		return
	}

	rails, err := g.guardrails.ListByDecision(ctx, decisionID)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("guardrails for %s: %v", decisionID, err))
		return
	}

	for _, rail := range rails {
		row := GuardrailRow{
			GuardrailID: rail.ID,
			DecisionID:  rail.DecisionID,
			OptionID:    rail.OptionID,
			MetricName:  rail.MetricName,
			Threshold:   rail.Threshold,
			Direction:   string(rail.Direction),
			AlertLevel:  rail.AlertLevel,
			Phase:       string(domain.PhaseNormal),
		}
		state, err := g.states.State(ctx, rail.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("state for %s: %v", rail.ID, err))
		} else {
			row.Phase = string(state.Phase)
			row.BreachCount = state.BreachCount
			row.LastBreachAt = state.LastBreachAt
		}
		report.Guardrails = append(report.Guardrails, row)
	}
}

// appendPortfolio adds the newest snapshot for the portfolio, when any.
func (g *Generator) appendPortfolio(ctx context.Context, report *Report, tenant, portfolioID string) {
	if g.snapshots == nil || portfolioID == "" {
		return
	}

	history, err := g.snapshots.History(ctx, tenant, portfolioID, 1)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("portfolio %s: %v", portfolioID, err))
		return
	}
	if len(history) == 0 {
		return
	}

	latest := history[0]
	report.Portfolio = &PortfolioSection{
		PortfolioID:          latest.PortfolioID,
		AggregateEV:          latest.Metrics.AggregateEV,
		AggregateVaR95:       latest.Metrics.AggregateVaR95,
		AggregateCVaR95:      latest.Metrics.AggregateCVaR95,
		DiversificationIndex: latest.Metrics.DiversificationIndex,
		AntifragilityScore:   latest.Metrics.AntifragilityScore,
		Decisions:            latest.Decisions,
		RecordedAt:           latest.RecordedAt,
	}
}

// sortGuardrailRows sorts rows by (decision_id, guardrail_id).
func sortGuardrailRows(rows []GuardrailRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DecisionID != rows[j].DecisionID {
			return rows[i].DecisionID < rows[j].DecisionID
		}
		return rows[i].GuardrailID < rows[j].GuardrailID
	})
}
