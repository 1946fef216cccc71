package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Decision Risk Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Tenant: %s | Decisions: %d | Options: %d\n\n",
		r.Tenant, r.DecisionCount, r.OptionCount))

	// Simulation Results
	sb.WriteString("## Simulation Results\n\n")
	if len(r.Simulations) > 0 {
		sb.WriteString("| Decision | Option | Runs | EV | VaR95 | CVaR95 | Trigger |\n")
		sb.WriteString("|----------|--------|------|----|----|-------|--------|\n")
		for _, row := range r.Simulations {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %.4f | %.4f | %.4f | %s |\n",
				row.DecisionID, row.OptionID, row.Runs,
				row.EV, row.VaR95, row.CVaR95, row.Trigger))
		}
	} else {
		sb.WriteString("No simulation results available.\n")
	}
	sb.WriteString("\n")

	// Utility Evaluations
	sb.WriteString("## Utility Evaluations\n\n")
	if len(r.Utilities) > 0 {
		sb.WriteString("| Decision | Option | Mode | E[U] | Certainty Equivalent | Risk Premium |\n")
		sb.WriteString("|----------|--------|------|------|----------------------|--------------|\n")
		for _, row := range r.Utilities {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.6f | %.4f | %.4f |\n",
				row.DecisionID, row.OptionID, row.Mode,
				row.ExpectedUtility, row.CertaintyEquivalent, row.RiskPremium))
		}
	} else {
		sb.WriteString("No utility evaluations available.\n")
	}
	sb.WriteString("\n")

	// Portfolio
	sb.WriteString("## Portfolio\n\n")
	if r.Portfolio != nil {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Portfolio | %s |\n", r.Portfolio.PortfolioID))
		sb.WriteString(fmt.Sprintf("| Aggregate EV | %.4f |\n", r.Portfolio.AggregateEV))
		sb.WriteString(fmt.Sprintf("| Aggregate VaR95 | %.4f |\n", r.Portfolio.AggregateVaR95))
		sb.WriteString(fmt.Sprintf("| Aggregate CVaR95 | %.4f |\n", r.Portfolio.AggregateCVaR95))
		sb.WriteString(fmt.Sprintf("| Diversification Index | %.4f |\n", r.Portfolio.DiversificationIndex))
		sb.WriteString(fmt.Sprintf("| Antifragility Score | %.2f |\n", r.Portfolio.AntifragilityScore))
		sb.WriteString(fmt.Sprintf("| Decisions Aggregated | %d |\n", r.Portfolio.Decisions))
	} else {
		sb.WriteString("No portfolio snapshot available.\n")
	}
	sb.WriteString("\n")

	// Guardrails
	sb.WriteString("## Guardrails\n\n")
	if len(r.Guardrails) > 0 {
		sb.WriteString("| Guardrail | Decision | Metric | Threshold | Direction | Alert | Phase | Breaches |\n")
		sb.WriteString("|-----------|----------|--------|-----------|-----------|-------|-------|----------|\n")
		for _, row := range r.Guardrails {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %s | %s | %s | %d |\n",
				row.GuardrailID, row.DecisionID, row.MetricName, row.Threshold,
				row.Direction, row.AlertLevel, row.Phase, row.BreachCount))
		}
	} else {
		sb.WriteString("No guardrails configured.\n")
	}
	sb.WriteString("\n")

	// Verification
	if r.Verification != nil {
		sb.WriteString("## Determinism Verification\n\n")
		sb.WriteString("| Decisions | Matched | Divergent |\n")
		sb.WriteString("|-----------|---------|-----------|\n")
		sb.WriteString(fmt.Sprintf("| %d | %d | %d |\n",
			r.Verification.TotalDecisions,
			r.Verification.MatchedDecisions,
			r.Verification.DivergentDecisions))
		sb.WriteString("\n")
		if r.Verification.DivergentDecisions == 0 {
			sb.WriteString("**All runs reproduced bit for bit.**\n\n")
		} else {
			sb.WriteString("**Divergent runs detected.** Results are not reproducible.\n\n")
		}
	}

	// Errors (always shown if present)
	if len(r.Errors) > 0 {
		sb.WriteString("## Assembly Errors\n\n")
		for _, err := range r.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
