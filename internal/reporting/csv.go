package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders simulation rows as a CSV string.
func RenderCSV(rows []SimulationRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("decision_id,option_id,seed,runs,ev,var95,cvar95,trigger,recorded_at\n")

	// Rows
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%.6f,%.6f,%.6f,%s,%d\n",
			row.DecisionID,
			row.OptionID,
			row.Seed,
			row.Runs,
			row.EV,
			row.VaR95,
			row.CVaR95,
			row.Trigger,
			row.RecordedAt,
		))
	}

	return sb.String()
}
