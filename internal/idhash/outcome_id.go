package idhash

import "fmt"

// ComputeOutcomeID computes a deterministic actual-outcome id.
// Formula: SHA256(decision_id|option_id|metric_name|recorded_at|source),
// base58 short form.
func ComputeOutcomeID(decisionID, optionID, metricName string, recordedAt int64, source string) string {
	return shortID(fmt.Sprintf("%s|%s|%s|%d|%s", decisionID, optionID, metricName, recordedAt, source))
}
