package idhash

import (
	"fmt"
	"strings"
)

// ComputeAdjustmentID computes a deterministic auto-adjustment record id.
// Formula: SHA256(guardrail_id|occurred_at|violation_ids...), base58 short form.
func ComputeAdjustmentID(guardrailID string, occurredAt int64, violationIDs []string) string {
	return shortID(fmt.Sprintf("%s|%d|%s", guardrailID, occurredAt, strings.Join(violationIDs, "|")))
}
