package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// shortID truncates a SHA256 digest to 16 bytes and renders it base58.
func shortID(data string) string {
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}

// ComputeViolationID computes a deterministic violation id.
// Formula: SHA256(guardrail_id|outcome_id|recorded_at), base58 short form.
func ComputeViolationID(guardrailID, outcomeID string, recordedAt int64) string {
	return shortID(fmt.Sprintf("%s|%s|%d", guardrailID, outcomeID, recordedAt))
}
