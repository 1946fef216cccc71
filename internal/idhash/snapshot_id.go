package idhash

import "fmt"

// ComputeSnapshotID computes a deterministic portfolio-snapshot id.
// Formula: SHA256(tenant|portfolio_id|recorded_at), base58 short form.
func ComputeSnapshotID(tenant, portfolioID string, recordedAt int64) string {
	return shortID(fmt.Sprintf("%s|%s|%d", tenant, portfolioID, recordedAt))
}
