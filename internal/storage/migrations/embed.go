// Package migrations carries the embedded schema for both backends and
// the runners that apply it.
package migrations

import "embed"

// PostgresFS holds the transactional-store schema (decisions, guardrails,
// outcomes, violations, adjustments, documents).
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the analytical-store schema (portfolio snapshots,
// learning trace, simulation metrics).
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
