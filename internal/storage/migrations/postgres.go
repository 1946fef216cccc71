package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"risklab/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded postgres schema file through
// the given pool. Files run in filename order; each is a single idempotent
// CREATE IF NOT EXISTS script, so reruns are safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("list postgres migrations: %w", err)
	}

	for _, name := range files {
		script, err := fs.ReadFile(PostgresFS, "postgres/"+name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		sql := strings.TrimSpace(string(script))
		if sql == "" {
			continue
		}
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// sqlFiles returns the .sql entries of an embedded migration directory,
// sorted so the numeric filename prefixes define the apply order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
