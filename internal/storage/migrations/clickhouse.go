package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	chstore "risklab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the target database when absent, applies
// the embedded schema files in filename order and hands back a live
// connection to the target database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := dsnDatabase(dsn)
	if err != nil {
		return nil, err
	}

	// The target database may not exist yet, so CREATE DATABASE runs over
	// a connection to the server default.
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse server: %w", err)
	}
	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+dbName); err != nil {
		admin.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := admin.Close(); err != nil {
		return nil, fmt.Errorf("close server connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect database %s: %w", dbName, err)
	}

	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("list clickhouse migrations: %w", err)
	}
	for _, name := range files {
		script, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+name)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err := applyScript(ctx, conn, name, string(script)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// applyScript executes one migration file statement by statement. The
// driver runs a single statement per Exec call, so the script is split
// first and vetted for constructs the splitter cannot handle.
func applyScript(ctx context.Context, conn *chstore.Conn, name, script string) error {
	if err := checkSplitterSafe(script); err != nil {
		return fmt.Errorf("vet %s: %w", name, err)
	}
	for _, stmt := range splitSQL(script) {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// splitSQL breaks a migration script into driver-executable statements.
// Comment-only and blank lines are dropped, the remainder splits on ";".
// The splitter does not parse SQL: scripts must keep semicolons out of
// string literals (checkSplitterSafe rejects offenders), use -- comments
// only and terminate every statement with a semicolon.
func splitSQL(script string) []string {
	var kept strings.Builder
	for _, line := range strings.Split(script, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}

	var stmts []string
	for _, raw := range strings.Split(kept.String(), ";") {
		if stmt := strings.TrimSpace(raw); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// checkSplitterSafe rejects scripts carrying a semicolon inside a
// single-quoted literal, the one construct that would make splitSQL cut a
// statement in half. Doubled quotes inside a literal are the escape form.
func checkSplitterSafe(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return fmt.Errorf("semicolon inside a string literal defeats the statement splitter")
			}
		}
	}
	return nil
}

// dsnDatabase extracts the database path component of a clickhouse DSN.
func dsnDatabase(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("clickhouse dsn names no database")
	}
	return name, nil
}
