// Package migrate applies the numbered SQL files under migrations/ and records
// each one in schema_migrations.
package migrate

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"spendy/internal/db"
	"spendy/internal/logger"
)

const downMarker = "-- +migrate Down"

const createTrackingTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename text PRIMARY KEY,
	applied_at timestamptz NOT NULL DEFAULT now()
)`

// Up applies every file in dir that schema_migrations does not list yet, in
// filename order. Each file and its bookkeeping row commit together.
func Up(ctx context.Context, database *sqlx.DB, dir string) ([]string, error) {
	if _, err := database.ExecContext(ctx, createTrackingTable); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	var done []string
	if err := database.SelectContext(ctx, &done, `SELECT filename FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("read migration state: %w", err)
	}

	log := logger.FromContext(ctx)
	var applied []string
	for _, file := range Pending(files, done) {
		name := filepath.Base(file)
		content, err := os.ReadFile(file)
		if err != nil {
			return applied, err
		}
		statements := SplitStatements(UpSection(string(content)))
		err = db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
			for _, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		log.Info().Str("file", name).Int("statements", len(statements)).Msg("applied migration")
		applied = append(applied, name)
	}
	return applied, nil
}

// Pending returns the paths whose base names are not in done, sorted.
func Pending(files, done []string) []string {
	seen := make(map[string]bool, len(done))
	for _, name := range done {
		seen[name] = true
	}
	var out []string
	for _, file := range files {
		if !seen[filepath.Base(file)] {
			out = append(out, file)
		}
	}
	sort.Strings(out)
	return out
}

// UpSection returns the part of a migration before the down marker.
func UpSection(content string) string {
	up, _, _ := strings.Cut(content, downMarker)
	return up
}

// SplitStatements breaks a script into statements at lines ending in ";".
// Comment lines are dropped and dollar-quoted bodies are kept whole.
func SplitStatements(script string) []string {
	var statements []string
	var current strings.Builder
	inDollar := false
	scanner := bufio.NewScanner(strings.NewReader(script))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !inDollar && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		if strings.Count(line, "$$")%2 == 1 {
			inDollar = !inDollar
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if !inDollar && strings.HasSuffix(trimmed, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
