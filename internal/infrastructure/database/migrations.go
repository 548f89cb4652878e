package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS carries the schema files compiled into the binary. The
// migrations package sets it at init:
//
//	//go:embed *.sql
//	var migrationsFS embed.FS
//
//	func init() { database.MigrationsFS = migrationsFS }
var MigrationsFS embed.FS

// MigrationsDir is the directory within MigrationsFS holding the
// schema files. "." when they sit at the root of the embedded FS.
var MigrationsDir = "migrations"

// migration is one schema step. Terminal Core migrations are
// forward-only: recovering a field controller means restoring the last
// good database file, not replaying rollback scripts, so there is no
// down direction.
type migration struct {
	version string // YYYYMMDD_HHMMSS, lexical order is time order
	name    string
	script  string
}

// Migrate applies every embedded schema file not yet recorded in
// schema_migrations, oldest first, each in its own transaction.
//
// A failed step rolls back and halts the run; earlier steps stay
// committed, and rerunning Migrate after fixing the file resumes at
// the failed step. Running against an up-to-date database is a no-op,
// so main calls this unconditionally at startup.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		) STRICT`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	steps, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range steps {
		if applied[m.version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// appliedVersions reads the set of already-applied migration versions.
func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema_migrations: %w", err)
	}
	return applied, nil
}

// applyMigration runs one step and records it, atomically.
func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, m.script); err != nil {
		return fmt.Errorf("executing: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads and orders the embedded schema files. Files not
// matching the migration naming convention are skipped.
func loadMigrations() ([]migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil // No migrations registered
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil // Directory absent means no migrations shipped
	}

	var steps []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		raw, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		steps = append(steps, migration{version: version, name: name, script: string(raw)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

// parseMigrationFilename splits a migration filename into version and
// description. Expected form: YYYYMMDD_HHMMSS_description.sql, e.g.
// "20260815_090000_initial_schema.sql".
func parseMigrationFilename(filename string) (version, name string, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(base, "_", 3)
	if len(parts) != 3 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		return "", "", false
	}
	return parts[0] + "_" + parts[1], parts[2], true
}
