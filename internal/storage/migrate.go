package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Migration is one numbered schema step, e.g. "0001_tasks".
type Migration struct {
	Version string
	Applied bool
}

func MigrateUp(db *sql.DB) error {
	_, err := MigrateUpContext(context.Background(), db)
	return err
}

func MigrateDown(db *sql.DB) error {
	_, err := MigrateDownContext(context.Background(), db)
	return err
}

// MigrateUpContext applies every migration not yet recorded in
// schema_migrations, in version order, and returns the versions applied.
func MigrateUpContext(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return nil, fmt.Errorf("create schema table: %w", err)
	}
	versions, err := migrationVersions()
	if err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, v := range versions {
		if done[v] {
			continue
		}
		if err := runMigration(ctx, db, v, ".up.sql", `INSERT INTO schema_migrations (version) VALUES (?)`); err != nil {
			return applied, err
		}
		applied = append(applied, v)
	}
	return applied, nil
}

// MigrateDownContext reverts every applied migration, newest first.
func MigrateDownContext(ctx context.Context, db *sql.DB) ([]string, error) {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return nil, fmt.Errorf("create schema table: %w", err)
	}
	versions, err := migrationVersions()
	if err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if !done[v] {
			continue
		}
		if err := runMigration(ctx, db, v, ".down.sql", `DELETE FROM schema_migrations WHERE version = ?`); err != nil {
			return reverted, err
		}
		reverted = append(reverted, v)
	}
	return reverted, nil
}

// MigrationStatus lists the embedded migrations and whether each is applied.
func MigrationStatus(ctx context.Context, db *sql.DB) ([]Migration, error) {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return nil, fmt.Errorf("create schema table: %w", err)
	}
	versions, err := migrationVersions()
	if err != nil {
		return nil, err
	}
	done, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(versions))
	for _, v := range versions {
		out = append(out, Migration{Version: v, Applied: done[v]})
	}
	return out, nil
}

func migrationVersions() ([]string, error) {
	entries, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	versions := make([]string, 0, len(entries))
	for _, name := range entries {
		versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".up.sql"))
	}
	sort.Strings(versions)
	return versions, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema versions: %w", err)
	}
	defer rows.Close()
	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

// runMigration executes one migration file and its bookkeeping statement in
// a single transaction.
func runMigration(ctx context.Context, db *sql.DB, version, suffix, record string) error {
	name := "migrations/" + version + suffix
	sqlBytes, err := migrationFiles.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}
