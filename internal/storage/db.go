package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/trailweather/internal/migrate"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations is the embedded Postgres schema, rooted at "migrations".
var Migrations fs.FS = embedded

// MigrationPool is the minimal interface required to run migrations.
// *pgxpool.Pool satisfies this interface.
type MigrationPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Connect opens a pgxpool connection and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating pgxpool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the .sql files under dir that the ledger has not
// recorded, in lexicographic order. Each file runs in its own transaction
// together with its ledger row. Every statement is written to be a no-op on
// a database that already has the change, so schemas created before the
// ledger existed upgrade cleanly.
func RunMigrations(ctx context.Context, pool MigrationPool, fsys fs.FS, dir string) error {
	known, err := migrate.Load(fsys, dir)
	if err != nil {
		return err
	}
	if len(known) == 0 {
		return nil
	}

	applied, err := readLedger(ctx, pool)
	if err != nil {
		return err
	}

	pending, err := migrate.Pending(known, applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := runInTx(ctx, pool, m); err != nil {
			return fmt.Errorf("executing migration %s: %w", m.Name, err)
		}
	}

	return nil
}

func readLedger(ctx context.Context, pool MigrationPool) (map[string]string, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrate.Table+` (
			name       TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("ensuring migration table: %w", err)
	}

	rows, err := tx.Query(ctx, `SELECT name, checksum FROM `+migrate.Table)
	if err != nil {
		return nil, fmt.Errorf("reading migration ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var name, checksum string
		if err := rows.Scan(&name, &checksum); err != nil {
			return nil, fmt.Errorf("scanning migration ledger: %w", err)
		}
		applied[name] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migration ledger: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return applied, nil
}

// runInTx runs one migration and records it, rolling back on failure.
func runInTx(ctx context.Context, pool MigrationPool, m migrate.Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("executing SQL: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+migrate.Table+` (name, checksum) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		m.Name, m.Checksum,
	); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
