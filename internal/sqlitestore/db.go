package sqlitestore

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/neexbeast/trailweather/internal/migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Migrate applies embedded migrations that have not run yet. Each file runs
// in its own transaction; DDL that finds its change already in place counts
// as applied, so databases created before the ledger existed upgrade cleanly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	known, err := migrate.Load(migrationFS, "migrations")
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrate.Table+` (
			name       TEXT PRIMARY KEY,
			checksum   TEXT NOT NULL DEFAULT '',
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("ensuring migration table: %w", err)
	}

	var rows []struct {
		Name     string `db:"name"`
		Checksum string `db:"checksum"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT name, checksum FROM `+migrate.Table); err != nil {
		return fmt.Errorf("reading migration ledger: %w", err)
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.Name] = r.Checksum
	}

	pending, err := migrate.Pending(known, applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("executing migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sqlx.DB, m migrate.Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	for _, stmt := range m.Statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil && !migrate.IsAlreadyExists(err) {
			_ = tx.Rollback()
			return fmt.Errorf("executing SQL: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+migrate.Table+` (name, checksum, applied_at) VALUES (?, ?, ?)`,
		m.Name, m.Checksum, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recording migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
