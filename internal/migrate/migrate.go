// Package migrate loads embedded SQL migrations and decides which of them a
// database still needs. Backends own execution; this package owns ordering,
// checksums and conflict detection.
package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/neexbeast/trailweather/internal/journey"
)

// Table is the ledger of applied migrations.
const Table = "schema_migrations"

// Migration is one embedded SQL file.
type Migration struct {
	Name     string
	SQL      string
	Checksum string
}

// Statements splits the file into individual statements.
func (m Migration) Statements() []string {
	return SplitStatements(m.SQL)
}

// Load reads every .sql file under dir in lexicographic order.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", name, err)
		}
		sum := sha256.Sum256(b)
		out = append(out, Migration{Name: name, SQL: string(b), Checksum: hex.EncodeToString(sum[:])})
	}
	return out, nil
}

// Pending returns the migrations not yet in applied (name → checksum).
// A recorded migration this binary does not know, or one whose file has
// changed since it ran, is a conflict: the database may be ahead of or
// diverged from the code.
func Pending(known []Migration, applied map[string]string) ([]Migration, error) {
	byName := make(map[string]Migration, len(known))
	for _, m := range known {
		byName[m.Name] = m
	}

	var unknown []string
	for name := range applied {
		if _, ok := byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("database has migrations this binary does not know (%s): %w",
			strings.Join(unknown, ", "), journey.ErrMigrationConflict)
	}

	var pending []Migration
	for _, m := range known {
		sum, ok := applied[m.Name]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if sum != "" && sum != m.Checksum {
			return nil, fmt.Errorf("migration %s changed after it was applied: %w", m.Name, journey.ErrMigrationConflict)
		}
	}
	return pending, nil
}

// SplitStatements breaks a SQL file on semicolons that end a line. Comment
// lines and blank statements are dropped.
func SplitStatements(sql string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return out
}

// IsAlreadyExists reports whether a DDL error means the change is already in place.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	v := strings.ToLower(err.Error())
	return strings.Contains(v, "already exists") || strings.Contains(v, "duplicate column")
}
