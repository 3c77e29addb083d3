package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Migration is one versioned SQL file, named like 001_initial_schema.sql
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// Migrator applies migrations and records them in schema_migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

const createLedger = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// RunMigrations applies the pending migrations found in fsys, in version
// order, each in its own transaction. A recorded migration whose file
// content changed since it ran is reported as an error. It returns the
// versions applied by this call.
func (m *Migrator) RunMigrations(ctx context.Context, fsys fs.FS) ([]int, error) {
	if _, err := m.db.ExecContext(ctx, createLedger); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	recorded, err := m.recorded(ctx)
	if err != nil {
		return nil, err
	}

	migrations, err := loadMigrations(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	var applied []int
	for _, mig := range migrations {
		if sum, done := recorded[mig.Version]; done {
			if sum != mig.Checksum {
				return applied, fmt.Errorf("migration %d (%s) was modified after it was applied", mig.Version, mig.Name)
			}
			continue
		}

		m.logger.Info("Applying migration", zap.Int("version", mig.Version), zap.String("name", mig.Name))
		if err := m.apply(ctx, mig); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
		applied = append(applied, mig.Version)
	}

	m.logger.Info("Database schema up to date",
		zap.Int("applied", len(applied)),
		zap.Int("known", len(migrations)))
	return applied, nil
}

// recorded maps applied versions to their checksum
func (m *Migrator) recorded(ctx context.Context) (map[int]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var (
			version  int
			checksum string
		)
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		out[version] = checksum
	}
	return out, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, checksum) VALUES (?, ?, ?)",
		mig.Version, mig.Name, mig.Checksum,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads every .sql file of fsys, sorted by version
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	var out []Migration
	seen := make(map[int]string)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".sql" {
			return nil
		}

		mig, err := parseMigrationName(path.Base(p))
		if err != nil {
			return err
		}
		if prev, dup := seen[mig.Version]; dup {
			return fmt.Errorf("duplicate migration version %d: %s and %s", mig.Version, prev, p)
		}
		seen[mig.Version] = p

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", p, err)
		}
		sum := sha256.Sum256(content)
		mig.SQL = string(content)
		mig.Checksum = hex.EncodeToString(sum[:])

		out = append(out, mig)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func parseMigrationName(filename string) (Migration, error) {
	prefix, name, _ := strings.Cut(strings.TrimSuffix(filename, ".sql"), "_")
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return Migration{}, fmt.Errorf("invalid migration filename %q, want NNN_name.sql", filename)
	}
	return Migration{Version: version, Name: name}, nil
}
