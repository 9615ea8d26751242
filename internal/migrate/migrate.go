// Package migrate applies the embedded schema migrations. Each migration runs
// in its own transaction together with the version bump, so a failed
// migration leaves the schema at the previous version.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/lostfound-admin/migrations"
)

// Migration is one numbered schema change with its up and down SQL.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// ErrorClassifier turns a driver error into the caller's error model.
type ErrorClassifier func(message string, err error) error

type Option func(*Migrator)

func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithSource replaces the embedded migrations.
func WithSource(src fs.FS) Option {
	return func(m *Migrator) { m.source = src }
}

// WithErrorClassifier lets the store adapter mark retryable driver failures.
func WithErrorClassifier(c ErrorClassifier) Option {
	return func(m *Migrator) { m.classify = c }
}

type Migrator struct {
	db       *sql.DB
	source   fs.FS
	logger   *slog.Logger
	classify ErrorClassifier
}

func New(db *sql.DB, opts ...Option) *Migrator {
	m := &Migrator{
		db:     db,
		source: migrations.FS,
		logger: slog.Default(),
		classify: func(message string, err error) error {
			return fmt.Errorf("%s: %w", message, err)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var fileName = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// Load reads the migration files, pairing up and down scripts by version.
// Every version needs an up script; down scripts are optional.
func (m *Migrator) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := fileName.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid migration version in %s", e.Name())
		}
		body, err := fs.ReadFile(m.source, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: match[2]}
			byVersion[version] = mig
		} else if mig.Name != match[2] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, mig.Name, match[2])
		}
		if match[3] == "up" {
			mig.UpSQL = string(body)
		} else {
			mig.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.UpSQL == "" {
			return nil, fmt.Errorf("migration %d_%s has no up script", mig.Version, mig.Name)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)`)
	if err != nil {
		return m.classify("failed to create migrations table", err)
	}
	return nil
}

// Version returns the applied schema version, 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, m.classify("failed to read schema version", err)
	}
	return version, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	all, err := m.Load()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}
	return m.To(ctx, all[len(all)-1].Version)
}

// To migrates up or down until the schema is at target.
func (m *Migrator) To(ctx context.Context, target int) error {
	all, err := m.Load()
	if err != nil {
		return err
	}
	if target < 0 || (target > 0 && !hasVersion(all, target)) {
		return fmt.Errorf("unknown migration version %d", target)
	}
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	applied := 0
	switch {
	case target > current:
		for _, mig := range all {
			if mig.Version <= current || mig.Version > target {
				continue
			}
			if err := m.apply(ctx, mig, true); err != nil {
				return err
			}
			applied++
		}
	case target < current:
		for i := len(all) - 1; i >= 0; i-- {
			mig := all[i]
			if mig.Version > current || mig.Version <= target {
				continue
			}
			if mig.DownSQL == "" {
				return fmt.Errorf("no down migration for version %d", mig.Version)
			}
			if err := m.apply(ctx, mig, false); err != nil {
				return err
			}
			applied++
		}
	}

	if applied == 0 {
		m.logger.DebugContext(ctx, "schema up to date", slog.Int("version", current))
		return nil
	}
	m.logger.InfoContext(ctx, "schema migrated",
		slog.Int("from", current),
		slog.Int("to", target),
		slog.Int("applied", applied))
	return nil
}

func hasVersion(all []Migration, v int) bool {
	for _, mig := range all {
		if mig.Version == v {
			return true
		}
	}
	return false
}

// apply runs one migration and records the resulting version atomically.
func (m *Migrator) apply(ctx context.Context, mig Migration, up bool) (err error) {
	direction, script, version := "up", mig.UpSQL, mig.Version
	if !up {
		direction, script, version = "down", mig.DownSQL, mig.Version-1
	}
	m.logger.InfoContext(ctx, "applying migration",
		slog.String("direction", direction),
		slog.Int("version", mig.Version),
		slog.String("name", mig.Name))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return m.classify("failed to begin migration", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range Split(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return m.classify(fmt.Sprintf("migration %d_%s %s failed on %q", mig.Version, mig.Name, direction, stmt), err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return m.classify("failed to clear schema version", err)
	}
	if version > 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return m.classify("failed to record schema version", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return m.classify("failed to commit migration", err)
	}
	return nil
}

// Split breaks a script into statements on semicolons that are outside
// quotes and comments. Comments are dropped and empty statements skipped.
func Split(script string) []string {
	var (
		stmts []string
		cur   []byte
	)
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			stmts = append(stmts, s)
		}
		cur = cur[:0]
	}

	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			// Quoted text runs to the matching quote; a doubled quote is an escape.
			end := i + 1
			for end < len(script) {
				if script[end] == c {
					if end+1 < len(script) && script[end+1] == c {
						end += 2
						continue
					}
					break
				}
				end++
			}
			if end >= len(script) {
				end = len(script) - 1
			}
			cur = append(cur, script[i:end+1]...)
			i = end
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			for i < len(script) && script[i] != '\n' {
				i++
			}
			cur = append(cur, '\n')
		case c == '/' && i+1 < len(script) && script[i+1] == '*':
			i += 2
			for i+1 < len(script) && !(script[i] == '*' && script[i+1] == '/') {
				i++
			}
			i++
			cur = append(cur, ' ')
		case c == ';':
			flush()
		default:
			cur = append(cur, c)
		}
	}
	flush()
	return stmts
}
