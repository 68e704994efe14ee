package titles

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS titles (
	video_id       TEXT PRIMARY KEY,
	clean_title    TEXT NOT NULL,
	tag            TEXT NOT NULL DEFAULT '',
	original_title TEXT NOT NULL DEFAULT '',
	generated_at   TEXT NOT NULL DEFAULT '',
	updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stats (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// Store is the durable cache: the title mapping, the enabled flag, and
// the all-time replacement counter. SQLite in WAL mode; the caller must
// blank-import modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and applies pragmas + schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("titles: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("titles: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("titles: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("titles: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("titles: ping: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for tests. MaxOpenConns(1) keeps
// every query on the same in-memory database.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("titles.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// UpsertTitles writes records into the cache, replacing existing rows.
func (s *Store) UpsertTitles(ctx context.Context, m Mapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("titles: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO titles (video_id, clean_title, tag, original_title, generated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			clean_title = excluded.clean_title,
			tag = excluded.tag,
			original_title = excluded.original_title,
			generated_at = excluded.generated_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("titles: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for id, rec := range m {
		if _, err := stmt.ExecContext(ctx, id, rec.CleanTitle, rec.Tag, rec.OriginalTitle, rec.GeneratedAt, now); err != nil {
			return fmt.Errorf("titles: upsert %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// AllTitles loads the full cached mapping.
func (s *Store) AllTitles(ctx context.Context) (Mapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, clean_title, tag, original_title, generated_at FROM titles`)
	if err != nil {
		return nil, fmt.Errorf("titles: select: %w", err)
	}
	defer rows.Close()

	m := make(Mapping)
	for rows.Next() {
		var id string
		var rec Record
		if err := rows.Scan(&id, &rec.CleanTitle, &rec.Tag, &rec.OriginalTitle, &rec.GeneratedAt); err != nil {
			return nil, fmt.Errorf("titles: scan: %w", err)
		}
		m[id] = rec
	}
	return m, rows.Err()
}

// Enabled reads the user flag. Unset defaults to true.
func (s *Store) Enabled(ctx context.Context) (bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'enabled'`).Scan(&v)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("titles: read enabled: %w", err)
	}
	return v == "true", nil
}

// SetEnabled persists the user flag.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('enabled', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, v)
	if err != nil {
		return fmt.Errorf("titles: set enabled: %w", err)
	}
	return nil
}

// AddReplacements adds n to the durable all-time replacement counter.
func (s *Store) AddReplacements(ctx context.Context, n int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats (key, value) VALUES ('replacements', ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, n)
	if err != nil {
		return fmt.Errorf("titles: add replacements: %w", err)
	}
	return nil
}

// TotalReplacements reads the durable all-time replacement counter.
func (s *Store) TotalReplacements(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM stats WHERE key = 'replacements'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("titles: read replacements: %w", err)
	}
	return v, nil
}

// DeleteTitles removes ids from the cache.
func (s *Store) DeleteTitles(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("titles: begin: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM titles WHERE video_id = ?`, id); err != nil {
			return fmt.Errorf("titles: delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}
