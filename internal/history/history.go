// Package history persists build outcomes to a local SQLite database so
// rocket history can show what past builds did.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one build in the history store.
type Record struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Pages    int
	Failed   int
	Outcome  string
	Report   []byte // JSON build report
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if necessary) the history database at path. Use
// ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		report BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one finished build.
func (s *Store) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (id, started, duration_ms, pages, failed, outcome, report) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.Started.Unix(), r.Duration.Milliseconds(), r.Pages, r.Failed, r.Outcome, r.Report,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns up to n builds, most recent first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started, duration_ms, pages, failed, outcome, report FROM builds ORDER BY started DESC, id LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var started, durationMS int64
		if err := rows.Scan(&r.ID, &started, &durationMS, &r.Pages, &r.Failed, &r.Outcome, &r.Report); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		r.Started = time.Unix(started, 0)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return records, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
