// Package history persists one row per completed build in a local SQLite
// database so past runs can be inspected from the CLI.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one build's outcome row.
type Entry struct {
	BuildID   string
	Started   time.Time
	Finished  time.Time
	Outcome   string
	Pages     int
	Rendered  int
	Failed    int
	Duration  time.Duration
	OutputDir string
}

// Store keeps build history in a SQLite database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the database at path. Use ":memory:" for an
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		pages INTEGER NOT NULL,
		rendered INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		output_dir TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_build_id ON builds(build_id);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one finished build.
func (s *Store) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (build_id, started, finished, outcome, pages, rendered, failed, duration_ms, output_dir) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		e.BuildID, e.Started.Unix(), e.Finished.Unix(), e.Outcome, e.Pages, e.Rendered, e.Failed, e.Duration.Milliseconds(), e.OutputDir,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// Recent returns up to n builds, newest first. n <= 0 defaults to 10.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT build_id, started, finished, outcome, pages, rendered, failed, duration_ms, output_dir FROM builds ORDER BY id DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished, durationMS int64
		if err := rows.Scan(&e.BuildID, &started, &finished, &e.Outcome, &e.Pages, &e.Rendered, &e.Failed, &durationMS, &e.OutputDir); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		e.Started = time.Unix(started, 0)
		e.Finished = time.Unix(finished, 0)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
