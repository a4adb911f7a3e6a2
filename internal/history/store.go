// Package history records finished invocations in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/geminirun/internal/runner"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS invocations (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	transcript  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS invocations_started ON invocations (started_at DESC)`,
}

// Entry is one stored invocation.
type Entry struct {
	ID         string        `json:"id"`
	Mode       string        `json:"mode"`
	Model      string        `json:"model,omitempty"`
	SessionID  string        `json:"session_id,omitempty"`
	State      string        `json:"state"`
	ExitCode   int           `json:"exit_code"`
	Records    int64         `json:"records"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Transcript string        `json:"transcript,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Store is a history database. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// one writer at a time; batch runs record from several goroutines
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create history schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished invocation.
func (s *Store) Record(ctx context.Context, sum runner.Summary) error {
	var errText string
	if sum.Err != nil {
		errText = sum.Err.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO invocations
			(id, mode, model, session_id, state, exit_code, records, started_at, duration_ms, transcript, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, string(sum.Mode), sum.Model, sum.SessionID, sum.State.String(), sum.ExitCode,
		sum.Records, sum.StartedAt.UnixMilli(), sum.Duration.Milliseconds(), sum.Transcript, errText,
	)
	if err != nil {
		return fmt.Errorf("record invocation %s: %w", sum.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, model, session_id, state, exit_code, records, started_at, duration_ms, transcript, error
		FROM invocations ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history: invocation not found")

// Get returns one entry by id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mode, model, session_id, state, exit_code, records, started_at, duration_ms, transcript, error
		FROM invocations WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e          Entry
		startedMs  int64
		durationMs int64
	)
	err := sc.Scan(&e.ID, &e.Mode, &e.Model, &e.SessionID, &e.State, &e.ExitCode,
		&e.Records, &startedMs, &durationMs, &e.Transcript, &e.Error)
	if err != nil {
		return Entry{}, err
	}
	e.StartedAt = time.UnixMilli(startedMs)
	e.Duration = time.Duration(durationMs) * time.Millisecond
	return e, nil
}
