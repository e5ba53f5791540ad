// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records delivered citation payloads in a SQLite database
// so earlier runs can be listed and re-used.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bibformat/pkg/types"
)

const defaultLimit = 20

// Entry is one recorded run.
type Entry struct {
	ID        int64              `json:"id" yaml:"id"`
	RunID     string             `json:"run_id" yaml:"run_id"`
	RanAt     time.Time          `json:"ran_at" yaml:"ran_at"`
	Keys      []string           `json:"keys" yaml:"keys"`
	Format    types.OutputFormat `json:"format" yaml:"format"`
	Style     string             `json:"style" yaml:"style"`
	Fragments int                `json:"fragments" yaml:"fragments"`
	Payload   string             `json:"payload" yaml:"payload"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			ran_at TEXT NOT NULL,
			keys TEXT NOT NULL,
			format TEXT NOT NULL,
			style TEXT,
			fragments INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ran_at ON runs(ran_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores e and sets its ID. A zero RanAt is set to now and an empty
// RunID gets a fresh UUID.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.RanAt.IsZero() {
		e.RanAt = time.Now().UTC()
	}
	if e.RunID == "" {
		e.RunID = uuid.New().String()
	}
	keysJSON, err := json.Marshal(e.Keys)
	if err != nil {
		return fmt.Errorf("encoding keys: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, ran_at, keys, format, style, fragments, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.RanAt.UTC().Format(time.RFC3339Nano), string(keysJSON), string(e.Format),
		e.Style, e.Fragments, e.Payload,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}
	e.ID = id
	return nil
}

// List returns the most recent runs, newest first. A non-positive limit
// uses the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	return e, err
}

// GetRun returns the run with the given UUID.
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return e, err
}

const selectRuns = `SELECT id, run_id, ran_at, keys, format, style, fragments, payload FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e        Entry
		ranAt    string
		keysJSON string
		format   string
		style    sql.NullString
	)
	if err := row.Scan(&e.ID, &e.RunID, &ranAt, &keysJSON, &format, &style, &e.Fragments, &e.Payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	e.RanAt, _ = time.Parse(time.RFC3339Nano, ranAt)
	if err := json.Unmarshal([]byte(keysJSON), &e.Keys); err != nil {
		return nil, fmt.Errorf("decoding keys of run %d: %w", e.ID, err)
	}
	e.Format = types.OutputFormat(format)
	e.Style = style.String
	return &e, nil
}

// WriteYAML writes entries to w as a YAML list.
func WriteYAML(w io.Writer, entries []Entry) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(entries)
}
