// Package runlog keeps a SQLite history of morphology runs and their
// per-label pixel counts.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/labelstats"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one recorded operation.
type Run struct {
	ID        int64
	StartedAt time.Time
	Mode      string
	Input     string
	Output    string
	Shape     string
	Scale     string
	Workers   int
	Elapsed   time.Duration
	Changed   int
	Changes   []labelstats.Change
}

// Store is a run history database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at INTEGER NOT NULL,
			mode TEXT NOT NULL,
			input TEXT,
			output TEXT,
			shape TEXT NOT NULL,
			scale TEXT NOT NULL,
			workers INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			changed INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS label_counts (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			label INTEGER NOT NULL,
			before_count INTEGER NOT NULL,
			after_count INTEGER NOT NULL,
			PRIMARY KEY (run_id, label)
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Record stores a run with its label changes in one transaction and returns
// the new run id.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, mode, input, output, shape, scale, workers, elapsed_ns, changed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UnixNano(), run.Mode, run.Input, run.Output, run.Shape, run.Scale,
		run.Workers, int64(run.Elapsed), run.Changed)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO label_counts (run_id, label, before_count, after_count) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare label insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range run.Changes {
		if _, err := stmt.ExecContext(ctx, id, int64(c.Label), c.Before, c.After); err != nil {
			return 0, fmt.Errorf("failed to insert counts of label %d: %w", c.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first, without label changes.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, mode, input, output, shape, scale, workers, elapsed_ns, changed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// Get returns one run including its label changes.
func (s *Store) Get(ctx context.Context, id int64) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, mode, input, output, shape, scale, workers, elapsed_ns, changed
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT label, before_count, after_count FROM label_counts WHERE run_id = ? ORDER BY label", id)
	if err != nil {
		return Run{}, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label int64
		var c labelstats.Change
		if err := rows.Scan(&label, &c.Before, &c.After); err != nil {
			return Run{}, fmt.Errorf("failed to scan label counts: %w", err)
		}
		c.Label = uint32(label)
		run.Changes = append(run.Changes, c)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("failed to read label counts: %w", err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run     Run
		started int64
		elapsed int64
		input   sql.NullString
		output  sql.NullString
	)
	err := sc.Scan(&run.ID, &started, &run.Mode, &input, &output, &run.Shape, &run.Scale,
		&run.Workers, &elapsed, &run.Changed)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = time.Unix(0, started)
	run.Elapsed = time.Duration(elapsed)
	run.Input = input.String
	run.Output = output.String
	return run, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
