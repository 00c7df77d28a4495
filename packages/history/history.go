// Package history records run outcomes in a SQLite database so that past
// runs and flaky cases can be queried.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/runtests/packages/core/runner"
)

// DefaultPath is the database used when none is configured.
const DefaultPath = ".runtests/history.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	program     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	suites      INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	load_errors INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS case_results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	suite       TEXT NOT NULL,
	case_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS case_results_case ON case_results (suite, case_id);
`

// Store is a SQLite backed run history
type Store struct {
	db *sql.DB
}

// RunRecord is one recorded run
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	Program    string
	Duration   time.Duration
	Suites     int
	Passed     int
	Failed     int
	Skipped    int
	LoadErrors int
}

// FlakyCase is a case that both passed and failed across recorded runs
type FlakyCase struct {
	Suite    string
	ID       string
	Runs     int
	Passes   int
	Failures int
}

// Open opens (creating if needed) the history database. The location may be
// a plain path or use the sqlite:// or sqlite: prefix.
func Open(location string) (*Store, error) {
	dsn := parseLocation(location)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps writes serialized for SQLite.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	return &Store{db: db}, nil
}

func parseLocation(location string) string {
	location = strings.TrimSpace(location)
	if strings.HasPrefix(location, "sqlite://") {
		return strings.TrimPrefix(location, "sqlite://")
	}
	if strings.HasPrefix(location, "sqlite:") {
		return strings.TrimPrefix(location, "sqlite:")
	}
	return location
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores a run and every executed case in one transaction.
// Suites that did not load are recorded with a single row whose case id is
// empty and whose status is "error".
func (s *Store) RecordRun(ctx context.Context, runID string, startedAt time.Time, run *runner.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, program, duration_ms, suites, passed, failed, skipped, load_errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, startedAt.UnixMilli(), run.Program, run.Duration.Milliseconds(),
		len(run.Suites), run.Passed, run.Failed, run.Skipped, run.LoadErrors)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO case_results (run_id, suite, case_id, status, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, suite := range run.Suites {
		if suite.Err != nil {
			if _, err := stmt.ExecContext(ctx, runID, suite.Suite, "", string(runner.StatusError), 0, suite.Err.Error()); err != nil {
				return fmt.Errorf("failed to record suite %s: %w", suite.Suite, err)
			}
			continue
		}
		for _, c := range suite.Results {
			var errText sql.NullString
			if c.Error != nil {
				errText = sql.NullString{String: c.Error.Error(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, runID, suite.Suite, c.ID, string(c.Status), c.Duration.Milliseconds(), errText); err != nil {
				return fmt.Errorf("failed to record case %s: %w", c.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, program, duration_ms, suites, passed, failed, skipped, load_errors
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedMs, durationMs int64
		if err := rows.Scan(&r.ID, &startedMs, &r.Program, &durationMs, &r.Suites, &r.Passed, &r.Failed, &r.Skipped, &r.LoadErrors); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Flaky returns cases that have both passed and failed in recorded runs,
// most failures first. Skipped outcomes are ignored.
func (s *Store) Flaky(ctx context.Context, limit int) ([]FlakyCase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT suite, case_id, COUNT(*) AS runs,
		        SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END) AS passes,
		        SUM(CASE WHEN status IN ('fail', 'error', 'timeout') THEN 1 ELSE 0 END) AS failures
		 FROM case_results
		 WHERE case_id != '' AND status != 'skip'
		 GROUP BY suite, case_id
		 HAVING passes > 0 AND failures > 0
		 ORDER BY failures DESC, suite, case_id
		 LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []FlakyCase
	for rows.Next() {
		var f FlakyCase
		if err := rows.Scan(&f.Suite, &f.ID, &f.Runs, &f.Passes, &f.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
