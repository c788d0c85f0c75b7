// Package history persists per-run suite totals to a local SQLite database
// so past runs can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded suite run.
type Run struct {
	ID                uuid.UUID
	Timestamp         time.Time
	Duration          time.Duration
	FeaturesPassed    int
	FeaturesFailed    int
	FeaturesSkipped   int
	ScenariosPassed   int
	ScenariosFailed   int
	ScenariosSkipped  int
	StepsPassed       int
	StepsFailed       int
	StepsSkipped      int
	StepsUndefined    int
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	features_passed INTEGER NOT NULL,
	features_failed INTEGER NOT NULL,
	features_skipped INTEGER NOT NULL,
	scenarios_passed INTEGER NOT NULL,
	scenarios_failed INTEGER NOT NULL,
	scenarios_skipped INTEGER NOT NULL,
	steps_passed INTEGER NOT NULL,
	steps_failed INTEGER NOT NULL,
	steps_skipped INTEGER NOT NULL,
	steps_undefined INTEGER NOT NULL
)`

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record inserts one finished run.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, timestamp, duration_ms,
			features_passed, features_failed, features_skipped,
			scenarios_passed, scenarios_failed, scenarios_skipped,
			steps_passed, steps_failed, steps_skipped, steps_undefined
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Timestamp.Unix(), run.Duration.Milliseconds(),
		run.FeaturesPassed, run.FeaturesFailed, run.FeaturesSkipped,
		run.ScenariosPassed, run.ScenariosFailed, run.ScenariosSkipped,
		run.StepsPassed, run.StepsFailed, run.StepsSkipped, run.StepsUndefined,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the latest n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, duration_ms,
			features_passed, features_failed, features_skipped,
			scenarios_passed, scenarios_failed, scenarios_skipped,
			steps_passed, steps_failed, steps_skipped, steps_undefined
		FROM runs ORDER BY timestamp DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			id         string
			ts         int64
			durationMs int64
		)
		if err := rows.Scan(&id, &ts, &durationMs,
			&run.FeaturesPassed, &run.FeaturesFailed, &run.FeaturesSkipped,
			&run.ScenariosPassed, &run.ScenariosFailed, &run.ScenariosSkipped,
			&run.StepsPassed, &run.StepsFailed, &run.StepsSkipped, &run.StepsUndefined,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing run id: %w", err)
		}
		run.Timestamp = time.Unix(ts, 0)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
