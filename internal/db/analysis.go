package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/formation"
)

// ErrRunNotFound is returned when an analysis run id is unknown.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun describes one persisted detection pass.
type AnalysisRun struct {
	RunID        string
	CreatedAt    time.Time
	Params       *config.AnalysisConfig
	RangeStartMs float64
	RangeEndMs   float64
	EventCount   int
}

// RecordAnalysisRun stores a detection pass and its events in one
// transaction and returns the new run id.
func (db *DB) RecordAnalysisRun(ctx context.Context, params *config.AnalysisConfig, startMs, endMs float64, events []formation.Event) (string, error) {
	if params == nil {
		params = config.EmptyAnalysisConfig()
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis params: %w", err)
	}

	runID := uuid.NewString()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, created_unix_nanos, params_json, range_start_ms, range_end_ms, event_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, time.Now().UnixNano(), string(paramsJSON), startMs, endMs, len(events))
	if err != nil {
		return "", fmt.Errorf("failed to insert analysis run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO formation_events (run_id, user_a, user_b, end_time_ms, duration_ms, drift_a_cm, drift_b_cm)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, runID, ev.UserA, ev.UserB, ev.EndTimeMs, ev.DurationMs, ev.DriftA, ev.DriftB); err != nil {
			return "", fmt.Errorf("failed to insert formation event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit analysis run: %w", err)
	}
	return runID, nil
}

func scanRun(row interface{ Scan(...any) error }) (*AnalysisRun, error) {
	var (
		run        AnalysisRun
		nanos      int64
		paramsJSON string
	)
	if err := row.Scan(&run.RunID, &nanos, &paramsJSON, &run.RangeStartMs, &run.RangeEndMs, &run.EventCount); err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, nanos).UTC()
	run.Params = config.EmptyAnalysisConfig()
	if err := json.Unmarshal([]byte(paramsJSON), run.Params); err != nil {
		return nil, fmt.Errorf("run %s has invalid params: %w", run.RunID, err)
	}
	return &run, nil
}

const runColumns = `run_id, created_unix_nanos, params_json, range_start_ms, range_end_ms, event_count`

// AnalysisRun returns the run with id runID.
func (db *DB) AnalysisRun(ctx context.Context, runID string) (*AnalysisRun, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

// LatestAnalysisRun returns the most recently recorded run.
func (db *DB) LatestAnalysisRun(ctx context.Context) (*AnalysisRun, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs ORDER BY created_unix_nanos DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// AnalysisRuns lists all runs, newest first.
func (db *DB) AnalysisRuns(ctx context.Context) ([]AnalysisRun, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM analysis_runs ORDER BY created_unix_nanos DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FormationEvents returns the events of a run ordered by pair and end time.
func (db *DB) FormationEvents(ctx context.Context, runID string) ([]formation.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_a, user_b, end_time_ms, duration_ms, drift_a_cm, drift_b_cm
		FROM formation_events WHERE run_id = ?
		ORDER BY user_a, user_b, end_time_ms`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query formation events: %w", err)
	}
	defer rows.Close()

	var events []formation.Event
	for rows.Next() {
		var ev formation.Event
		if err := rows.Scan(&ev.UserA, &ev.UserB, &ev.EndTimeMs, &ev.DurationMs, &ev.DriftA, &ev.DriftB); err != nil {
			return nil, fmt.Errorf("failed to scan formation event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteAnalysisRun removes a run and, through the foreign key, its events.
func (db *DB) DeleteAnalysisRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete analysis run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}
