package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// PipelineRun records one invocation of the pipeline so every artifact can
// be traced to the configuration that produced it.
type PipelineRun struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Streams    []string        `json:"streams"`
	Config     json.RawMessage `json:"config"`
	Frames     int64           `json:"frames"`
	Violations int64           `json:"violations"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
}

// InsertRun records the start of a run.
func (db *DB) InsertRun(ctx context.Context, run PipelineRun) error {
	streams, err := json.Marshal(run.Streams)
	if err != nil {
		return fmt.Errorf("failed to encode streams: %w", err)
	}
	cfg := run.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, started_at_unix, streams, config_json, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.Unix(), string(streams), string(cfg), run.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.RunID, err)
	}
	return nil
}

// CompleteRun stores the final counters. A non-nil runErr marks the run failed.
func (db *DB) CompleteRun(ctx context.Context, runID string, finished time.Time, frames, violations int64, runErr error) error {
	status, msg := RunStatusCompleted, ""
	if runErr != nil {
		status, msg = RunStatusFailed, runErr.Error()
	}
	res, err := db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET finished_at_unix = ?, frames = ?, violations = ?, status = ?, error = ?
		WHERE run_id = ?`,
		finished.Unix(), frames, violations, status, msg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun returns one run.
func (db *DB) GetRun(ctx context.Context, runID string) (PipelineRun, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PipelineRun{}, fmt.Errorf("run %s not found", runID)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at_unix DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

const runColumns = `run_id, started_at_unix, finished_at_unix, streams, config_json, frames, violations, status, error`

func scanRun(sc scanner) (PipelineRun, error) {
	var (
		r        PipelineRun
		started  int64
		finished sql.NullInt64
		streams  string
		cfg      string
	)
	if err := sc.Scan(&r.RunID, &started, &finished, &streams, &cfg, &r.Frames, &r.Violations, &r.Status, &r.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("failed to scan run: %w", err)
	}
	r.StartedAt = time.Unix(started, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(streams), &r.Streams); err != nil {
		return r, fmt.Errorf("failed to decode streams of run %s: %w", r.RunID, err)
	}
	r.Config = json.RawMessage(cfg)
	return r, nil
}
