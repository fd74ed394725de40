package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPipelineRuns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	run := PipelineRun{
		RunID:     "0b6a1f64-run-a",
		StartedAt: start,
		Streams:   []string{"cam-1", "cam-2"},
		Config:    json.RawMessage(`{"speed_limit":60}`),
	}
	if err := db.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if err := db.InsertRun(ctx, PipelineRun{RunID: "run-b", StartedAt: start.Add(time.Hour)}); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	got, err := db.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunStatusRunning || got.FinishedAt != nil {
		t.Errorf("new run = %+v", got)
	}
	if len(got.Streams) != 2 || got.Streams[1] != "cam-2" {
		t.Errorf("streams = %v", got.Streams)
	}

	if err := db.CompleteRun(ctx, run.RunID, start.Add(10*time.Minute), 1200, 7, nil); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if err := db.CompleteRun(ctx, "run-b", start.Add(2*time.Hour), 10, 0, errors.New("feed closed")); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if err := db.CompleteRun(ctx, "missing", start, 0, 0, nil); err == nil {
		t.Error("expected error completing unknown run")
	}

	runs, err := db.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns returned %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-b" || runs[0].Status != RunStatusFailed || runs[0].Error != "feed closed" {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].Frames != 1200 || runs[1].Violations != 7 || runs[1].Status != RunStatusCompleted {
		t.Errorf("completed run = %+v", runs[1])
	}
	if runs[1].FinishedAt == nil || !runs[1].FinishedAt.Equal(start.Add(10*time.Minute)) {
		t.Errorf("FinishedAt = %v", runs[1].FinishedAt)
	}
}
