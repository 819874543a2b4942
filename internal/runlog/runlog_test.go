package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/labelstats"
)

func TestStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	started := time.Unix(1700000000, 123)
	run := Run{
		StartedAt: started,
		Mode:      "erode",
		Input:     "in.png",
		Output:    "out.png",
		Shape:     "7",
		Scale:     "1",
		Workers:   2,
		Elapsed:   1500 * time.Microsecond,
		Changed:   2,
		Changes: []labelstats.Change{
			{Label: 0, Before: 4, After: 6},
			{Label: 1, Before: 3, After: 1},
		},
	}

	id, err := s.Record(ctx, run)
	if err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Expected positive run id, got %d", id)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if got.Mode != "erode" || got.Input != "in.png" || got.Output != "out.png" {
		t.Errorf("Unexpected run fields: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Elapsed != run.Elapsed {
		t.Errorf("Elapsed = %v, want %v", got.Elapsed, run.Elapsed)
	}
	if len(got.Changes) != 2 {
		t.Fatalf("Expected 2 label changes, got %d", len(got.Changes))
	}
	if got.Changes[1] != run.Changes[1] {
		t.Errorf("Change = %+v, want %+v", got.Changes[1], run.Changes[1])
	}
}

func TestStore_Recent(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	for _, mode := range []string{"erode", "dilate", "erode"} {
		if _, err := s.Record(ctx, Run{StartedAt: time.Now(), Mode: mode, Shape: "4x4", Scale: "1,1"}); err != nil {
			t.Fatalf("Failed to record run: %v", err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID <= runs[1].ID {
		t.Errorf("Expected newest first, got ids %d, %d", runs[0].ID, runs[1].ID)
	}
	if runs[1].Mode != "dilate" {
		t.Errorf("Expected second run to be dilate, got %s", runs[1].Mode)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	_, err = s.Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if _, err := s.Record(ctx, Run{StartedAt: time.Now(), Mode: "dilate", Shape: "3", Scale: "2"}); err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Mode != "dilate" {
		t.Errorf("Unexpected runs after reopen: %+v", runs)
	}
	if s.Path() != dbPath {
		t.Errorf("Path = %s, want %s", s.Path(), dbPath)
	}
}
