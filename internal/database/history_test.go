package database

import (
	"testing"

	"exportappraiser/internal/models"
)

func TestRecentRunsOrderingAndLimit(t *testing.T) {
	db := newTestDatabase(t)
	defer db.Close()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := db.CreateRun(i + 1)
		if err != nil {
			t.Fatalf("CreateRun %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	if err := db.FinishRun(ids[1], models.RunStopped, models.RunTally{Processed: 1}); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := db.RecentRuns(0)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Fatalf("expected newest-first ordering: %v", runs)
	}
	if runs[1].Status != models.RunStopped {
		t.Fatalf("expected stopped status for middle run, got %s", runs[1].Status)
	}

	limited, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns with limit failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != ids[2] {
		t.Fatalf("unexpected limited runs: %v", limited)
	}
}

func TestRecentRunsEmpty(t *testing.T) {
	db := newTestDatabase(t)
	defer db.Close()

	runs, err := db.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}
