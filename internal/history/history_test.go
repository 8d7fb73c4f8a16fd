package history

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/featuresync"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReport(id string, started time.Time) *featuresync.Report {
	return &featuresync.Report{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Excluded:   3,
		Results: []featuresync.DocumentResult{
			{Connection: "layer", Path: "b.md", Status: featuresync.StatusCreated, ObjectID: 41, Location: &geo.Location{X: -117.195, Y: 34.057}, Source: "geocoded"},
			{Connection: "layer", Path: "a.md", Status: featuresync.StatusSkipped, Source: "cache", Reason: "malformed geoXYCached"},
			{Connection: "layer", Path: "c.md", Status: featuresync.StatusFailed, Error: "add rejected"},
		},
		ConfigErrors: []featuresync.ConfigError{
			{Index: 1, Connection: "bad", Message: "dial failed"},
		},
	}
}

func TestRecordAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	started := time.UnixMilli(1_700_000_000_000)
	if err := db.Record(ctx, sampleReport("run1", started)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	run, err := db.Get(ctx, "run1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
	}
	if got := run.FinishedAt.Sub(run.StartedAt); got != 1500*time.Millisecond {
		t.Errorf("duration = %v", got)
	}
	want := featuresync.Counts{Created: 1, Skipped: 1, Failed: 1}
	if run.Counts != want {
		t.Errorf("Counts = %+v, want %+v", run.Counts, want)
	}
	if run.Excluded != 3 {
		t.Errorf("Excluded = %d, want 3", run.Excluded)
	}
	if len(run.ConfigErrors) != 1 || run.ConfigErrors[0].Message != "dial failed" || run.ConfigErrors[0].Index != 1 {
		t.Errorf("ConfigErrors = %+v", run.ConfigErrors)
	}
}

func TestResultsKeepRecordedOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.Record(ctx, sampleReport("run1", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	results, err := db.Results(ctx, "run1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Path != "b.md" || results[1].Path != "a.md" || results[2].Path != "c.md" {
		t.Errorf("order = %s, %s, %s", results[0].Path, results[1].Path, results[2].Path)
	}

	created := results[0]
	if created.ObjectID != 41 || created.Location == nil || created.Location.X != -117.195 {
		t.Errorf("created result = %+v", created)
	}
	if results[1].Location != nil || results[1].ObjectID != 0 {
		t.Errorf("skipped result should carry no location or id: %+v", results[1])
	}
	if results[1].Reason != "malformed geoXYCached" {
		t.Errorf("Reason = %q", results[1].Reason)
	}
	if results[2].Status != featuresync.StatusFailed || results[2].Error != "add rejected" {
		t.Errorf("failed result = %+v", results[2])
	}
}

func TestRecentNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := db.Record(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	runs, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Fatalf("Recent = %+v", runs)
	}
}

func TestGetUnknownRun(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	_, err := db.Get(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRecordDuplicateRunFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.Record(ctx, sampleReport("dup", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := db.Record(ctx, sampleReport("dup", time.Now())); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}
	results, err := db.Results(ctx, "dup")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("rolled-back insert left %d results, want 3", len(results))
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTestDB(t)

	base := time.UnixMilli(1_700_000_000_000)
	for i, id := range []string{"r1", "r2", "r3"} {
		if err := db.Record(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	n, err := db.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
	if results, _ := db.Results(ctx, "r1"); len(results) != 0 {
		t.Errorf("r1 results survived prune: %d", len(results))
	}
	if _, err := db.Get(ctx, "r3"); err != nil {
		t.Errorf("newest run pruned: %v", err)
	}
}

func TestOpenCreatesStateDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(Path(dir)); err != nil {
		t.Fatalf("history db not created: %v", err)
	}
}
