package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/geminirun/internal/runner"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sums := []runner.Summary{
		{ID: "a", Mode: runner.ModeText, Model: "gemini-2.5-pro", State: runner.StateCompleted, Records: 5, StartedAt: base, Duration: 1500 * time.Millisecond},
		{ID: "b", Mode: runner.ModeJSON, State: runner.StateFailed, ExitCode: 2, StartedAt: base.Add(time.Minute), Err: errors.New("boom")},
		{ID: "c", Mode: runner.ModeStream, SessionID: "s1", State: runner.StateCompleted, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, sum := range sums {
		if err := s.Record(ctx, sum); err != nil {
			t.Fatalf("record %s: %v", sum.ID, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("recent order = %+v", got)
	}
	if got[1].State != "FAILED" || got[1].ExitCode != 2 || got[1].Error != "boom" {
		t.Errorf("failed entry = %+v", got[1])
	}
}

func TestStore_Get(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	started := time.UnixMilli(time.Now().UnixMilli())

	sum := runner.Summary{ID: "x1", Mode: runner.ModePlain, State: runner.StateCompleted, StartedAt: started, Duration: 2 * time.Second, Transcript: "/tmp/runs/x1"}
	if err := s.Record(ctx, sum); err != nil {
		t.Fatal(err)
	}
	e, err := s.Get(ctx, "x1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Mode != "plain" || !e.StartedAt.Equal(started) || e.Duration != 2*time.Second || e.Transcript != "/tmp/runs/x1" {
		t.Errorf("entry = %+v", e)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get missing = %v, want ErrNotFound", err)
	}
}

func TestStore_RecordReplaces(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	sum := runner.Summary{ID: "r", Mode: runner.ModeText, State: runner.StateFailed}
	_ = s.Record(ctx, sum)
	sum.State = runner.StateCompleted
	if err := s.Record(ctx, sum); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Recent(ctx, 10)
	if len(got) != 1 || got[0].State != "COMPLETED" {
		t.Errorf("entries = %+v", got)
	}
}
