package runstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"flexone/internal/runstore"
)

func openTestStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.Begin(ctx, runstore.ProcessBackend, 4321)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run id")
	}
	if run.Status != runstore.StatusLaunched {
		t.Fatalf("unexpected status: %q", run.Status)
	}
	if run.PID != 4321 {
		t.Fatalf("unexpected pid: %d", run.PID)
	}
	if !run.Active() {
		t.Fatal("expected launched run to be active")
	}

	if err := store.MarkReady(ctx, run.ID); err != nil {
		t.Fatalf("MarkReady returned error: %v", err)
	}
	ready, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if ready.Status != runstore.StatusReady {
		t.Fatalf("unexpected status: %q", ready.Status)
	}
	if ready.ReadyAt == nil {
		t.Fatal("expected ready timestamp")
	}

	if err := store.MarkStopped(ctx, run.ID, "stopped via CLI"); err != nil {
		t.Fatalf("MarkStopped returned error: %v", err)
	}
	stopped, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if stopped.Status != runstore.StatusStopped {
		t.Fatalf("unexpected status: %q", stopped.Status)
	}
	if stopped.Detail != "stopped via CLI" {
		t.Fatalf("unexpected detail: %q", stopped.Detail)
	}
	if stopped.StoppedAt == nil {
		t.Fatal("expected stopped timestamp")
	}
	if stopped.Active() {
		t.Fatal("expected stopped run to be inactive")
	}
}

func TestActiveRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if run, err := store.ActiveRun(ctx, runstore.ProcessBackend); err != nil || run != nil {
		t.Fatalf("expected no active run, got %v err=%v", run, err)
	}

	first, err := store.Begin(ctx, runstore.ProcessBackend, 100)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if err := store.MarkFailed(ctx, first.ID, "never became ready"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}

	second, err := store.Begin(ctx, runstore.ProcessBackend, 200)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	active, err := store.ActiveRun(ctx, runstore.ProcessBackend)
	if err != nil {
		t.Fatalf("ActiveRun returned error: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Fatalf("expected active run %q, got %+v", second.ID, active)
	}
}

func TestCloseStale(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.Begin(ctx, runstore.ProcessBackend, 300)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	affected, err := store.CloseStale(ctx, runstore.ProcessBackend, "superseded at startup")
	if err != nil {
		t.Fatalf("CloseStale returned error: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 stale run closed, got %d", affected)
	}

	closed, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if closed.Status != runstore.StatusStopped {
		t.Fatalf("unexpected status: %q", closed.Status)
	}
	if closed.Detail != "superseded at startup" {
		t.Fatalf("unexpected detail: %q", closed.Detail)
	}
}

func TestRecentAndStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run, err := store.Begin(ctx, runstore.ProcessBackend, 1000+i)
		if err != nil {
			t.Fatalf("Begin returned error: %v", err)
		}
		if i < 2 {
			if err := store.MarkStopped(ctx, run.ID, ""); err != nil {
				t.Fatalf("MarkStopped returned error: %v", err)
			}
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats[runstore.StatusStopped] != 2 {
		t.Fatalf("expected 2 stopped runs, got %d", stats[runstore.StatusStopped])
	}
	if stats[runstore.StatusLaunched] != 1 {
		t.Fatalf("expected 1 launched run, got %d", stats[runstore.StatusLaunched])
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")

	store, err := runstore.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	run, err := store.Begin(context.Background(), runstore.ProcessBackend, 1)
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	reopened, err := runstore.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected run to survive reopen")
	}
}
