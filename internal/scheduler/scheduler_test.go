package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"companionbot/internal/config"
)

func newTestScheduler(t *testing.T, dispatch Dispatcher) *Scheduler {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "jobs.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := config.DefaultSchedulerConfig()
	sched, err := New(cfg, store, dispatch)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sched
}

func TestAdd_AtJob_SetsExactNextRun(t *testing.T) {
	sched := newTestScheduler(t, func(ctx context.Context, j *Job) error { return nil })
	atMs := time.Now().Add(time.Hour).UnixMilli()
	job, err := sched.Add(&Job{ChatID: 1, Kind: KindAt, Enabled: true, Schedule: Schedule{AtMs: atMs}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if job.NextRun == nil || job.NextRun.UnixMilli() != atMs {
		t.Errorf("NextRun=%v, want %d", job.NextRun, atMs)
	}
}

func TestAdd_EveryJob_AnchorsStartOnce(t *testing.T) {
	sched := newTestScheduler(t, func(ctx context.Context, j *Job) error { return nil })
	job, err := sched.Add(&Job{ChatID: 1, Kind: KindEvery, Enabled: true, Schedule: Schedule{IntervalMs: int64(time.Minute / time.Millisecond)}})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if job.Schedule.StartMs == nil {
		t.Fatal("expected StartMs to be anchored")
	}
	if job.NextRun == nil {
		t.Fatal("expected NextRun to be set")
	}
}

func TestTick_FiresDueJobAndAdvancesNextRun(t *testing.T) {
	var fired sync.WaitGroup
	fired.Add(1)
	var firedJobID string
	var mu sync.Mutex

	sched := newTestScheduler(t, func(ctx context.Context, j *Job) error {
		mu.Lock()
		firedJobID = j.ID
		mu.Unlock()
		fired.Done()
		return nil
	})

	past := time.Now().Add(-time.Minute)
	job := &Job{ID: "job-1", ChatID: 1, Kind: KindEvery, Enabled: true, Schedule: Schedule{IntervalMs: int64(time.Minute / time.Millisecond), StartMs: msPtr(past.UnixMilli())}}
	job.NextRun = &past
	sched.mu.Lock()
	sched.jobs[job.ID] = job
	sched.mu.Unlock()

	sched.tick(context.Background())
	fired.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firedJobID != "job-1" {
		t.Errorf("firedJobID=%q, want job-1", firedJobID)
	}

	got, _ := sched.Get("job-1")
	if got.RunCount != 1 {
		t.Errorf("RunCount=%d, want 1", got.RunCount)
	}
	if got.NextRun == nil || !got.NextRun.After(past) {
		t.Errorf("expected NextRun to advance past %v, got %v", past, got.NextRun)
	}
}

func TestMarkExecuted_AtJobDisablesAfterFiring(t *testing.T) {
	sched := newTestScheduler(t, func(ctx context.Context, j *Job) error { return nil })
	job := &Job{ID: "at-1", ChatID: 1, Kind: KindAt, Enabled: true}
	sched.mu.Lock()
	sched.jobs[job.ID] = job
	sched.mu.Unlock()

	sched.markExecuted("at-1")

	got, _ := sched.Get("at-1")
	if got.Enabled {
		t.Error("expected an 'at' job to disable itself after firing")
	}
	if got.NextRun != nil {
		t.Error("expected NextRun to be cleared for a spent 'at' job")
	}
}

func TestMarkExecuted_DisablesOnceMaxRunsReached(t *testing.T) {
	sched := newTestScheduler(t, func(ctx context.Context, j *Job) error { return nil })
	maxRuns := 2
	job := &Job{
		ID: "cron-1", ChatID: 1, Kind: KindCron, Enabled: true, MaxRuns: &maxRuns,
		Schedule: Schedule{Minute: "*", Hour: "*", DayOfMonth: "*", Month: "*", DayOfWeek: "*"},
	}
	sched.mu.Lock()
	sched.jobs[job.ID] = job
	sched.mu.Unlock()

	sched.markExecuted("cron-1")
	sched.markExecuted("cron-1")

	got, _ := sched.Get("cron-1")
	if got.RunCount != 2 {
		t.Errorf("RunCount=%d, want 2", got.RunCount)
	}
	if got.Enabled {
		t.Error("expected job to auto-disable once runCount reached maxRuns")
	}
}

func TestRecomputeOnLoad_PastAtJobIsDroppedNotRefired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	job := &Job{ID: "at-1", Kind: KindAt, Enabled: true, Schedule: Schedule{AtMs: past.UnixMilli()}, NextRun: &past}
	recomputeOnLoad(job, time.Now())

	if job.Enabled {
		t.Error("expected a past-due 'at' job to be disabled on load, not re-fired")
	}
	if job.NextRun != nil {
		t.Error("expected NextRun to be cleared")
	}
}

func TestRecomputeOnLoad_MissedCronTicksCollapseToOneFutureRun(t *testing.T) {
	longPast := time.Now().Add(-72 * time.Hour)
	job := &Job{
		ID: "cron-1", Kind: KindCron, Enabled: true,
		Schedule: Schedule{Minute: "0", Hour: "0", DayOfMonth: "*", Month: "*", DayOfWeek: "*"},
		NextRun:  &longPast,
	}
	recomputeOnLoad(job, time.Now())

	if job.NextRun == nil || job.NextRun.Before(time.Now()) {
		t.Errorf("expected a single future NextRun after catch-up, got %v", job.NextRun)
	}
}

func TestPersistence_SurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := config.DefaultSchedulerConfig()

	sched, err := New(cfg, store, func(ctx context.Context, j *Job) error { return nil })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := sched.Add(&Job{ChatID: 7, Kind: KindAt, Enabled: true, Schedule: Schedule{AtMs: time.Now().Add(time.Hour).UnixMilli()}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	store2, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore (reload): %v", err)
	}
	reloaded, err := New(cfg, store2, func(ctx context.Context, j *Job) error { return nil })
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	if len(reloaded.ListForChat(7)) != 1 {
		t.Errorf("expected 1 job for chat 7 after reload, got %d", len(reloaded.ListForChat(7)))
	}
}

func msPtr(ms int64) *int64 { return &ms }
