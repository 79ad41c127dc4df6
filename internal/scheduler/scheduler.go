package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"companionbot/internal/config"
	"companionbot/internal/logging"
)

// Dispatcher fires a job's payload. Implementations post a system event or
// a synthesized chat turn; errors are logged but never block the tick.
type Dispatcher func(ctx context.Context, job *Job) error

// Scheduler ticks once a minute, fires every enabled job whose NextRun has
// arrived onto a bounded worker pool, and persists the whole job list
// after every mutation.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*Job

	store      *Store
	dispatch   Dispatcher
	cfg        config.SchedulerConfig
	workerSem  chan struct{}
}

// New builds a Scheduler around a Store and loads its persisted jobs,
// recomputing each one's NextRun as required by the at-least-once catch-up
// contract (missed cron/every ticks collapse to a single fire on restart;
// past-due "at" jobs are dropped, not retro-fired).
func New(cfg config.SchedulerConfig, store *Store, dispatch Dispatcher) (*Scheduler, error) {
	s := &Scheduler{
		jobs:      make(map[string]*Job),
		store:     store,
		dispatch:  dispatch,
		cfg:       cfg,
		workerSem: make(chan struct{}, cfg.WorkerCount),
	}

	jobs, err := store.Load()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, j := range jobs {
		recomputeOnLoad(j, now)
		s.jobs[j.ID] = j
	}
	if len(jobs) > 0 {
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add registers a new job, computing its initial NextRun, and persists it.
func (s *Scheduler) Add(job *Job) (*Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := computeInitialNextRun(job, time.Now()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	logging.Scheduler("added job %s (%s) for chat %d, next run %v", job.ID, job.Kind, job.ChatID, job.NextRun)
	return job, nil
}

// Remove deletes a job and persists the change.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("scheduler: job not found: %s", id)
	}
	delete(s.jobs, id)
	return s.persistLocked()
}

// Update replaces a job's mutable fields (enabled state, schedule, payload)
// and recomputes NextRun, persisting the result.
func (s *Scheduler) Update(id string, mutate func(*Job)) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("scheduler: job not found: %s", id)
	}
	mutate(job)
	if err := computeInitialNextRun(job, time.Now()); err != nil {
		return nil, err
	}
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns a job by id.
func (s *Scheduler) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

// ListForChat returns all jobs belonging to chatID.
func (s *Scheduler) ListForChat(chatID int64) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0)
	for _, j := range s.jobs {
		if j.ChatID == chatID {
			out = append(out, j)
		}
	}
	return out
}

// Run blocks, ticking once a minute (per cfg.TickInterval) until ctx is
// done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every enabled, due job onto the bounded worker pool, then
// marks it executed.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	var due []*Job
	for _, j := range s.jobs {
		if j.Enabled && j.NextRun != nil && !j.NextRun.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, job := range due {
		wg.Add(1)
		s.workerSem <- struct{}{}
		go func(j *Job) {
			defer wg.Done()
			defer func() { <-s.workerSem }()
			s.fire(ctx, j)
		}(job)
	}
	wg.Wait()
}

// fire dispatches a single job's payload and then marks it executed,
// regardless of dispatch outcome: a failed dispatch still advances the
// schedule rather than firing repeatedly.
func (s *Scheduler) fire(ctx context.Context, job *Job) {
	logging.SchedulerDebug("firing job %s (%s) for chat %d", job.ID, job.Kind, job.ChatID)
	if err := s.dispatch(ctx, job); err != nil {
		logging.SchedulerError("job %s dispatch failed: %v", job.ID, err)
	}
	s.markExecuted(job.ID)
}

// markExecuted increments RunCount, sets LastRun, recomputes NextRun
// (disabling the job if it has reached MaxRuns or is a spent "at" job),
// and persists the result.
func (s *Scheduler) markExecuted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}

	now := time.Now()
	job.LastRun = &now
	job.RunCount++

	switch job.Kind {
	case KindAt:
		job.Enabled = false
		job.NextRun = nil
	case KindEvery:
		job.NextRun = nextEveryRun(job, now)
	case KindCron:
		job.NextRun = nextJobCronRun(job, now)
	}

	if job.exhausted() {
		job.Enabled = false
	}

	if err := s.persistLocked(); err != nil {
		logging.SchedulerError("persist after firing job %s: %v", id, err)
	}
}

func (s *Scheduler) persistLocked() error {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	return s.store.Save(jobs)
}
