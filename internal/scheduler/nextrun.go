package scheduler

import (
	"fmt"
	"time"
)

// computeInitialNextRun sets job.NextRun when a job is first added or its
// schedule is edited.
func computeInitialNextRun(job *Job, now time.Time) error {
	switch job.Kind {
	case KindAt:
		t := time.UnixMilli(job.Schedule.AtMs)
		job.NextRun = &t
		return nil
	case KindEvery:
		if job.Schedule.StartMs == nil {
			start := now.UnixMilli()
			job.Schedule.StartMs = &start
		}
		job.NextRun = nextEveryRun(job, now)
		return nil
	case KindCron:
		spec, err := parseCron(job.Schedule.Minute, job.Schedule.Hour, job.Schedule.DayOfMonth, job.Schedule.Month, job.Schedule.DayOfWeek)
		if err != nil {
			return fmt.Errorf("scheduler: invalid cron job %s: %w", job.ID, err)
		}
		t, ok := nextCronRun(spec, now, job.location())
		if !ok {
			return fmt.Errorf("scheduler: cron expression for job %s never matches within two years", job.ID)
		}
		job.NextRun = &t
		return nil
	default:
		return fmt.Errorf("scheduler: unknown job kind %q", job.Kind)
	}
}

// nextEveryRun implements nextRun = startMs + (floor((now-startMs)/interval)+1)*interval.
func nextEveryRun(job *Job, now time.Time) *time.Time {
	startMs := now.UnixMilli()
	if job.Schedule.StartMs != nil {
		startMs = *job.Schedule.StartMs
	}
	interval := job.Schedule.IntervalMs
	if interval <= 0 {
		interval = 1
	}

	elapsed := now.UnixMilli() - startMs
	var n int64
	if elapsed >= 0 {
		n = elapsed/interval + 1
	} else {
		n = 0 // start is still in the future; first run is at start itself
	}
	next := time.UnixMilli(startMs + n*interval)
	return &next
}

// nextJobCronRun recomputes a cron job's NextRun after it fires, walking
// forward from "now" (per the collapsed at-least-once contract: a job that
// missed many ticks while the process was down fires once, then resumes
// from the next real match after now).
func nextJobCronRun(job *Job, now time.Time) *time.Time {
	spec, err := parseCron(job.Schedule.Minute, job.Schedule.Hour, job.Schedule.DayOfMonth, job.Schedule.Month, job.Schedule.DayOfWeek)
	if err != nil {
		return nil
	}
	t, ok := nextCronRun(spec, now, job.location())
	if !ok {
		return nil
	}
	return &t
}

// recomputeOnLoad applies the at-least-once catch-up contract on startup:
// a cron or every job whose NextRun already passed fires once conceptually
// (its NextRun is recomputed from "now", collapsing any number of missed
// ticks into a single future run) rather than being backfired once per
// missed tick. An "at" job whose time has already passed is dropped
// (disabled, not fired) rather than retro-fired.
func recomputeOnLoad(job *Job, now time.Time) {
	if !job.Enabled {
		return
	}

	switch job.Kind {
	case KindAt:
		if job.NextRun != nil && !job.NextRun.After(now) {
			job.Enabled = false
			job.NextRun = nil
		}
	case KindEvery:
		job.NextRun = nextEveryRun(job, now)
	case KindCron:
		job.NextRun = nextJobCronRun(job, now)
	}
}
