// Package scheduler implements the companion's time-based job scheduler:
// one-shot, interval, and cron-style jobs persisted to a single versioned
// JSON file and fired from a one-minute ticker onto a bounded worker pool.
//
// It is grounded on the teacher's internal/session.Spawner for the
// cap-and-dispatch shape (a coarse mutex guarding a map, bounded
// concurrency, fire-and-forget execution reporting back to the origin),
// generalized from "spawn an LLM subagent" to "fire a job's payload."
package scheduler

import "time"

// Kind is the schedule family a Job belongs to.
type Kind string

const (
	KindAt    Kind = "at"
	KindEvery Kind = "every"
	KindCron  Kind = "cron"
)

// Schedule is the kind-specific schedule descriptor. Only the fields
// relevant to the Job's Kind are populated.
type Schedule struct {
	// At
	AtMs int64 `json:"at_ms,omitempty"`

	// Every
	IntervalMs int64  `json:"interval_ms,omitempty"`
	StartMs    *int64 `json:"start_ms,omitempty"`

	// Cron: five POSIX fields, named aliases and *, a,b,c, a-b, */n, a-b/n
	// all resolved at parse time.
	Minute     string `json:"minute,omitempty"`
	Hour       string `json:"hour,omitempty"`
	DayOfMonth string `json:"day_of_month,omitempty"`
	Month      string `json:"month,omitempty"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
}

// PayloadKind distinguishes an internal system event from a synthesized
// chat turn.
type PayloadKind string

const (
	PayloadSystemEvent PayloadKind = "system_event"
	PayloadAgentTurn   PayloadKind = "agent_turn"
)

// SystemEvent names the internal events a system_event payload can carry.
type SystemEvent string

const (
	EventDailyBriefing SystemEvent = "daily_briefing"
	EventHeartbeat     SystemEvent = "heartbeat"
	EventReminder      SystemEvent = "reminder"
)

// Payload describes what firing the job actually does.
type Payload struct {
	Kind PayloadKind `json:"kind"`

	// Event is set when Kind == PayloadSystemEvent.
	Event SystemEvent `json:"event,omitempty"`

	// Message is the synthesized user message posted into the chat's LLM
	// pipeline when Kind == PayloadAgentTurn.
	Message string `json:"message,omitempty"`
}

// Job is a single scheduled task.
type Job struct {
	ID       string   `json:"id"`
	ChatID   int64    `json:"chat_id"`
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Schedule Schedule `json:"schedule"`
	Payload  Payload  `json:"payload"`
	Enabled  bool     `json:"enabled"`
	Timezone string   `json:"timezone"`

	CreatedAt time.Time  `json:"created_at"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	RunCount  int        `json:"run_count"`
	MaxRuns   *int       `json:"max_runs,omitempty"`
}

// location resolves the job's timezone, falling back to UTC for an empty
// or unparseable zone name.
func (j *Job) location() *time.Location {
	if j.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// exhausted reports whether the job has reached its run-count cap.
func (j *Job) exhausted() bool {
	return j.MaxRuns != nil && j.RunCount >= *j.MaxRuns
}
