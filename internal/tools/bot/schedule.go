package bot

import (
	"context"
	"fmt"
	"strings"

	"companionbot/internal/scheduler"
	"companionbot/internal/session"
	"companionbot/internal/tools"
)

// ScheduleJobTool returns a tool that schedules a reminder or recurring
// message: a one-shot "at" time, a repeating "every" interval, or a "cron"
// schedule. Every job fired by this tool synthesizes a chat turn rather
// than an internal system event (spec.md's daily-briefing/heartbeat events
// are scheduled by the companion itself at startup, not by the model).
func ScheduleJobTool() *tools.Tool {
	return &tools.Tool{
		Name:        "schedule_job",
		Description: "Schedule a one-time, repeating, or cron-style reminder message",
		Category:    tools.CategoryAgent,
		Priority:    55,
		Execute:     executeScheduleJob,
		Schema: tools.ToolSchema{
			Required: []string{"kind", "message"},
			Properties: map[string]tools.Property{
				"kind": {
					Type:        "string",
					Description: "Schedule family",
					Enum:        []any{"at", "every", "cron"},
				},
				"message": {
					Type:        "string",
					Description: "The message to post back into this chat when the job fires",
				},
				"name": {
					Type:        "string",
					Description: "A short label for the job",
				},
				"at_ms": {
					Type:        "integer",
					Description: `kind="at": fire once at this Unix time in milliseconds`,
				},
				"interval_ms": {
					Type:        "integer",
					Description: `kind="every": fire repeatedly at this interval in milliseconds`,
				},
				"minute":       {Type: "string", Description: `kind="cron": minute field, e.g. "0" or "*/15"`},
				"hour":         {Type: "string", Description: `kind="cron": hour field, e.g. "9" or "*"`},
				"day_of_month": {Type: "string", Description: `kind="cron": day-of-month field`},
				"month":        {Type: "string", Description: `kind="cron": month field`},
				"day_of_week":  {Type: "string", Description: `kind="cron": day-of-week field`},
				"timezone": {
					Type:        "string",
					Description: `IANA timezone name for cron fields, e.g. "America/New_York" (default UTC)`,
				},
				"max_runs": {
					Type:        "integer",
					Description: "Stop after this many firings (unset means unlimited for every/cron)",
				},
			},
		},
	}
}

func executeScheduleJob(ctx context.Context, args map[string]any) (string, error) {
	message, _ := args["message"].(string)
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("message is required")
	}
	kindStr, _ := args["kind"].(string)

	_, _, _, sch := deps()
	if sch == nil {
		return "", fmt.Errorf("schedule_job is not configured (no scheduler)")
	}

	chatID, ok := session.ChatIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("schedule_job: no chat context available")
	}

	job, err := buildJob(chatID, kindStr, message, args)
	if err != nil {
		return "", err
	}

	added, err := sch.Add(job)
	if err != nil {
		return "", fmt.Errorf("schedule job: %w", err)
	}
	return fmt.Sprintf("Scheduled job %s, next run %s.", added.ID, formatNextRun(added)), nil
}

func buildJob(chatID int64, kindStr, message string, args map[string]any) (*scheduler.Job, error) {
	name, _ := args["name"].(string)
	timezone, _ := args["timezone"].(string)

	job := &scheduler.Job{
		ChatID:   chatID,
		Name:     name,
		Enabled:  true,
		Timezone: timezone,
		Payload:  scheduler.Payload{Kind: scheduler.PayloadAgentTurn, Message: message},
	}

	if maxRuns, ok := args["max_runs"].(int); ok && maxRuns > 0 {
		job.MaxRuns = &maxRuns
	}

	switch kindStr {
	case string(scheduler.KindAt):
		atMs, ok := args["at_ms"].(int)
		if !ok || atMs <= 0 {
			return nil, fmt.Errorf(`kind="at" requires a positive at_ms`)
		}
		job.Kind = scheduler.KindAt
		job.Schedule = scheduler.Schedule{AtMs: int64(atMs)}
	case string(scheduler.KindEvery):
		intervalMs, ok := args["interval_ms"].(int)
		if !ok || intervalMs <= 0 {
			return nil, fmt.Errorf(`kind="every" requires a positive interval_ms`)
		}
		job.Kind = scheduler.KindEvery
		job.Schedule = scheduler.Schedule{IntervalMs: int64(intervalMs)}
	case string(scheduler.KindCron):
		job.Kind = scheduler.KindCron
		job.Schedule = scheduler.Schedule{
			Minute:     cronFieldOrStar(args, "minute"),
			Hour:       cronFieldOrStar(args, "hour"),
			DayOfMonth: cronFieldOrStar(args, "day_of_month"),
			Month:      cronFieldOrStar(args, "month"),
			DayOfWeek:  cronFieldOrStar(args, "day_of_week"),
		}
	default:
		return nil, fmt.Errorf(`kind must be "at", "every", or "cron", got %q`, kindStr)
	}

	return job, nil
}

func cronFieldOrStar(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return "*"
}

func formatNextRun(job *scheduler.Job) string {
	if job.NextRun == nil {
		return "never (job is spent)"
	}
	return job.NextRun.Format("2006-01-02 15:04 MST")
}

// CancelJobTool returns a tool that cancels a scheduled job.
func CancelJobTool() *tools.Tool {
	return &tools.Tool{
		Name:        "cancel_job",
		Description: "Cancel a scheduled job by id",
		Category:    tools.CategoryAgent,
		Priority:    55,
		Execute:     executeCancelJob,
		Schema: tools.ToolSchema{
			Required: []string{"job_id"},
			Properties: map[string]tools.Property{
				"job_id": {
					Type:        "string",
					Description: "The id returned by schedule_job",
				},
			},
		},
	}
}

func executeCancelJob(ctx context.Context, args map[string]any) (string, error) {
	id, _ := args["job_id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("job_id is required")
	}

	_, _, _, sch := deps()
	if sch == nil {
		return "", fmt.Errorf("cancel_job is not configured (no scheduler)")
	}

	if err := requireOwnedJob(ctx, sch, id); err != nil {
		return "", err
	}

	if err := sch.Remove(id); err != nil {
		return "", fmt.Errorf("cancel job: %w", err)
	}
	return fmt.Sprintf("Cancelled job %s.", id), nil
}

// ListJobsTool returns a tool that lists scheduled jobs for the current
// chat.
func ListJobsTool() *tools.Tool {
	return &tools.Tool{
		Name:        "list_jobs",
		Description: "List scheduled jobs for this chat",
		Category:    tools.CategoryAgent,
		Priority:    55,
		Execute:     executeListJobs,
		Schema:      tools.ToolSchema{},
	}
}

func executeListJobs(ctx context.Context, _ map[string]any) (string, error) {
	_, _, _, sch := deps()
	if sch == nil {
		return "", fmt.Errorf("list_jobs is not configured (no scheduler)")
	}

	chatID, ok := session.ChatIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("list_jobs: no chat context available")
	}

	jobs := sch.ListForChat(chatID)
	if len(jobs) == 0 {
		return "No scheduled jobs for this chat.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d scheduled job(s):\n\n", len(jobs))
	for _, j := range jobs {
		state := "enabled"
		if !j.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "- %s (%s, %s): %q, next run %s\n", j.ID, j.Kind, state, j.Payload.Message, formatNextRun(j))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// requireOwnedJob rejects cancelling a job that belongs to a different
// chat than the one currently in context, so one chat can't tear down
// another's reminders.
func requireOwnedJob(ctx context.Context, sch *scheduler.Scheduler, id string) error {
	chatID, ok := session.ChatIDFromContext(ctx)
	if !ok {
		return fmt.Errorf("no chat context available")
	}
	job, ok := sch.Get(id)
	if !ok {
		return fmt.Errorf("no such job: %s", id)
	}
	if job.ChatID != chatID {
		return fmt.Errorf("no such job: %s", id)
	}
	return nil
}
