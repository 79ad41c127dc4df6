package companion

import (
	"context"
	"fmt"
	"time"

	"companionbot/internal/logging"
	"companionbot/internal/scheduler"
)

// heartbeatIdleThreshold is how long a chat must have gone quiet before a
// fired heartbeat job actually produces a proactive check-in turn. A
// heartbeat firing inside this window after a real message is a no-op:
// the user is already in conversation, nothing to chase.
const heartbeatIdleThreshold = 6 * time.Hour

const dailyBriefingSystemJobName = "daily-briefing"
const heartbeatSystemJobName = "heartbeat"

// Dispatch satisfies scheduler.Dispatcher: it turns a fired job's payload
// into a turn on this Handler. A synthesized agent_turn job runs exactly
// like an inbound text message; a system_event job is translated into a
// synthesized prompt first.
func (h *Handler) Dispatch(ctx context.Context, job *scheduler.Job) error {
	logging.SchedulerDebug("dispatching job %s (chat %d, kind %s)", job.ID, job.ChatID, job.Payload.Kind)

	switch job.Payload.Kind {
	case scheduler.PayloadAgentTurn:
		_, err := h.HandleText(ctx, job.ChatID, job.Payload.Message, nil)
		return err

	case scheduler.PayloadSystemEvent:
		return h.dispatchSystemEvent(ctx, job)

	default:
		return fmt.Errorf("companion: unknown job payload kind %q", job.Payload.Kind)
	}
}

func (h *Handler) dispatchSystemEvent(ctx context.Context, job *scheduler.Job) error {
	switch job.Payload.Event {
	case scheduler.EventHeartbeat:
		if h.idleSince(job.ChatID) < heartbeatIdleThreshold {
			logging.SchedulerDebug("skipping heartbeat for chat %d, still active", job.ChatID)
			return nil
		}
		_, err := h.HandleText(ctx, job.ChatID, "(heartbeat) It's been a while since we last talked. Check in with the user however feels natural, or stay quiet if there's truly nothing worth saying.", nil)
		return err

	case scheduler.EventDailyBriefing:
		_, err := h.HandleText(ctx, job.ChatID, "(daily briefing) Give the user a short daily briefing: anything pending from recent memory, reminders due today, and a friendly opener.", nil)
		return err

	case scheduler.EventReminder:
		_, err := h.HandleText(ctx, job.ChatID, job.Payload.Message, nil)
		return err

	default:
		return fmt.Errorf("companion: unknown system event %q", job.Payload.Event)
	}
}

// EnsureSystemJobs idempotently registers chatID's daily-briefing and
// heartbeat jobs with the scheduler. These two system-event jobs are
// scheduled by the companion itself as soon as a chat is known, not by the
// model through a tool call, so they survive even if the model never
// thinks to ask for them. A nil scheduler (no tick loop running, e.g. a
// one-shot CLI invocation) makes this a no-op.
func (h *Handler) EnsureSystemJobs(chatID int64) error {
	if h.sched == nil {
		return nil
	}

	existing := h.sched.ListForChat(chatID)
	hasDaily, hasHeartbeat := false, false
	for _, j := range existing {
		switch j.Name {
		case dailyBriefingSystemJobName:
			hasDaily = true
		case heartbeatSystemJobName:
			hasHeartbeat = true
		}
	}

	if !hasDaily {
		if _, err := h.sched.Add(&scheduler.Job{
			ChatID:  chatID,
			Name:    dailyBriefingSystemJobName,
			Kind:    scheduler.KindCron,
			Enabled: true,
			Schedule: scheduler.Schedule{
				Minute: "0", Hour: "8", DayOfMonth: "*", Month: "*", DayOfWeek: "*",
			},
			Payload: scheduler.Payload{Kind: scheduler.PayloadSystemEvent, Event: scheduler.EventDailyBriefing},
		}); err != nil {
			return fmt.Errorf("companion: schedule daily briefing for chat %d: %w", chatID, err)
		}
	}

	if !hasHeartbeat {
		if _, err := h.sched.Add(&scheduler.Job{
			ChatID:  chatID,
			Name:    heartbeatSystemJobName,
			Kind:    scheduler.KindEvery,
			Enabled: true,
			Schedule: scheduler.Schedule{
				IntervalMs: heartbeatIdleThreshold.Milliseconds(),
			},
			Payload: scheduler.Payload{Kind: scheduler.PayloadSystemEvent, Event: scheduler.EventHeartbeat},
		}); err != nil {
			return fmt.Errorf("companion: schedule heartbeat for chat %d: %w", chatID, err)
		}
	}

	return nil
}
