package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"companionbot/internal/config"
	"companionbot/internal/llm"
	"companionbot/internal/logging"
	"companionbot/internal/session"
)

// ResultNotifier delivers a background agent's outcome back to the chat it
// was spawned from.
type ResultNotifier func(chatID int64, agentID, result string, err error)

// Manager spawns and tracks background sub-agents: fire-and-forget LLM
// calls run outside the main conversation turn, capped per-chat and
// globally, with cooperative cancellation and periodic sweeping.
type Manager struct {
	mu     sync.Mutex
	agents map[string]*Agent

	cfg          config.AgentsConfig
	orchestrator *llm.Orchestrator
	notify       ResultNotifier
}

// NewManager builds a Manager. notify is called once per agent that
// completes or fails, with the agent's final result or error; an agent
// cancelled before it finishes is not reported through notify.
func NewManager(cfg config.AgentsConfig, orchestrator *llm.Orchestrator, notify ResultNotifier) *Manager {
	return &Manager{
		agents:       make(map[string]*Agent),
		cfg:          cfg,
		orchestrator: orchestrator,
		notify:       notify,
	}
}

// Spawn starts a new background agent for chatID running task, returning
// its id. It rejects with ErrTooManyAgents if chatID already has
// cfg.MaxPerChat agents running; otherwise, if the global concurrency cap
// is reached, the oldest agent is evicted (cancelled if still running)
// before this one is admitted.
func (m *Manager) Spawn(ctx context.Context, chatID int64, task string) (string, error) {
	m.mu.Lock()

	if m.countRunningForChat(chatID) >= m.cfg.MaxPerChat {
		m.mu.Unlock()
		return "", ErrTooManyAgents
	}

	if len(m.agents) >= m.cfg.MaxConcurrent {
		m.evictOldestLocked()
	}

	id := uuid.New().String()[:8]
	agentCtx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		ID:        id,
		ChatID:    chatID,
		Task:      task,
		status:    StatusRunning,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	m.agents[id] = a
	m.mu.Unlock()

	logging.Agents("spawning agent %s for chat %d: %s", id, chatID, truncate(task, 120))
	go m.run(agentCtx, a)

	return id, nil
}

// Cancel requests cancellation of a running agent. It is a no-op (returns
// nil) if the agent is already in a terminal state.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	a.requestCancel()
	logging.Agents("cancelled agent %s", id)
	return nil
}

// Get returns the agent for id, if tracked.
func (m *Manager) Get(id string) (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	return a, ok
}

// ListForChat returns all agents (running or finished, until swept) spawned
// from chatID.
func (m *Manager) ListForChat(chatID int64) []*Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Agent, 0)
	for _, a := range m.agents {
		if a.ChatID == chatID {
			out = append(out, a)
		}
	}
	return out
}

// Sweep force-cancels agents that have been running past RunningTTL and
// purges agents that completed (in any terminal state) past CompletedTTL
// ago. It is meant to be called periodically from a ticker.
func (m *Manager) Sweep() {
	now := time.Now()

	m.mu.Lock()
	var toCancel []*Agent
	var toPurge []string
	for id, a := range m.agents {
		a.mu.RLock()
		status := a.status
		startedAt := a.startedAt
		endedAt := a.endedAt
		a.mu.RUnlock()

		if status == StatusRunning && now.Sub(startedAt) > m.cfg.RunningTTL {
			toCancel = append(toCancel, a)
			continue
		}
		if status != StatusRunning && now.Sub(endedAt) > m.cfg.CompletedTTL {
			toPurge = append(toPurge, id)
		}
	}
	for _, id := range toPurge {
		delete(m.agents, id)
	}
	m.mu.Unlock()

	for _, a := range toCancel {
		logging.AgentsWarn("agent %s exceeded running TTL of %s, cancelling", a.ID, m.cfg.RunningTTL)
		a.requestCancel()
	}
	if len(toPurge) > 0 {
		logging.AgentsDebug("swept %d completed agents past their retention window", len(toPurge))
	}
}

// RunSweeper blocks, calling Sweep on cfg.SweepInterval, until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// run executes the agent's task as a single LLM turn and delivers the
// outcome to the originating chat.
func (m *Manager) run(ctx context.Context, a *Agent) {
	result, err := m.orchestrator.RunTurn(ctx, llm.TurnRequest{
		Tier:    "sonnet",
		System:  m.cfg.SystemPrompt,
		History: []session.Message{{Role: "user", Content: a.Task}},
	})

	if err != nil {
		if !a.finish("", err, StatusFailed) {
			return // already cancelled; do not race the cancellation path
		}
		logging.AgentsError("agent %s failed: %v", a.ID, err)
		m.notify(a.ChatID, a.ID, "", err)
		return
	}

	if !a.finish(result.Text, nil, StatusCompleted) {
		return
	}
	logging.Agents("agent %s completed", a.ID)
	m.notify(a.ChatID, a.ID, result.Text, nil)
}

func (m *Manager) countRunningForChat(chatID int64) int {
	count := 0
	for _, a := range m.agents {
		if a.ChatID == chatID && a.Status() == StatusRunning {
			count++
		}
	}
	return count
}

// evictOldestLocked removes the oldest tracked agent, cancelling it first
// if still running. Caller must hold m.mu.
func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldestStart time.Time
	for id, a := range m.agents {
		start := a.StartedAt()
		if oldestID == "" || start.Before(oldestStart) {
			oldestID = id
			oldestStart = start
		}
	}
	if oldestID == "" {
		return
	}
	victim := m.agents[oldestID]
	delete(m.agents, oldestID)
	if victim.Status() == StatusRunning {
		logging.AgentsWarn("global agent cap reached, evicting oldest agent %s", oldestID)
		victim.requestCancel()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("...(%d more chars)", len(s)-n)
}
