// Package companion implements the message-handler glue: the single
// per-chat turn loop that ties the session store, prompt assembler, LLM
// orchestration, workspace adapter, tool registry, and scheduler together.
// Every inbound text message, inbound photo, and scheduler-fired job for a
// chat funnels through a Handler.
package companion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/errkind"
	"companionbot/internal/llm"
	"companionbot/internal/logging"
	"companionbot/internal/prompt"
	"companionbot/internal/scheduler"
	"companionbot/internal/session"
	"companionbot/internal/store"
	"companionbot/internal/tools"
	"companionbot/internal/workspace"
)

// turnTimeout bounds a single turn's total wall-clock time, covering
// retries, streaming, and tool iteration.
const turnTimeout = 5 * time.Minute

// memoryResultsPerTurn caps how many hybrid-search hits are pulled into
// the system prompt's long-term-memory section.
const memoryResultsPerTurn = 5

// Handler drives one chat's worth of turns at a time. Per-chat locking
// keeps messages within one chat processing in arrival order while
// different chats proceed concurrently.
type Handler struct {
	sessions  *session.Store
	orch      *llm.Orchestrator
	assembler *prompt.Assembler
	ws        *workspace.Adapter
	registry  *tools.Registry
	memory    *store.LocalStore
	sched     *scheduler.Scheduler
	llmCfg    config.LLMConfig

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex

	activityMu   sync.Mutex
	lastActivity map[int64]time.Time
}

// New builds a Handler around its collaborators. The scheduler is wired in
// separately via SetScheduler once constructed, since the scheduler's own
// constructor needs the Handler's Dispatch method as its Dispatcher,
// creating an unavoidable ordering cycle between the two.
func New(sessions *session.Store, orch *llm.Orchestrator, assembler *prompt.Assembler, ws *workspace.Adapter, registry *tools.Registry, memory *store.LocalStore, llmCfg config.LLMConfig) *Handler {
	return &Handler{
		sessions:     sessions,
		orch:         orch,
		assembler:    assembler,
		ws:           ws,
		registry:     registry,
		memory:       memory,
		llmCfg:       llmCfg,
		locks:        make(map[int64]*sync.Mutex),
		lastActivity: make(map[int64]time.Time),
	}
}

// SetScheduler wires the scheduler in after both it and the Handler have
// been constructed. Without it, EnsureSystemJobs is a no-op and
// scheduler-fired jobs never reach this Handler.
func (h *Handler) SetScheduler(sched *scheduler.Scheduler) {
	h.sched = sched
}

func (h *Handler) lockFor(chatID int64) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	mu, ok := h.locks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		h.locks[chatID] = mu
	}
	return mu
}

// recordActivity stamps chatID's last-message time, consumed by the
// heartbeat system job to decide whether a proactive check-in is still
// warranted.
func (h *Handler) recordActivity(chatID int64) {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()
	h.lastActivity[chatID] = time.Now()
}

// idleSince reports how long it has been since chatID's last inbound
// message, or 0 if the chat has never been seen by this process.
func (h *Handler) idleSince(chatID int64) time.Duration {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()
	last, ok := h.lastActivity[chatID]
	if !ok {
		return 0
	}
	return time.Since(last)
}

// HandleText runs one inbound-text turn for chatID: pin detection, URL
// fetch, streaming orchestration with an optional onDelta callback (called
// with the accumulated text on every streamed delta), history append, and smart trim. The URL bodies a turn fetches
// are included only in the API-bound messages, never in what gets
// persisted to history or the JSONL log. onDelta may be nil, in which case
// the turn runs non-streaming.
func (h *Handler) HandleText(ctx context.Context, chatID int64, text string, onDelta func(accumulated string)) (string, error) {
	mu := h.lockFor(chatID)
	mu.Lock()
	defer mu.Unlock()

	ctx = session.WithChatID(ctx, chatID)
	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	h.recordActivity(chatID)
	if err := h.EnsureSystemJobs(chatID); err != nil {
		logging.SchedulerWarn("companion: ensure system jobs for chat %d: %v", chatID, err)
	}
	chatKey := strconv.FormatInt(chatID, 10)
	start := time.Now()
	logging.TurnStart(chatKey, len(text))

	if hint := session.DetectImportantContext(text); hint != "" {
		h.sessions.PinContext(chatID, hint, session.PinAuto)
	}

	priorHistory := h.sessions.GetHistory(chatID)
	h.sessions.AddMessage(chatID, "user", text)

	apiContent := text
	if bodies := h.fetchReferencedURLs(ctx, text); bodies != "" {
		apiContent = text + "\n\n" + bodies
	}
	turnHistory := append(priorHistory, session.Message{Role: "user", Content: apiContent, Timestamp: time.Now()})

	req := h.buildTurnRequest(ctx, chatID, turnHistory)

	var result *llm.TurnResult
	var err error
	if onDelta != nil {
		result, err = h.orch.RunStreamingTurn(ctx, req, func(d llm.StreamDelta) { onDelta(d.Accumulated) })
	} else {
		result, err = h.orch.RunTurn(ctx, req)
	}

	if err != nil {
		friendly := h.recordTurnError(chatID, err)
		logging.TurnEnd(chatKey, time.Since(start).Milliseconds(), false, err.Error())
		return friendly, nil
	}

	h.sessions.AddMessage(chatID, "assistant", result.Text)
	h.sessions.SmartTrim(chatID, h.summarizeOldest)
	logging.TurnEnd(chatKey, time.Since(start).Milliseconds(), true, "")
	return result.Text, nil
}

// buildTurnRequest assembles the system prompt and tool list shared by
// every turn kind (text, photo, scheduler-fired).
func (h *Handler) buildTurnRequest(ctx context.Context, chatID int64, history []session.Message) llm.TurnRequest {
	model := h.sessions.Model(chatID)
	toolList := h.registry.All()
	system := h.buildSystemPrompt(ctx, chatID, model, history, toolList)

	return llm.TurnRequest{
		Tier:     model,
		System:   system,
		History:  history,
		Tools:    toolList,
		Registry: h.registry,
	}
}

// buildSystemPrompt assembles the system prompt for model/history/toolList,
// shared by the text and photo turn paths.
func (h *Handler) buildSystemPrompt(ctx context.Context, chatID int64, model string, history []session.Message, toolList []*tools.Tool) string {
	return h.assembler.Assemble(prompt.Request{
		ModelID:     model,
		Workspace:   h.ws.Load(),
		PinnedBlock: h.sessions.BuildContextForPrompt(chatID),
		Memory:      h.searchMemory(ctx, chatID, history),
		Tools:       toolList,
		Now:         time.Now(),
	})
}

// searchMemory pulls hybrid-search hits for the newest user turn into the
// prompt's long-term-memory section. A nil store or empty history yields
// no results rather than an error, since memory recall is an enrichment,
// not a precondition for answering.
func (h *Handler) searchMemory(ctx context.Context, chatID int64, history []session.Message) []store.SearchResult {
	if h.memory == nil || len(history) == 0 {
		return nil
	}
	query := history[len(history)-1].Content
	if strings.TrimSpace(query) == "" {
		return nil
	}
	results, err := h.memory.HybridSearch(ctx, query, memoryResultsPerTurn, store.DefaultVectorWeight, store.DefaultKeywordWeight)
	if err != nil {
		logging.StoreWarn("companion: memory search failed for chat %d: %v", chatID, err)
		return nil
	}
	return results
}

// recordTurnError classifies err into a friendly message and appends it to
// history with an [error] marker, preserving role alternation for the
// next turn.
func (h *Handler) recordTurnError(chatID int64, err error) string {
	kind := errkind.Classify(err)
	friendly := errkind.FriendlyMessage(kind)
	h.sessions.AddMessage(chatID, "assistant", "[error] "+friendly)
	logging.LLMError("companion: turn failed for chat %d (%s): %v", chatID, kind, err)
	return friendly
}

// summarizeOldest is the Haiku-tier session.SummarizeFunc passed to
// SmartTrim: it condenses a run of older messages into a short paragraph
// preserving names, facts, and commitments.
func (h *Handler) summarizeOldest(messages []session.Message) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req := llm.TurnRequest{
		Tier:   "haiku",
		System: "Summarize this conversation excerpt in two or three sentences, preserving names, facts, and commitments made by either side. Respond with the summary only, no preamble.",
		History: []session.Message{
			{Role: "user", Content: b.String(), Timestamp: time.Now()},
		},
	}
	result, err := h.orch.RunTurn(ctx, req)
	if err != nil {
		return "", fmt.Errorf("companion: summarize oldest history: %w", err)
	}
	return result.Text, nil
}
