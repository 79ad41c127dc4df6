// Package session implements the in-memory per-chat session store: history,
// token-budgeted trimming, summarization, pinned context, and summary
// chunks, backed by the persistent append log for hydration across
// restarts.
package session

import "time"

// Message is one chat turn held in a Session's history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PinSource distinguishes a pin a user explicitly asked for from one the
// store inferred automatically. Automatic pins are evicted first when the
// pinned-token budget is exceeded.
type PinSource string

const (
	PinAuto PinSource = "auto"
	PinUser PinSource = "user"
)

// PinnedContext is a short piece of text injected into every system prompt
// for a chat, surviving history trimming.
type PinnedContext struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Source    PinSource `json:"source"`
}

// SummaryChunk is a condensed representation of older history produced by
// smartTrim's summarizer callback.
type SummaryChunk struct {
	Summary      string    `json:"summary"`
	MessageCount int       `json:"message_count"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

// Session holds one chat's mutable conversational state. All access goes
// through Store's methods, which take Store.mu for the duration of the
// operation.
type Session struct {
	chatID int64

	history        []Message
	model          string
	pinnedContexts []PinnedContext
	summaryChunks  []SummaryChunk
	lastAccessedAt time.Time
}

// History returns a copy of the session's message history.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Model returns the session's configured model tier name.
func (s *Session) Model() string {
	return s.model
}

// PinnedContexts returns a copy of the session's pinned contexts.
func (s *Session) PinnedContexts() []PinnedContext {
	out := make([]PinnedContext, len(s.pinnedContexts))
	copy(out, s.pinnedContexts)
	return out
}

// SummaryChunks returns a copy of the session's summary chunks.
func (s *Session) SummaryChunks() []SummaryChunk {
	out := make([]SummaryChunk, len(s.summaryChunks))
	copy(out, s.summaryChunks)
	return out
}

// ChatID returns the opaque chat identifier this session belongs to.
func (s *Session) ChatID() int64 {
	return s.chatID
}
