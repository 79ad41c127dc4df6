package session

import (
	"time"

	"companionbot/internal/logging"
)

// SummarizeFunc condenses a slice of older messages into a single summary
// string, typically via a cheaper model tier. An error falls back to
// trimByTokens.
type SummarizeFunc func(messages []Message) (string, error)

// messagesTokens mirrors tokens.Estimator.EstimateMessages but works on
// session.Message instead of tokens.Message to avoid a conversion copy on
// every trim check.
func (st *Store) messagesTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += st.estimator.Estimate(m.Content) + 4
	}
	return total
}

// TrimByTokens drops the oldest history entry for chatID repeatedly while
// the token count exceeds MaxHistoryTokens and more than MinRecentMessages
// entries remain.
func (st *Store) TrimByTokens(chatID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := st.getOrCreate(chatID)
	st.trimByTokensLocked(sess)
}

func (st *Store) trimByTokensLocked(sess *Session) {
	for st.messagesTokens(sess.history) > st.cfg.MaxHistoryTokens && len(sess.history) > st.cfg.MinRecentMessages {
		sess.history = sess.history[1:]
	}
}

// SmartTrim checks whether chatID's history exceeds SummaryThresholdTokens.
// If so, it splits history into the oldest entries and the last
// MinRecentMessages, summarizes the oldest via summarizeFn, and replaces
// history with a synthetic acknowledgement pair followed by the kept
// recent entries. It appends a SummaryChunk recording the replaced span.
// On summarizer failure it falls back to TrimByTokens.
func (st *Store) SmartTrim(chatID int64, summarizeFn SummarizeFunc) {
	st.mu.Lock()
	sess := st.getOrCreate(chatID)

	if st.messagesTokens(sess.history) <= st.cfg.SummaryThresholdTokens {
		st.mu.Unlock()
		return
	}

	keep := st.cfg.MinRecentMessages
	if keep > len(sess.history) {
		keep = len(sess.history)
	}
	splitAt := len(sess.history) - keep
	oldest := make([]Message, splitAt)
	copy(oldest, sess.history[:splitAt])
	recent := make([]Message, keep)
	copy(recent, sess.history[splitAt:])
	st.mu.Unlock()

	if len(oldest) == 0 {
		return
	}

	summary, err := summarizeFn(oldest)

	st.mu.Lock()
	defer st.mu.Unlock()
	sess = st.getOrCreate(chatID)

	if err != nil {
		logging.SessionWarn("session: summarizer failed for chat %d, falling back to trimByTokens: %v", chatID, err)
		st.trimByTokensLocked(sess)
		return
	}

	newHistory := make([]Message, 0, len(recent)+2)
	newHistory = append(newHistory,
		Message{Role: "user", Content: "[previous-conversation summary]\n" + summary, Timestamp: time.Now()},
		Message{Role: "assistant", Content: "acknowledged", Timestamp: time.Now()},
	)
	newHistory = append(newHistory, recent...)
	sess.history = newHistory

	chunk := SummaryChunk{
		Summary:      summary,
		MessageCount: len(oldest),
		StartTime:    oldest[0].Timestamp,
		EndTime:      oldest[len(oldest)-1].Timestamp,
	}
	sess.summaryChunks = append(sess.summaryChunks, chunk)
	if st.cfg.MaxSummaryChunks > 0 && len(sess.summaryChunks) > st.cfg.MaxSummaryChunks {
		sess.summaryChunks = mergeOldestPair(sess.summaryChunks)
	}
}

// mergeOldestPair merges the two oldest summary chunks into one, used when
// a session overflows MaxSummaryChunks.
func mergeOldestPair(chunks []SummaryChunk) []SummaryChunk {
	if len(chunks) < 2 {
		return chunks
	}
	merged := SummaryChunk{
		Summary:      chunks[0].Summary + "\n" + chunks[1].Summary,
		MessageCount: chunks[0].MessageCount + chunks[1].MessageCount,
		StartTime:    chunks[0].StartTime,
		EndTime:      chunks[1].EndTime,
	}
	out := make([]SummaryChunk, 0, len(chunks)-1)
	out = append(out, merged)
	out = append(out, chunks[2:]...)
	return out
}
