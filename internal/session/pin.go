package session

import (
	"strings"
	"time"
)

// PinContext adds a pinned context entry for chatID, enforcing the
// pinned-token budget. Automatic pins are evicted oldest-first to make
// room; if even evicting every automatic pin would leave the new pin over
// budget, PinContext rejects it and returns false.
func (st *Store) PinContext(chatID int64, text string, source PinSource) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess := st.getOrCreate(chatID)

	newTokens := st.estimator.Estimate(text)
	if newTokens > st.cfg.MaxPinnedTokens {
		return false
	}

	pins := append([]PinnedContext(nil), sess.pinnedContexts...)
	for st.pinnedTokens(pins)+newTokens > st.cfg.MaxPinnedTokens {
		idx := firstAutoIndex(pins)
		if idx == -1 {
			return false
		}
		pins = append(pins[:idx], pins[idx+1:]...)
	}

	pins = append(pins, PinnedContext{
		Text:      text,
		CreatedAt: time.Now(),
		Source:    source,
	})
	sess.pinnedContexts = pins
	return true
}

func (st *Store) pinnedTokens(pins []PinnedContext) int {
	total := 0
	for _, p := range pins {
		total += st.estimator.Estimate(p.Text)
	}
	return total
}

func firstAutoIndex(pins []PinnedContext) int {
	for i, p := range pins {
		if p.Source == PinAuto {
			return i
		}
	}
	return -1
}

// importantContextHints are regex-style literal phrases that flag a user
// message as worth auto-pinning. Multilingual on purpose: the companion's
// users are not assumed to write in English.
var importantContextHints = []string{
	"remember",
	"don't forget",
	"기억해",
	"내 이름은",
	"my name is",
}

// DetectImportantContext pattern-matches userMessage against a fixed set of
// hint phrases and returns the message itself (the "captured phrase") when
// a hint is found, or "" when none match.
func DetectImportantContext(userMessage string) string {
	lower := strings.ToLower(userMessage)
	for _, hint := range importantContextHints {
		if strings.Contains(lower, strings.ToLower(hint)) {
			return userMessage
		}
	}
	return ""
}

// BuildContextForPrompt concatenates chatID's pinned contexts and summary
// chunks into a stable textual block for the prompt assembler.
func (st *Store) BuildContextForPrompt(chatID int64) string {
	st.mu.Lock()
	sess := st.getOrCreate(chatID)
	pins := sess.PinnedContexts()
	chunks := sess.SummaryChunks()
	st.mu.Unlock()

	var b strings.Builder
	if len(pins) > 0 {
		b.WriteString("## Pinned context\n")
		for _, p := range pins {
			b.WriteString("- ")
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
	}
	if len(chunks) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Conversation summary\n")
		for _, c := range chunks {
			b.WriteString(c.Summary)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
