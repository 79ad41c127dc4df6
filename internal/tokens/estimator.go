// Package tokens provides a cheap, local approximation of LLM token counts.
// It exists for budget control only (history trimming, pinned-context caps,
// prompt assembly) and is never accurate enough to be used for billing.
package tokens

import (
	"math"
	"unicode"
)

// perMessageOverhead approximates the fixed per-message wrapper tokens a
// provider's chat-format encoding adds (role marker, separators) on top of
// the content itself.
const perMessageOverhead = 4

// Message is the minimal role/content pair the estimator operates on. The
// session store's richer Message type embeds the same shape.
type Message struct {
	Role    string
	Content string
}

// Estimator approximates token counts for mixed Korean/other-language text.
// Korean text tokenizes denser per character than Latin-script text under
// every provider's BPE vocabulary observed in practice, so Hangul runes are
// weighted at half a token each versus a quarter token for everything else.
type Estimator struct{}

// NewEstimator returns an Estimator. It holds no state; the zero value works
// equally well, but NewEstimator matches the constructor pattern used by the
// rest of this module's components.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Estimate approximates the token count of a single piece of text.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	var korean, other float64
	for _, r := range text {
		if isHangul(r) {
			korean++
		} else {
			other++
		}
	}
	return int(math.Ceil(korean/2 + other/4))
}

// EstimateMessages approximates the token count of a sequence of messages,
// adding the fixed per-message overhead to each entry's content estimate.
func (e *Estimator) EstimateMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += e.Estimate(m.Content) + perMessageOverhead
	}
	return total
}

func isHangul(r rune) bool {
	return unicode.Is(unicode.Hangul, r)
}
