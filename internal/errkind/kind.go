// Package errkind classifies orchestration failures into a small, closed
// set of kinds so the message handler can turn any error into a friendly
// reply with an exhaustive switch instead of matching on error text.
package errkind

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"companionbot/internal/llm"
)

// Kind is a closed set of failure categories a conversation turn can end
// in. The zero value is never produced by Classify; callers that need a
// "no failure" value should not construct a Kind at all.
type Kind int

const (
	// RateLimited covers 429s and the API's rate_limit_error/
	// overloaded_error types, after the client's own retry budget is spent.
	RateLimited Kind = iota + 1
	// Timeout covers context deadline exceeded and context canceled;
	// Classify does not tell an explicit cancel apart from a timeout.
	Timeout
	// ContextTooLong covers the API rejecting a request because the
	// assembled prompt plus history exceeded the model's context window.
	ContextTooLong
	// Other is every failure that doesn't fit one of the above: network
	// errors, malformed responses, unconfigured credentials, and so on.
	Other
)

func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Timeout:
		return "timeout"
	case ContextTooLong:
		return "context_too_long"
	case Other:
		return "other"
	default:
		return "other"
	}
}

// Error pairs a classified Kind with the underlying error it was derived
// from, so callers that need the original for logging can still get at it
// via Unwrap while switching on Kind for control flow.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err and returns an *Error carrying both the Kind and the
// original error. Returns nil if err is nil.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Classify(err), Err: err}
}

// Classify maps an arbitrary error from the LLM orchestration layer to a
// Kind. It inspects *llm.StatusError for structured status/type fields
// first; the one exception is ContextTooLong, which the Messages API
// reports as an invalid_request_error with no dedicated machine-readable
// field, so that single case falls back to a substring check on the
// message the API actually sends.
func Classify(err error) Kind {
	if err == nil {
		return Other
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusTooManyRequests,
			statusErr.Type == "rate_limit_error",
			statusErr.Type == "overloaded_error":
			return RateLimited
		case statusErr.Type == "invalid_request_error" && looksLikeContextTooLong(statusErr.Message):
			return ContextTooLong
		}
	}

	if errors.Is(err, context.Canceled) {
		return Timeout
	}

	return Other
}

func looksLikeContextTooLong(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "too long") ||
		strings.Contains(lower, "maximum context length") ||
		strings.Contains(lower, "context_length_exceeded") ||
		strings.Contains(lower, "exceeds the maximum")
}

// FriendlyMessage returns the user-facing text for a Kind. The message
// handler appends this, not the raw error, to conversation history.
func FriendlyMessage(k Kind) string {
	switch k {
	case RateLimited:
		return "I'm getting rate limited right now. Give it a minute and try again."
	case Timeout:
		return "That took too long and timed out. Mind trying again?"
	case ContextTooLong:
		return "This conversation got too long for me to process in one go. I'll need to trim some history before continuing."
	case Other:
		return "Something went wrong on my end and I couldn't finish that. Let's try again."
	default:
		return "Something went wrong on my end and I couldn't finish that. Let's try again."
	}
}
