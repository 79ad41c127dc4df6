package llm

import (
	"net/http"
	"strconv"
	"time"
)

// classifyRetry decides whether a response with the given status should be
// retried and, if so, how long to wait before the next attempt.
// 429 honors a Retry-After header when present, otherwise falls back to
// exponential backoff like 5xx. Any other status propagates immediately.
func classifyRetry(statusCode int, headers http.Header, attempt int, baseDelay time.Duration) (retry bool, delay time.Duration) {
	switch {
	case statusCode == http.StatusTooManyRequests:
		if d, ok := retryAfterDelay(headers); ok {
			return true, d
		}
		return true, exponentialBackoff(baseDelay, attempt)
	case statusCode >= 500 && statusCode < 600:
		return true, exponentialBackoff(baseDelay, attempt)
	default:
		return false, 0
	}
}

func exponentialBackoff(baseDelay time.Duration, attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

// retryAfterDelay parses a Retry-After header, which per RFC 9110 is either
// an integer number of seconds or an HTTP date.
func retryAfterDelay(headers http.Header) (time.Duration, bool) {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
