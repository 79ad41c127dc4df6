package errkind

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"companionbot/internal/llm"
)

func TestClassify_RateLimitedByStatusCode(t *testing.T) {
	err := &llm.StatusError{Code: http.StatusTooManyRequests, Type: "", Message: "slow down"}
	if got := Classify(err); got != RateLimited {
		t.Errorf("got %v, want RateLimited", got)
	}
}

func TestClassify_RateLimitedByWireType(t *testing.T) {
	err := &llm.StatusError{Code: http.StatusServiceUnavailable, Type: "overloaded_error", Message: "overloaded"}
	if got := Classify(err); got != RateLimited {
		t.Errorf("got %v, want RateLimited", got)
	}
}

func TestClassify_ContextTooLong(t *testing.T) {
	err := &llm.StatusError{Code: http.StatusBadRequest, Type: "invalid_request_error", Message: "prompt is too long: 205000 tokens > 200000 maximum"}
	if got := Classify(err); got != ContextTooLong {
		t.Errorf("got %v, want ContextTooLong", got)
	}
}

func TestClassify_OtherInvalidRequest(t *testing.T) {
	err := &llm.StatusError{Code: http.StatusBadRequest, Type: "invalid_request_error", Message: "missing required field: messages"}
	if got := Classify(err); got != Other {
		t.Errorf("got %v, want Other", got)
	}
}

func TestClassify_TimeoutFromContextDeadline(t *testing.T) {
	err := fmt.Errorf("llm: request failed: %w", context.DeadlineExceeded)
	if got := Classify(err); got != Timeout {
		t.Errorf("got %v, want Timeout", got)
	}
}

func TestClassify_TimeoutFromContextCanceled(t *testing.T) {
	err := fmt.Errorf("llm: request failed: %w", context.Canceled)
	if got := Classify(err); got != Timeout {
		t.Errorf("got %v, want Timeout", got)
	}
}

func TestClassify_NilIsOther(t *testing.T) {
	if got := Classify(nil); got != Other {
		t.Errorf("got %v, want Other", got)
	}
}

func TestClassify_PlainErrorIsOther(t *testing.T) {
	if got := Classify(errors.New("boom")); got != Other {
		t.Errorf("got %v, want Other", got)
	}
}

func TestWrap_PreservesUnderlyingErrorViaUnwrap(t *testing.T) {
	underlying := &llm.StatusError{Code: 429, Message: "slow down"}
	wrapped := Wrap(underlying)
	if wrapped.Kind != RateLimited {
		t.Errorf("got kind %v, want RateLimited", wrapped.Kind)
	}
	if !errors.Is(wrapped, underlying) {
		t.Error("expected errors.Is to find the underlying StatusError through Unwrap")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("expected Wrap(nil) to return nil")
	}
}

func TestFriendlyMessage_CoversEveryKind(t *testing.T) {
	for _, k := range []Kind{RateLimited, Timeout, ContextTooLong, Other} {
		if FriendlyMessage(k) == "" {
			t.Errorf("expected a non-empty friendly message for kind %v", k)
		}
	}
}

func TestKind_StringCoversEveryKind(t *testing.T) {
	for _, k := range []Kind{RateLimited, Timeout, ContextTooLong, Other} {
		if k.String() == "" {
			t.Errorf("expected a non-empty String() for kind %v", k)
		}
	}
}
