package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"companionbot/internal/config"
	"companionbot/internal/logging"
)

// Client is a thin, retrying HTTP client for the Anthropic Messages API.
// It owns the retry policy; Orchestrator owns the tool-iteration and
// streaming-fallback logic on top of it.
type Client struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	baseRetryDelay time.Duration
}

// NewClient builds a Client from the companion's LLM configuration.
func NewClient(cfg config.LLMConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries:     cfg.MaxRetries,
		baseRetryDelay: cfg.BaseRetryDelay,
	}
}

// retryableError wraps a failed attempt that send's retry loop should back
// off and retry, carrying the delay to wait before the next attempt.
type retryableError struct {
	err   error
	delay time.Duration
}

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// StatusError is a typed, structured failure from the Messages API: either
// a non-2xx HTTP response or a 200 carrying an API-level error body. Code
// and Type let callers (notably internal/errkind) classify the failure
// without matching on Message text.
type StatusError struct {
	Code    int
	Type    string // wire error type, e.g. "rate_limit_error", "invalid_request_error"
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: status %d (%s): %s", e.Code, e.Type, e.Message)
}

// send submits one non-streaming request, retrying on 429/5xx per the
// configured policy. Any other error (network failure, 4xx other than
// 429, a malformed response body) propagates immediately without retry.
func (c *Client) send(ctx context.Context, req wireRequest) (*wireResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("llm: API key not configured")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.doOnce(ctx, req, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		rerr, ok := err.(*retryableError)
		if !ok {
			return nil, err
		}
		logging.LLMWarn("llm: attempt %d failed, retrying in %s: %v", attempt, rerr.delay, rerr.err)

		select {
		case <-time.After(rerr.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("llm: max retries exceeded: %w", lastErr)
}

// apiErrorType best-effort-extracts the wire error's type field from a
// non-2xx body, which carries the same {"error":{"type":...}} envelope as
// a 200 response that fails at the API level.
func apiErrorType(body []byte) string {
	var parsed struct {
		Error wireError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error.Type
}

// doOnce performs a single HTTP round trip. On a 429/5xx it returns a
// *retryableError carrying the delay the caller should wait before retrying.
func (c *Client) doOnce(ctx context.Context, req wireRequest, attempt int) (*wireResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{Code: resp.StatusCode, Type: apiErrorType(body), Message: string(body)}
		if retry, delay := classifyRetry(resp.StatusCode, resp.Header, attempt, c.baseRetryDelay); retry {
			return nil, &retryableError{err: statusErr, delay: delay}
		}
		return nil, statusErr
	}

	var wireResp wireResponse
	if err := json.Unmarshal(body, &wireResp); err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}
	if wireResp.Error != nil {
		return nil, &StatusError{Code: resp.StatusCode, Type: wireResp.Error.Type, Message: wireResp.Error.Message}
	}
	return &wireResp, nil
}
