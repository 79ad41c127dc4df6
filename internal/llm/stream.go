package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"companionbot/internal/logging"
)

// StreamDelta is delivered to the caller's callback for each incremental
// chunk of streamed text, along with the text accumulated so far.
type StreamDelta struct {
	Delta       string
	Accumulated string
}

// RunStreamingTurn streams a turn's text response, disabling thinking so
// deltas are plain text. If the model wants to use a tool mid-stream, the
// partial stream is discarded and the full turn (including tool iteration)
// is re-run to completion through RunTurn, with UsedTools set on the result.
//
// An error before the first streamed byte falls back to the non-streaming
// path outright. An error after streaming has begun is not retried; the
// partial text collected so far is returned with an "(error during
// generation)" marker appended.
func (o *Orchestrator) RunStreamingTurn(ctx context.Context, req TurnRequest, onDelta func(StreamDelta)) (*TurnResult, error) {
	tier := o.llmCfg.Tier(req.Tier)
	wreq := wireRequest{
		Model:     tier.Model,
		MaxTokens: tier.MaxOutputTokens,
		System:    req.System,
		Messages:  toWireMessages(req.History),
		Tools:     toWireTools(req.Tools),
		Stream:    true,
	}

	accum, stopReason, streamErr, startedStreaming := o.streamOnce(ctx, wreq, onDelta)

	if streamErr != nil {
		if !startedStreaming {
			logging.LLMWarn("llm: stream failed before first byte, falling back to non-streaming: %v", streamErr)
			return o.RunTurn(ctx, req)
		}
		return &TurnResult{Text: accum + "\n(error during generation)"}, nil
	}

	if stopReason == "tool_use" {
		result, err := o.RunTurn(ctx, req)
		if err == nil {
			result.UsedTools = true
		}
		return result, err
	}

	return &TurnResult{Text: accum}, nil
}

// streamOnce performs one streaming HTTP call, forwarding text deltas to
// onDelta as they arrive. It returns the accumulated text, the final
// stop_reason if one was observed, any error, and whether any byte of the
// stream was delivered before the error (to decide fallback eligibility).
func (o *Orchestrator) streamOnce(ctx context.Context, req wireRequest, onDelta func(StreamDelta)) (accum string, stopReason string, err error, startedStreaming bool) {
	if o.client.apiKey == "" {
		return "", "", fmt.Errorf("llm: API key not configured"), false
	}

	jsonData, merr := json.Marshal(req)
	if merr != nil {
		return "", "", fmt.Errorf("llm: marshal request: %w", merr), false
	}

	httpReq, berr := http.NewRequestWithContext(ctx, http.MethodPost, o.client.baseURL+"/messages", bytes.NewReader(jsonData))
	if berr != nil {
		return "", "", fmt.Errorf("llm: build request: %w", berr), false
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", o.client.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, derr := o.client.httpClient.Do(httpReq)
	if derr != nil {
		return "", "", fmt.Errorf("llm: request failed: %w", derr), false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, string(body)), false
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var evt struct {
			Type  string `json:"type"`
			Delta *struct {
				Type       string `json:"type,omitempty"`
				Text       string `json:"text,omitempty"`
				StopReason string `json:"stop_reason,omitempty"`
			} `json:"delta,omitempty"`
			Error *wireError `json:"error,omitempty"`
		}
		if jerr := json.Unmarshal([]byte(data), &evt); jerr != nil {
			continue
		}
		if evt.Error != nil {
			return accum, stopReason, fmt.Errorf("llm: API error: %s", evt.Error.Message), startedStreaming
		}
		if evt.Type == "content_block_delta" && evt.Delta != nil && evt.Delta.Text != "" {
			accum += evt.Delta.Text
			startedStreaming = true
			if onDelta != nil {
				onDelta(StreamDelta{Delta: evt.Delta.Text, Accumulated: accum})
			}
		}
		if evt.Type == "message_delta" && evt.Delta != nil && evt.Delta.StopReason != "" {
			stopReason = evt.Delta.StopReason
		}
	}
	if serr := scanner.Err(); serr != nil {
		return accum, stopReason, fmt.Errorf("llm: stream read error: %w", serr), startedStreaming
	}

	return accum, stopReason, nil, startedStreaming
}
