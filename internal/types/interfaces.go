// Package types holds the small set of LLM client interfaces that tools
// depending on an LLM client program against (research's ThinkingHelper).
// internal/llm's Orchestrator does not implement LLMClient.
package types

import (
	"context"
)

// LLMClient defines the interface for LLM interactions.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteWithTools sends a prompt with tool definitions and returns response with tool calls.
	CompleteWithTools(ctx context.Context, systemPrompt, userPrompt string, tools []ToolDefinition) (*LLMToolResponse, error)
}

// ToolDefinition describes a tool that the LLM can invoke.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID    string                 `json:"id"`    // Unique ID for this tool use
	Name  string                 `json:"name"`  // Tool name to invoke
	Input map[string]interface{} `json:"input"` // Tool arguments
}

// UsageMetadata captures token usage metrics from the LLM.
type UsageMetadata struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	TotalTokens         int `json:"total_tokens"`
	ThinkingTokens      int `json:"thinking_tokens,omitempty"`       // Subset of OutputTokens used for thinking
	CachedContentTokens int `json:"cached_content_tokens,omitempty"` // Tokens read from context cache
}

// LLMToolResponse contains both text response and tool calls from the LLM.
type LLMToolResponse struct {
	Text       string        `json:"text"`        // Text response (may be empty if only tool calls)
	ToolCalls  []ToolCall    `json:"tool_calls"`  // Tool invocations requested by LLM
	StopReason string        `json:"stop_reason"` // "end_turn", "tool_use", etc.
	Usage      UsageMetadata `json:"usage"`       // Token usage metrics

	// ThoughtSummary captures the model's reasoning process, when the
	// underlying client exposes extended/thinking mode.
	ThoughtSummary string `json:"thought_summary,omitempty"`
	// ThoughtSignature is an opaque blob some providers require to be
	// echoed back on the next turn to preserve reasoning continuity.
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// ThinkingProvider is an optional interface for LLM clients that support
// explicit thinking/reasoning mode. Use a type assertion to check support:
//
//	if tp, ok := client.(types.ThinkingProvider); ok {
//	    summary := tp.GetLastThoughtSummary()
//	}
type ThinkingProvider interface {
	// GetLastThoughtSummary returns the model's reasoning process from the last call.
	GetLastThoughtSummary() string

	// GetLastThinkingTokens returns the number of tokens used for reasoning.
	GetLastThinkingTokens() int

	// IsThinkingEnabled returns whether thinking mode is currently enabled.
	IsThinkingEnabled() bool

	// GetThinkingLevel returns the current thinking level (e.g. "low", "high").
	GetThinkingLevel() string
}

// ThoughtSignatureProvider is an optional interface for LLM clients that
// support multi-turn function calling with an opaque thought signature that
// must be echoed back on subsequent turns to preserve reasoning continuity.
type ThoughtSignatureProvider interface {
	// GetLastThoughtSignature returns the signature from the last response,
	// or empty string if the client doesn't support signatures or the last
	// call didn't include tool calls.
	GetLastThoughtSignature() string
}
