// Package llm implements the LLM orchestration layer: the non-streaming
// and streaming turn loops, retry policy, and tool-use iteration that drive
// a conversation turn against the Anthropic Messages API.
//
// The wire format in this file is grounded on the teacher's
// internal/perception/client_anthropic.go request/response shape, extended
// with the content-block structure (tool_use/tool_result blocks, not just
// plain text) that multi-round tool iteration requires.
package llm

// contentBlock is one block of a message's content array: text, an inline
// image, a model-initiated tool call, or a tool result being fed back to
// the model.
type contentBlock struct {
	Type string `json:"type"`

	// Text block.
	Text string `json:"text,omitempty"`

	// Image block (host → model only; the API never returns one).
	Source *imageSource `json:"source,omitempty"`

	// Tool-use block (model → host).
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// Tool-result block (host → model).
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// imageSource carries an inline base64-encoded image, the only source kind
// the companion's inbound-photo flow needs (as opposed to a fetched URL).
type imageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type wireThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	Thinking    *wireThinking `json:"thinking,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wireResponse struct {
	ID         string         `json:"id"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      wireUsage      `json:"usage"`
	Error      *wireError     `json:"error,omitempty"`
}

func firstText(blocks []contentBlock) string {
	for _, b := range blocks {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

func toolUseBlocks(blocks []contentBlock) []contentBlock {
	var out []contentBlock
	for _, b := range blocks {
		if b.Type == "tool_use" {
			out = append(out, b)
		}
	}
	return out
}
