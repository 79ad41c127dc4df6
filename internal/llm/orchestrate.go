package llm

import (
	"context"
	"fmt"

	"companionbot/internal/config"
	"companionbot/internal/logging"
	"companionbot/internal/session"
	"companionbot/internal/tools"
)

// maxToolIterationsMessage is returned in place of an error when a turn
// exhausts its tool-round budget without the model settling on a final
// text answer.
const maxToolIterationsMessage = "I tried several tool calls but couldn't get to an answer. Let's try a different approach."

// TurnRequest describes one conversation turn to run against the model.
type TurnRequest struct {
	Tier     string // "haiku", "sonnet", or "opus"
	System   string
	History  []session.Message
	Tools    []*tools.Tool
	Registry *tools.Registry
}

// TurnResult is the outcome of a completed turn.
type TurnResult struct {
	Text      string
	UsedTools bool
	Usage     wireUsage
}

// Orchestrator drives conversation turns against the Anthropic Messages API,
// including the tool-use iteration loop described by the companion's LLM
// contract: submit, dispatch any tool calls the model requests, resubmit
// with results, repeat until the model produces a final text answer or the
// round budget is exhausted.
type Orchestrator struct {
	client *Client
	llmCfg config.LLMConfig
}

// NewOrchestrator builds an Orchestrator around a Client and its tier/round config.
func NewOrchestrator(client *Client, llmCfg config.LLMConfig) *Orchestrator {
	return &Orchestrator{client: client, llmCfg: llmCfg}
}

// RunTurn executes a full turn, including tool iteration, and returns the
// model's final text response.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	tier := o.llmCfg.Tier(req.Tier)
	messages := toWireMessages(req.History)
	return o.runLoop(ctx, tier, req.System, messages, toWireTools(req.Tools), req.Registry)
}

// runLoop drives the tool-use iteration loop shared by RunTurn and
// RunImageTurn: submit, dispatch any requested tool calls, resubmit with
// results, repeat until the model settles on a final text answer or the
// round budget (MaxToolRounds) is exhausted.
func (o *Orchestrator) runLoop(ctx context.Context, tier config.ModelTier, system string, messages []wireMessage, wireToolsList []wireTool, registry *tools.Registry) (*TurnResult, error) {
	usedTools := false
	var lastUsage wireUsage

	for round := 0; round < o.llmCfg.MaxToolRounds; round++ {
		wreq := wireRequest{
			Model:     tier.Model,
			MaxTokens: tier.MaxOutputTokens,
			System:    system,
			Messages:  messages,
			Tools:     wireToolsList,
		}
		if tier.ThinkingBudget > 0 {
			wreq.Thinking = &wireThinking{Type: "enabled", BudgetTokens: tier.ThinkingBudget}
		}

		resp, err := o.client.send(ctx, wreq)
		if err != nil {
			return nil, fmt.Errorf("llm: turn failed: %w", err)
		}
		lastUsage = resp.Usage

		if resp.StopReason != "tool_use" {
			return &TurnResult{Text: firstText(resp.Content), UsedTools: usedTools, Usage: lastUsage}, nil
		}

		usedTools = true
		calls := toolUseBlocks(resp.Content)
		if len(calls) == 0 {
			return &TurnResult{Text: firstText(resp.Content), UsedTools: usedTools, Usage: lastUsage}, nil
		}

		messages = append(messages, wireMessage{Role: "assistant", Content: resp.Content})

		results := make([]contentBlock, 0, len(calls))
		for _, call := range calls {
			resultText, isErr := o.dispatch(ctx, registry, call)
			results = append(results, contentBlock{
				Type:      "tool_result",
				ToolUseID: call.ID,
				Content:   resultText,
				IsError:   isErr,
			})
		}
		messages = append(messages, wireMessage{Role: "user", Content: results})
	}

	logging.LLMWarn("llm: turn exhausted %d tool rounds without a final answer", o.llmCfg.MaxToolRounds)
	return &TurnResult{Text: maxToolIterationsMessage, UsedTools: usedTools, Usage: lastUsage}, nil
}

// dispatch runs a single tool call requested by the model, turning any
// execution error into a tool_result block marked is_error rather than
// failing the whole turn.
func (o *Orchestrator) dispatch(ctx context.Context, registry *tools.Registry, call contentBlock) (string, bool) {
	if registry == nil {
		return "no tools are available for this turn", true
	}
	result, err := registry.Execute(ctx, call.Name, call.Input)
	if err != nil {
		logging.LLMWarn("llm: tool %s failed: %v", call.Name, err)
		return err.Error(), true
	}
	return result.Result, false
}

// toWireMessages converts the plain-text session history into the wire's
// content-block message shape. Session history never itself contains tool
// blocks; those live only transiently within a single RunTurn call.
func toWireMessages(history []session.Message) []wireMessage {
	out := make([]wireMessage, 0, len(history))
	for _, m := range history {
		out = append(out, wireMessage{
			Role:    m.Role,
			Content: []contentBlock{{Type: "text", Text: m.Content}},
		})
	}
	return out
}

// toWireTools converts the tool registry's schema shape into the Anthropic
// JSON-schema shape expected on the wire.
func toWireTools(ts []*tools.Tool) []wireTool {
	if len(ts) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(ts))
	for _, t := range ts {
		out = append(out, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: toolSchemaToJSONSchema(t.Schema),
		})
	}
	return out
}

func toolSchemaToJSONSchema(schema tools.ToolSchema) map[string]any {
	properties := make(map[string]any, len(schema.Properties))
	for name, prop := range schema.Properties {
		p := map[string]any{
			"type":        prop.Type,
			"description": prop.Description,
		}
		if prop.Default != nil {
			p["default"] = prop.Default
		}
		if len(prop.Enum) > 0 {
			p["enum"] = prop.Enum
		}
		if prop.Items != nil {
			p["items"] = map[string]any{"type": prop.Items.Type}
		}
		properties[name] = p
	}
	required := schema.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
