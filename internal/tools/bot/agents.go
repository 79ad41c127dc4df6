package bot

import (
	"context"
	"fmt"
	"strings"

	"companionbot/internal/agent"
	"companionbot/internal/session"
	"companionbot/internal/tools"
)

// SpawnAgentTool returns a tool that starts a background sub-agent running
// a single LLM turn outside the current conversation, reporting its result
// back to the originating chat when it finishes.
func SpawnAgentTool() *tools.Tool {
	return &tools.Tool{
		Name:        "spawn_agent",
		Description: "Start a background task that runs independently and reports back when done",
		Category:    tools.CategoryAgent,
		Priority:    55,
		Execute:     executeSpawnAgent,
		Schema: tools.ToolSchema{
			Required: []string{"task"},
			Properties: map[string]tools.Property{
				"task": {
					Type:        "string",
					Description: "What the background agent should do",
				},
			},
		},
	}
}

func executeSpawnAgent(ctx context.Context, args map[string]any) (string, error) {
	task, _ := args["task"].(string)
	task = strings.TrimSpace(task)
	if task == "" {
		return "", fmt.Errorf("task is required")
	}

	_, _, mgr, _ := deps()
	if mgr == nil {
		return "", fmt.Errorf("spawn_agent is not configured (no agent manager)")
	}

	chatID, ok := session.ChatIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("spawn_agent: no chat context available")
	}

	id, err := mgr.Spawn(ctx, chatID, task)
	if err != nil {
		return "", fmt.Errorf("spawn agent: %w", err)
	}
	return fmt.Sprintf("Started background agent %s.", id), nil
}

// CancelAgentTool returns a tool that cancels a running background agent.
func CancelAgentTool() *tools.Tool {
	return &tools.Tool{
		Name:        "cancel_agent",
		Description: "Cancel a running background agent by id",
		Category:    tools.CategoryAgent,
		Priority:    55,
		Execute:     executeCancelAgent,
		Schema: tools.ToolSchema{
			Required: []string{"agent_id"},
			Properties: map[string]tools.Property{
				"agent_id": {
					Type:        "string",
					Description: "The id returned by spawn_agent",
				},
			},
		},
	}
}

func executeCancelAgent(ctx context.Context, args map[string]any) (string, error) {
	id, _ := args["agent_id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("agent_id is required")
	}

	_, _, mgr, _ := deps()
	if mgr == nil {
		return "", fmt.Errorf("cancel_agent is not configured (no agent manager)")
	}

	if err := mgr.Cancel(id); err != nil {
		if err == agent.ErrNotFound {
			return "", fmt.Errorf("no such agent: %s", id)
		}
		return "", fmt.Errorf("cancel agent: %w", err)
	}
	return fmt.Sprintf("Cancelled agent %s.", id), nil
}

// AgentStatusTool returns a tool that reports a background agent's current
// status and, if finished, its result.
func AgentStatusTool() *tools.Tool {
	return &tools.Tool{
		Name:        "agent_status",
		Description: "Check the status (and result, if finished) of a background agent by id",
		Category:    tools.CategoryAgent,
		Priority:    55,
		Execute:     executeAgentStatus,
		Schema: tools.ToolSchema{
			Required: []string{"agent_id"},
			Properties: map[string]tools.Property{
				"agent_id": {
					Type:        "string",
					Description: "The id returned by spawn_agent",
				},
			},
		},
	}
}

func executeAgentStatus(ctx context.Context, args map[string]any) (string, error) {
	id, _ := args["agent_id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("agent_id is required")
	}

	_, _, mgr, _ := deps()
	if mgr == nil {
		return "", fmt.Errorf("agent_status is not configured (no agent manager)")
	}

	a, ok := mgr.Get(id)
	if !ok {
		return "", fmt.Errorf("no such agent: %s", id)
	}

	status := a.Status()
	if status != agent.StatusRunning {
		result, resultErr := a.Result()
		if resultErr != nil {
			return fmt.Sprintf("Agent %s %s: %v", id, status, resultErr), nil
		}
		return fmt.Sprintf("Agent %s %s: %s", id, status, result), nil
	}
	return fmt.Sprintf("Agent %s is still running.", id), nil
}
