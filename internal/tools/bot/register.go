package bot

import (
	"companionbot/internal/agent"
	"companionbot/internal/scheduler"
	"companionbot/internal/store"
	"companionbot/internal/tools"
	"companionbot/internal/workspace"
)

// RegisterAll configures the package's collaborators and registers all
// bot-domain tools with the given registry.
func RegisterAll(registry *tools.Registry, ws *workspace.Adapter, ms *store.LocalStore, am *agent.Manager, sch *scheduler.Scheduler) error {
	Configure(ws, ms, am, sch)

	allTools := []*tools.Tool{
		SaveMemoryTool(),
		SearchMemoryTool(),

		SpawnAgentTool(),
		CancelAgentTool(),
		AgentStatusTool(),

		ScheduleJobTool(),
		CancelJobTool(),
		ListJobsTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
