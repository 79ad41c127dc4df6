package core

import (
	"companionbot/internal/tools"
)

// RegisterAll registers all core filesystem tools with the given registry.
// allowedRoots configures the sandbox boundary; pass nil to keep the
// package's built-in default (the companion's workspace dir and /tmp).
func RegisterAll(registry *tools.Registry, allowedRoots []string) error {
	if allowedRoots != nil {
		SetAllowedRoots(allowedRoots)
	}

	allTools := []*tools.Tool{
		// File operations
		ReadFileTool(),
		WriteFileTool(),
		EditFileTool(),
		DeleteFileTool(),
		ListFilesTool(),

		// Search operations
		GlobTool(),
		GrepTool(),
		SearchCodeTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
