package shell

import (
	"time"

	"companionbot/internal/tools"
)

// RegisterAll registers the shell execution tools with the given registry.
// commandAllowlist, foregroundTimeout, and resultTruncateAt configure the
// package's security boundary; pass a nil allowlist or zero duration/limit
// to keep the package's built-in defaults.
func RegisterAll(registry *tools.Registry, commandAllowlist []string, foregroundTimeout time.Duration, resultTruncateAt int) error {
	Configure(commandAllowlist, foregroundTimeout, resultTruncateAt)

	allTools := []*tools.Tool{
		RunCommandTool(),
		ProcessOutputTool(),
		KillProcessTool(),
		ListProcessesTool(),
	}

	for _, tool := range allTools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	return nil
}
