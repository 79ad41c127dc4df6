package config

import "time"

// AgentsConfig configures the background agent manager.
type AgentsConfig struct {
	MaxConcurrent    int           `yaml:"max_concurrent"`
	MaxPerChat       int           `yaml:"max_per_chat"`
	RunningTTL       time.Duration `yaml:"running_ttl"`
	CompletedTTL     time.Duration `yaml:"completed_ttl"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SystemPrompt     string        `yaml:"system_prompt"`
}

// DefaultAgentsConfig returns sensible defaults (10 global / 3 per chat).
func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{
		MaxConcurrent: 10,
		MaxPerChat:    3,
		RunningTTL:    30 * time.Minute,
		CompletedTTL:  30 * time.Minute,
		SweepInterval: time.Minute,
		SystemPrompt:  "You are a background sub-agent. Complete the assigned task concisely and report the result.",
	}
}
