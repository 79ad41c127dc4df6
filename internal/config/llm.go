package config

import "time"

// LLMConfig configures the Anthropic Messages API client.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // currently only "anthropic"
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`

	Tiers ModelTiers `yaml:"tiers"`

	MaxRetries      int           `yaml:"max_retries"`
	BaseRetryDelay  time.Duration `yaml:"base_retry_delay"`
	MaxToolRounds   int           `yaml:"max_tool_rounds"`
}

// ModelTier describes one of the {haiku, sonnet, opus}-equivalent tiers.
type ModelTier struct {
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ThinkingBudget  int    `yaml:"thinking_budget"`
}

// ModelTiers maps the three tiers named in the data model.
type ModelTiers struct {
	Haiku  ModelTier `yaml:"haiku"`
	Sonnet ModelTier `yaml:"sonnet"`
	Opus   ModelTier `yaml:"opus"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "anthropic",
		BaseURL:  "https://api.anthropic.com/v1",
		Timeout:  10 * time.Minute,
		Tiers: ModelTiers{
			Haiku:  ModelTier{Model: "claude-haiku-4-5", MaxOutputTokens: 4096, ThinkingBudget: 0},
			Sonnet: ModelTier{Model: "claude-sonnet-4-5", MaxOutputTokens: 8192, ThinkingBudget: 2048},
			Opus:   ModelTier{Model: "claude-opus-4-5", MaxOutputTokens: 8192, ThinkingBudget: 4096},
		},
		MaxRetries:     3,
		BaseRetryDelay: 500 * time.Millisecond,
		MaxToolRounds:  10,
	}
}

// Tier looks up a model tier by name, defaulting to Sonnet for unknown names.
func (c LLMConfig) Tier(name string) ModelTier {
	switch name {
	case "haiku":
		return c.Tiers.Haiku
	case "opus":
		return c.Tiers.Opus
	default:
		return c.Tiers.Sonnet
	}
}
