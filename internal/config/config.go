package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix used for environment-variable overrides
// (e.g. COMPANIONBOT_LLM_API_KEY overrides LLM.APIKey).
const EnvPrefix = "COMPANIONBOT"

// Config holds all companionbot runtime configuration.
type Config struct {
	Name      string          `yaml:"name"`
	Version   string          `yaml:"version"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	Agents    AgentsConfig    `yaml:"agents"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Default returns a Config populated with the defaults documented across
// the per-concern files in this package.
func Default() Config {
	return Config{
		Name:      "companionbot",
		Version:   "0.1.0",
		Workspace: DefaultWorkspaceConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Store:     DefaultStoreConfig(),
		Session:   DefaultSessionConfig(),
		Agents:    DefaultAgentsConfig(),
		Scheduler: DefaultSchedulerConfig(),
		Tools:     DefaultToolsConfig(),
		Logging:   DefaultLoggingConfig(),
	}
}

// Load reads a YAML config file (if it exists) layered over defaults, then
// applies environment-variable overrides bound under EnvPrefix via viper.
// A missing path is not an error: defaults plus env overrides still apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

// applyEnvOverrides binds a fixed set of leaf fields to COMPANIONBOT_* env
// vars via viper's AutomaticEnv, mirroring the teacher's envOrDefault idiom
// but centralized instead of scattered across call sites.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bind := func(key string, set func(string)) {
		_ = v.BindEnv(key)
		if val := v.GetString(key); val != "" {
			set(val)
		}
	}

	bind("llm.api_key", func(s string) { cfg.LLM.APIKey = s })
	bind("llm.base_url", func(s string) { cfg.LLM.BaseURL = s })
	bind("embedding.api_key", func(s string) { cfg.Embedding.APIKey = s })
	bind("embedding.provider", func(s string) { cfg.Embedding.Provider = s })
	bind("store.path", func(s string) { cfg.Store.Path = s })
	bind("workspace.root", func(s string) { cfg.Workspace.Root = s })
	bind("logging.level", func(s string) { cfg.Logging.Level = s })
}

// Validate checks cross-field invariants that defaults alone can't enforce.
func (c *Config) Validate() error {
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session.max_sessions must be positive")
	}
	if c.Agents.MaxConcurrent <= 0 || c.Agents.MaxPerChat <= 0 {
		return fmt.Errorf("agents.max_concurrent and agents.max_per_chat must be positive")
	}
	if c.Agents.MaxPerChat > c.Agents.MaxConcurrent {
		return fmt.Errorf("agents.max_per_chat cannot exceed agents.max_concurrent")
	}
	return nil
}
