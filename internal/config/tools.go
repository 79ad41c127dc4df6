package config

import "time"

// ToolsConfig configures the tool dispatcher and its security-critical
// handlers: file sandbox roots, the command allowlist, and web-fetch
// limits.
type ToolsConfig struct {
	AllowedRoots      []string      `yaml:"allowed_roots"`
	CommandAllowlist  []string      `yaml:"command_allowlist"`
	ForegroundTimeout time.Duration `yaml:"foreground_timeout"`
	ResultTruncateAt  int           `yaml:"result_truncate_at"`
	MaxURLsPerTurn    int           `yaml:"max_urls_per_turn"`
	MaxImageBytes     int64         `yaml:"max_image_bytes"`
	WebSearchAPIKey   string        `yaml:"web_search_api_key"`
	WebSearchURL      string        `yaml:"web_search_url"`
}

// DefaultToolsConfig returns sensible defaults for a freshly configured
// companion instance.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		AllowedRoots:      []string{"~/.companionbot", "/tmp"},
		CommandAllowlist:  []string{"git", "npm", "ls", "cat", "grep", "find", "echo", "pwd", "go"},
		ForegroundTimeout: 30 * time.Second,
		ResultTruncateAt:  10000,
		MaxURLsPerTurn:    3,
		MaxImageBytes:     10 * 1024 * 1024,
		WebSearchURL:      "https://api.search.brave.com/res/v1/web/search",
	}
}
