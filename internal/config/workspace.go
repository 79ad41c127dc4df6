package config

// WorkspaceConfig configures the workspace adapter.
type WorkspaceConfig struct {
	Root               string `yaml:"root"`
	PerFileSoftLimit   int    `yaml:"per_file_soft_limit"`
	SnapshotCacheTTLMs int    `yaml:"snapshot_cache_ttl_ms"`
}

// DefaultWorkspaceConfig returns sensible defaults (60s snapshot cache).
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Root:               "~/.companionbot",
		PerFileSoftLimit:   8000,
		SnapshotCacheTTLMs: 60000,
	}
}
