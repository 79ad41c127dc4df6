package config

// LoggingConfig configures the category-based file logger and audit trail.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"` // master toggle - false disables file logging
	Categories map[string]bool `yaml:"categories"`  // per-category toggles
	AuditPath  string          `yaml:"audit_path"`
}

// DefaultLoggingConfig returns sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     "info",
		DebugMode: false,
		AuditPath: "~/.companionbot/logs/audit.jsonl",
	}
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false unconditionally when DebugMode is off.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}
