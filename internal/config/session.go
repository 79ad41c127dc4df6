package config

import "time"

// SessionConfig configures the session store and its resource bounds.
type SessionConfig struct {
	SessionsDir           string        `yaml:"sessions_dir"`
	MaxSessions           int           `yaml:"max_sessions"`
	TTL                   time.Duration `yaml:"ttl"`
	MaxHistoryTokens      int           `yaml:"max_history_tokens"`
	MinRecentMessages     int           `yaml:"min_recent_messages"`
	SummaryThresholdTokens int          `yaml:"summary_threshold_tokens"`
	MaxPinnedTokens       int           `yaml:"max_pinned_tokens"`
	MaxSummaryChunks      int           `yaml:"max_summary_chunks"`
	MaxHistoryLoad        int           `yaml:"max_history_load"`
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SessionsDir:            "~/.companionbot/sessions",
		MaxSessions:            100,
		TTL:                    24 * time.Hour,
		MaxHistoryTokens:       45000,
		MinRecentMessages:      6,
		SummaryThresholdTokens: 30000,
		MaxPinnedTokens:        4000,
		MaxSummaryChunks:       20,
		MaxHistoryLoad:         200,
	}
}
