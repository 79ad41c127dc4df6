package config

import "time"

// SchedulerConfig configures the job scheduler.
type SchedulerConfig struct {
	StorePath    string        `yaml:"store_path"`
	TickInterval time.Duration `yaml:"tick_interval"`
	WorkerCount  int           `yaml:"worker_count"`
}

// DefaultSchedulerConfig returns sensible defaults (one-minute tick).
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		StorePath:    "~/.companionbot/cron-jobs.json",
		TickInterval: time.Minute,
		WorkerCount:  4,
	}
}
