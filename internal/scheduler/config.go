package scheduler

import (
	"time"

	"github.com/smallbiznis/taskboard/internal/config"
)

const (
	JobDispatchOutbox = "dispatch_outbox"
	JobDueReminders   = "due_reminders"
	JobPurgeSessions  = "purge_sessions"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval       time.Duration
	BatchSize         int
	SessionPurgeBatch int
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       30 * time.Second,
		BatchSize:         50,
		SessionPurgeBatch: 500,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.RunInterval,
		BatchSize:   cfg.Scheduler.BatchSize,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.SessionPurgeBatch <= 0 {
		c.SessionPurgeBatch = defaults.SessionPurgeBatch
	}
	return c
}
