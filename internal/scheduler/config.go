package scheduler

import (
	"time"

	"github.com/smallbiznis/lexdraft/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval      time.Duration
	BatchSize        int
	StaleGenerating  time.Duration
	SessionRetention time.Duration
	EnabledJobs      []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      time.Minute,
		BatchSize:        50,
		StaleGenerating:  10 * time.Minute,
		SessionRetention: 30 * 24 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:      time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second,
		StaleGenerating:  time.Duration(cfg.Scheduler.StaleGeneratingMinutes) * time.Minute,
		SessionRetention: time.Duration(cfg.Scheduler.SessionRetentionDays) * 24 * time.Hour,
		EnabledJobs:      cfg.Scheduler.EnabledJobs,
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
	if c.StaleGenerating <= 0 {
		c.StaleGenerating = defaults.StaleGenerating
	}
	if c.SessionRetention <= 0 {
		c.SessionRetention = defaults.SessionRetention
	}
	return c
}
