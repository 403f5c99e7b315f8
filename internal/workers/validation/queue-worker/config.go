// internal/workers/validation/queue-worker/config.go
package queueworker

import (
	"time"

	"citation-validator/internal/common/config"
)

type Config struct {
	Concurrency      int
	BatchSize        int
	BatchDeadline    time.Duration
	MaxContinuations int
	PollInterval     time.Duration
	ItemTimeout      time.Duration
	ContextWindow    int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Concurrency:      cfg.Workers.Concurrency,
		BatchSize:        cfg.Workers.BatchSize,
		BatchDeadline:    config.GetDuration(cfg.Workers.BatchDeadline),
		MaxContinuations: cfg.Workers.MaxContinuations,
		PollInterval:     config.GetDuration(cfg.Workers.PollInterval),
		ItemTimeout:      config.GetDuration(cfg.Workers.ItemTimeout),
		ContextWindow:    cfg.Server.ContextWindow,
	}
}
