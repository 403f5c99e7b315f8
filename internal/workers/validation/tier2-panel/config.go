// internal/workers/validation/tier2-panel/config.go
package tier2panel

import (
	"time"

	"citation-validator/pkg/registry"
)

type Config struct {
	PanelSize   int
	CallTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		PanelSize:   registry.Tier2PanelSize,
		CallTimeout: 90 * time.Second,
	}
}
