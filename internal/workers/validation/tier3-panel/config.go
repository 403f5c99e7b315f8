// internal/workers/validation/tier3-panel/config.go
package tier3panel

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
		PanelSize:   registry.Tier3PanelSize,
		CallTimeout: 120 * time.Second,
	}
}
