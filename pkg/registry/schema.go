// pkg/registry/schema.go
package registry

// PanelRegistry lists the agent personas of each validation panel.
type PanelRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Personas    []Persona `json:"personas"`
}

// Persona is one independent panel member.
type Persona struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Tier        string `json:"tier"` // tier2 | tier3
	Prompt      string `json:"prompt"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// IsEnabled reports whether the persona sits on its panel. Missing means enabled.
func (p Persona) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}
