// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	TierTier2 = "tier2"
	TierTier3 = "tier3"

	Tier2PanelSize = 5
	Tier3PanelSize = 3
)

func LoadRegistry(path string) (*PanelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg PanelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrDefault loads path, or returns the built-in registry when path is empty.
func LoadOrDefault(path string) (*PanelRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadRegistry(path)
}

// Panel returns the enabled personas of tier in registry order.
func (r *PanelRegistry) Panel(tier string) []Persona {
	var out []Persona
	for _, p := range r.Personas {
		if p.Tier == tier && p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks ids are unique and each panel has its fixed size.
func (r *PanelRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Personas))
	for _, p := range r.Personas {
		if p.ID == "" {
			return fmt.Errorf("persona with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Tier != TierTier2 && p.Tier != TierTier3 {
			return fmt.Errorf("persona %q has unknown tier %q", p.ID, p.Tier)
		}
		if p.Prompt == "" {
			return fmt.Errorf("persona %q has empty prompt", p.ID)
		}
	}
	if n := len(r.Panel(TierTier2)); n != Tier2PanelSize {
		return fmt.Errorf("tier2 panel has %d personas, want %d", n, Tier2PanelSize)
	}
	if n := len(r.Panel(TierTier3)); n != Tier3PanelSize {
		return fmt.Errorf("tier3 panel has %d personas, want %d", n, Tier3PanelSize)
	}
	return nil
}

// Default is the built-in panel registry.
func Default() *PanelRegistry {
	return &PanelRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-01-01",
		Personas: []Persona{
			{
				ID:          "authority-validator",
				DisplayName: "Authority Validator",
				Tier:        TierTier2,
				Description: "Checks that the cited court, reporter and volume exist and fit together.",
				Prompt: "You verify legal authorities. Judge whether the cited court, reporter, volume and page " +
					"form a real, internally consistent citation. Reporters that never published the cited volume, " +
					"or courts that never used the reporter, are strong signs of fabrication.",
			},
			{
				ID:          "ecology-validator",
				DisplayName: "Ecology Validator",
				Tier:        TierTier2,
				Description: "Checks the citation fits its surrounding argument and jurisdiction.",
				Prompt: "You judge whether a citation belongs where it is used. Consider whether the authority's " +
					"jurisdiction, subject matter and holding plausibly support the proposition in the surrounding text.",
			},
			{
				ID:          "temporal-validator",
				DisplayName: "Temporal Validator",
				Tier:        TierTier2,
				Description: "Checks dates, reporter series and court existence line up in time.",
				Prompt: "You check the timeline of a citation. The decision year must fall within the active years " +
					"of the reporter series and the court, and must precede the document that cites it.",
			},
			{
				ID:          "legal-knowledge-validator",
				DisplayName: "Legal Knowledge Validator",
				Tier:        TierTier2,
				Description: "Draws on general legal knowledge of the cited authority.",
				Prompt: "You are an experienced legal researcher. Using what you know of the cited authority, " +
					"judge whether it exists and says what the document claims it says.",
			},
			{
				ID:          "reality-assessment-expert",
				DisplayName: "Reality Assessment Expert",
				Tier:        TierTier2,
				Description: "Looks for the hallmarks of generated, non-existent citations.",
				Prompt: "You specialise in detecting fabricated citations. Look for implausible party names, " +
					"round or repeated page numbers, and formatting that imitates a real citation without matching any.",
			},
			{
				ID:          "risk-assessor",
				DisplayName: "Risk Assessor",
				Tier:        TierTier3,
				Description: "Weighs the consequence of relying on a doubtful citation.",
				Prompt: "A first review panel disagreed about this citation. Assess the risk of relying on it in a " +
					"filing, taking the panel's reasoning into account.",
			},
			{
				ID:          "source-verifier",
				DisplayName: "Source Verifier",
				Tier:        TierTier3,
				Description: "Re-examines each component of the citation against known sources.",
				Prompt: "Re-examine every component of this citation that the first panel questioned and decide " +
					"how much risk remains that it cannot be located.",
			},
			{
				ID:          "senior-reviewer",
				DisplayName: "Senior Reviewer",
				Tier:        TierTier3,
				Description: "Decides whether a human must review the citation.",
				Prompt: "You are the final reviewer. Decide whether this citation is safe, needs a caveat, or " +
					"must go to a human for additional review before the document is filed.",
			},
		},
	}
}
