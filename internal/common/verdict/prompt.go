package verdict

import (
	"fmt"
	"sort"
	"strings"

	"citation-validator/internal/models"
)

const tier2Instructions = `Respond with a single JSON object and nothing else:
{"score": <integer 1-10, 10 = certainly a real citation, 1 = certainly fabricated>, "reasoning": "<two or three sentences>"}`

const tier3Instructions = `Respond with a single JSON object and nothing else:
{"risk_level": "LOW_RISK" | "MODERATE_RISK" | "NEEDS_ADDITIONAL_REVIEW", "reasoning": "<two or three sentences>"}`

// SystemPrompt is the persona rubric followed by the response format of its tier.
func SystemPrompt(req Request) string {
	instructions := tier2Instructions
	if req.Tier == models.Tier3 {
		instructions = tier3Instructions
	}
	return strings.TrimSpace(req.Persona.Prompt) + "\n\n" + instructions
}

// UserPrompt renders the citation, its context and, for escalations, the
// earlier panel's findings.
func UserPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Citation: %s\n", req.Citation.Text)
	if req.Citation.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", req.Citation.Type)
	}
	if len(req.Citation.Components) > 0 {
		keys := make([]string, 0, len(req.Citation.Components))
		for k := range req.Citation.Components {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Components:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, req.Citation.Components[k])
		}
	}
	if req.Context.Preceding != "" {
		fmt.Fprintf(&b, "\nText before the citation:\n%s\n", req.Context.Preceding)
	}
	if req.Context.Following != "" {
		fmt.Fprintf(&b, "\nText after the citation:\n%s\n", req.Context.Following)
	}

	if req.Tier == models.Tier3 && req.Tier2 != nil {
		c := req.Tier2.Consensus
		fmt.Fprintf(&b, "\nFirst panel: agreement %s, recommendation %s, confidence %.2f\n",
			c.AgreementLevel, c.Recommendation, c.ConfidenceScore)
		for _, v := range req.Tier2.Verdicts {
			fmt.Fprintf(&b, "- %s (%s): %s\n", v.AgentName, describeAssessment(v.Assessment), v.Reasoning)
		}
	}
	return b.String()
}

func describeAssessment(a models.Assessment) string {
	switch v := a.(type) {
	case models.Scored:
		return fmt.Sprintf("score %d/10", v.Score)
	case models.Categorical:
		return string(v.Verdict)
	}
	return "no verdict"
}
