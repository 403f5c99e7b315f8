package consensus

import (
	"fmt"
	"strings"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/models"
)

// riskOrder lists risk labels from most to least conservative.
var riskOrder = []models.RiskLevel{
	models.RiskNeedsAdditionalReview,
	models.RiskModerate,
	models.RiskLow,
}

// Tier3 aggregates exactly n escalation verdicts by majority vote. Ties go to
// the more conservative label.
func Tier3(verdicts []models.Tier3AgentVerdict, n int) (models.Tier3Consensus, error) {
	if len(verdicts) != n || n == 0 {
		return models.Tier3Consensus{}, apperrors.NewPartialPanelError(string(models.Tier3), len(verdicts), n)
	}

	votes := make(map[models.RiskLevel]int, len(riskOrder))
	for _, v := range verdicts {
		if v.RiskLevel.Severity() == 0 {
			return models.Tier3Consensus{}, apperrors.NewInvalidVerdictError(v.AgentID,
				fmt.Sprintf("unknown risk level %q", v.RiskLevel))
		}
		votes[v.RiskLevel]++
	}

	final, count := riskOrder[0], -1
	for _, level := range riskOrder {
		if votes[level] > count {
			final, count = level, votes[level]
		}
	}

	agreement := models.AgreementSplit
	switch {
	case count == n:
		agreement = models.AgreementUnanimous
	case count*2 > n:
		agreement = models.AgreementMajority
	}

	return models.Tier3Consensus{
		AgreementLevel:  agreement,
		Votes:           votes,
		FinalRiskLevel:  final,
		ConfidenceScore: float64(count) / float64(n),
		Reasoning:       tier3Reasoning(verdicts, final, count),
	}, nil
}

func tier3Reasoning(verdicts []models.Tier3AgentVerdict, final models.RiskLevel, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d agents assessed %s", count, len(verdicts), final)
	var parts []string
	for _, v := range verdicts {
		if v.RiskLevel == final && v.Reasoning != "" {
			name := v.AgentName
			if name == "" {
				name = v.AgentID
			}
			parts = append(parts, fmt.Sprintf("%s: %s", name, v.Reasoning))
		}
	}
	if len(parts) > 0 {
		b.WriteString(". ")
		b.WriteString(strings.Join(parts, " | "))
	}
	return b.String()
}
