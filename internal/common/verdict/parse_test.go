package verdict

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/models"
	"citation-validator/pkg/registry"
)

func TestParseTier2(t *testing.T) {
	persona := registry.Persona{ID: "authority-validator", DisplayName: "Authority Validator"}
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		content string
		want    models.Assessment
		wantErr bool
	}{
		{name: "scored", content: `{"score": 3, "reasoning": "volume does not exist"}`, want: models.Scored{Score: 3}},
		{name: "fenced", content: "```json\n{\"score\": 10, \"reasoning\": \"landmark\"}\n```", want: models.Scored{Score: 10}},
		{name: "categorical legacy", content: `{"verdict": "UNCERTAIN", "reasoning": "cannot tell"}`, want: models.Categorical{Verdict: models.CategoryUncertain}},
		{name: "prose only", content: "I think it is real.", wantErr: true},
		{name: "out of range", content: `{"score": 0, "reasoning": "x"}`, wantErr: true},
		{name: "wrong type", content: `{"score": "high", "reasoning": "x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseTier2(persona, &Judgment{Content: tt.content, Model: "m"}, at)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidVerdict))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Assessment)
			assert.Equal(t, "authority-validator", v.AgentID)
			assert.Equal(t, "Authority Validator", v.AgentName)
			assert.Equal(t, at, v.Timestamp)
			assert.Equal(t, "m", v.Model)
		})
	}
}

func TestParseTier3(t *testing.T) {
	persona := registry.Persona{ID: "risk-assessor", DisplayName: "Risk Assessor"}

	v, err := ParseTier3(persona, &Judgment{Content: `{"risk_level": "NEEDS_ADDITIONAL_REVIEW", "reasoning": " check the reporter "}`}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.RiskNeedsAdditionalReview, v.RiskLevel)
	assert.Equal(t, "check the reporter", v.Reasoning)

	_, err = ParseTier3(persona, &Judgment{Content: `{"risk_level": "HIGH_RISK", "reasoning": "x"}`}, time.Now())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidVerdict))

	_, err = ParseTier3(persona, nil, time.Now())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidVerdict))
}

func TestUserPrompt_Tier3IncludesFirstPanel(t *testing.T) {
	req := Request{
		Persona:  registry.Persona{ID: "risk-assessor", Prompt: "Assess risk."},
		Tier:     models.Tier3,
		Citation: models.Citation{Text: "Foo v. Bar, 1 F.4th 1 (2021)", Components: map[string]string{"reporter": "F.4th", "volume": "1"}},
		Context:  models.CitationContext{Preceding: "As held in"},
		Tier2: &models.Tier2Result{
			Consensus: models.Consensus{AgreementLevel: models.AgreementSplit, Recommendation: models.RecommendationUncertain},
			Verdicts: []models.AgentVerdict{
				{AgentName: "Temporal Validator", Assessment: models.Scored{Score: 2}, Reasoning: "too early"},
			},
		},
	}

	prompt := UserPrompt(req)
	assert.Contains(t, prompt, "Foo v. Bar")
	assert.Contains(t, prompt, "reporter: F.4th")
	assert.Contains(t, prompt, "As held in")
	assert.Contains(t, prompt, "agreement split")
	assert.Contains(t, prompt, "Temporal Validator (score 2/10): too early")
	assert.True(t, strings.Contains(SystemPrompt(req), "risk_level"))
}
