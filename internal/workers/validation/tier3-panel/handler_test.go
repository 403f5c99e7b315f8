package tier3panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/common/verdict"
	"citation-validator/internal/models"
	"citation-validator/pkg/registry"
)

func riskProvider(levels map[string]models.RiskLevel) verdict.Provider {
	return verdict.ProviderFunc(func(ctx context.Context, req verdict.Request) (*verdict.Judgment, error) {
		return &verdict.Judgment{
			Content: fmt.Sprintf(`{"risk_level": %q, "reasoning": "%s reviewed it"}`, levels[req.Persona.ID], req.Persona.ID),
			Usage:   models.Usage{TotalTokens: 200, Cost: 0.01},
		}, nil
	})
}

func newTestHandler(t *testing.T, provider verdict.Provider) *Handler {
	t.Helper()
	h, err := NewHandler(&Config{PanelSize: 3, CallTimeout: time.Second}, provider,
		registry.Default().Panel(registry.TierTier3), nil, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h
}

func tier2Split() *models.Tier2Result {
	return &models.Tier2Result{
		Consensus: models.Consensus{
			AgreementLevel: models.AgreementSplit,
			Recommendation: models.RecommendationUncertain,
			Tier3Trigger:   true,
		},
	}
}

func TestEvaluate_MajorityLowRisk(t *testing.T) {
	personas := registry.Default().Panel(registry.TierTier3)
	h := newTestHandler(t, riskProvider(map[string]models.RiskLevel{
		personas[0].ID: models.RiskLow,
		personas[1].ID: models.RiskLow,
		personas[2].ID: models.RiskModerate,
	}))

	res, err := h.Evaluate(context.Background(), models.Citation{ID: "c1", Text: "X v. Y"}, models.CitationContext{}, tier2Split())
	require.NoError(t, err)

	assert.Equal(t, models.RiskLow, res.Consensus.FinalRiskLevel)
	assert.Equal(t, models.AgreementMajority, res.Consensus.AgreementLevel)
	assert.Len(t, res.Verdicts, 3)
	assert.Equal(t, 600, res.Usage.TotalTokens)
	assert.True(t, strings.HasPrefix(res.Consensus.Reasoning, "2 of 3 agents assessed LOW_RISK"))
}

func TestEvaluate_ReceivesTier2Result(t *testing.T) {
	t2 := tier2Split()
	provider := verdict.ProviderFunc(func(ctx context.Context, req verdict.Request) (*verdict.Judgment, error) {
		if req.Tier2 != t2 || req.Tier != models.Tier3 {
			return nil, errors.New("escalation request missing tier2 context")
		}
		return &verdict.Judgment{Content: `{"risk_level": "MODERATE_RISK", "reasoning": "ok"}`}, nil
	})
	h := newTestHandler(t, provider)

	res, err := h.Evaluate(context.Background(), models.Citation{ID: "c1"}, models.CitationContext{}, t2)
	require.NoError(t, err)
	assert.Equal(t, models.AgreementUnanimous, res.Consensus.AgreementLevel)
}

func TestEvaluate_ProviderTimeout(t *testing.T) {
	provider := verdict.ProviderFunc(func(ctx context.Context, req verdict.Request) (*verdict.Judgment, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h, err := NewHandler(&Config{PanelSize: 3, CallTimeout: 10 * time.Millisecond}, provider,
		registry.Default().Panel(registry.TierTier3), nil, logger.NewNoOpLogger())
	require.NoError(t, err)

	_, err = h.Evaluate(context.Background(), models.Citation{ID: "c1"}, models.CitationContext{}, tier2Split())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderTimeout))
}
