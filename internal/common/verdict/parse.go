package verdict

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/validation"
	"citation-validator/internal/models"
	"citation-validator/pkg/registry"
)

type tier2Response struct {
	Score     *int             `json:"score"`
	Verdict   *models.Category `json:"verdict"`
	Reasoning string           `json:"reasoning"`
}

type tier3Response struct {
	RiskLevel models.RiskLevel `json:"risk_level"`
	Reasoning string           `json:"reasoning"`
}

// ParseTier2 turns a judgment into an AgentVerdict. Both the numeric score and
// the legacy categorical verdict are accepted; anything else is INVALID_VERDICT.
func ParseTier2(p registry.Persona, j *Judgment, at time.Time) (models.AgentVerdict, error) {
	doc, err := extractJSON(p.ID, j)
	if err != nil {
		return models.AgentVerdict{}, err
	}
	if err := checkSchema(p.ID, doc, validation.ValidateTier2Response); err != nil {
		return models.AgentVerdict{}, err
	}

	var resp tier2Response
	if err := json.Unmarshal(doc, &resp); err != nil {
		return models.AgentVerdict{}, apperrors.NewInvalidVerdictError(p.ID, err.Error())
	}

	v := models.AgentVerdict{
		AgentID:   p.ID,
		AgentName: p.DisplayName,
		Reasoning: strings.TrimSpace(resp.Reasoning),
		Timestamp: at,
		Model:     j.Model,
		Usage:     j.Usage,
	}
	if resp.Score != nil {
		v.Assessment = models.Scored{Score: *resp.Score}
	} else {
		v.Assessment = models.Categorical{Verdict: *resp.Verdict}
	}
	if err := models.ValidateAssessment(v.Assessment); err != nil {
		return models.AgentVerdict{}, apperrors.NewInvalidVerdictError(p.ID, err.Error())
	}
	return v, nil
}

// ParseTier3 turns a judgment into a Tier3AgentVerdict.
func ParseTier3(p registry.Persona, j *Judgment, at time.Time) (models.Tier3AgentVerdict, error) {
	doc, err := extractJSON(p.ID, j)
	if err != nil {
		return models.Tier3AgentVerdict{}, err
	}
	if err := checkSchema(p.ID, doc, validation.ValidateTier3Response); err != nil {
		return models.Tier3AgentVerdict{}, err
	}

	var resp tier3Response
	if err := json.Unmarshal(doc, &resp); err != nil {
		return models.Tier3AgentVerdict{}, apperrors.NewInvalidVerdictError(p.ID, err.Error())
	}
	return models.Tier3AgentVerdict{
		AgentID:   p.ID,
		AgentName: p.DisplayName,
		RiskLevel: resp.RiskLevel,
		Reasoning: strings.TrimSpace(resp.Reasoning),
		Timestamp: at,
		Model:     j.Model,
		Usage:     j.Usage,
	}, nil
}

func checkSchema(agentID string, doc []byte, fn func([]byte) (*validation.ValidationResult, error)) error {
	res, err := fn(doc)
	if err != nil {
		return apperrors.NewInvalidVerdictError(agentID, err.Error())
	}
	if !res.Valid {
		return apperrors.NewInvalidVerdictError(agentID, strings.Join(res.GetErrorMessages(), "; "))
	}
	return nil
}

// extractJSON pulls the outermost JSON object out of the model output,
// tolerating markdown fences and surrounding prose.
func extractJSON(agentID string, j *Judgment) ([]byte, error) {
	if j == nil {
		return nil, apperrors.NewInvalidVerdictError(agentID, "empty judgment")
	}
	s := strings.TrimSpace(j.Content)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, apperrors.NewInvalidVerdictError(agentID, "response contains no JSON object")
	}
	return []byte(s[start : end+1]), nil
}
