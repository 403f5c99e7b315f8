// internal/models/verdict.go
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// VerdictFormat names which Assessment variant a verdict carries.
type VerdictFormat string

const (
	VerdictFormatScored      VerdictFormat = "scored"
	VerdictFormatCategorical VerdictFormat = "categorical"
)

// Category is the legacy categorical verdict vocabulary.
type Category string

const (
	CategoryValid     Category = "VALID"
	CategoryInvalid   Category = "INVALID"
	CategoryUncertain Category = "UNCERTAIN"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryValid, CategoryInvalid, CategoryUncertain:
		return true
	}
	return false
}

const (
	MinScore = 1
	MaxScore = 10
)

// Assessment is the judgment payload of an AgentVerdict: either Scored or
// Categorical. The unexported method seals the set of variants.
type Assessment interface {
	Format() VerdictFormat
	assessment()
}

// Scored is a certainty score in [MinScore, MaxScore]; higher means the
// citation is more likely real.
type Scored struct {
	Score int
}

func (Scored) Format() VerdictFormat { return VerdictFormatScored }
func (Scored) assessment()           {}

// Categorical is the deprecated VALID/INVALID/UNCERTAIN verdict.
type Categorical struct {
	Verdict Category
}

func (Categorical) Format() VerdictFormat { return VerdictFormatCategorical }
func (Categorical) assessment()           {}

// ValidateAssessment checks the variant's value range.
func ValidateAssessment(a Assessment) error {
	switch v := a.(type) {
	case Scored:
		if v.Score < MinScore || v.Score > MaxScore {
			return fmt.Errorf("score %d outside [%d,%d]", v.Score, MinScore, MaxScore)
		}
	case Categorical:
		if !v.Verdict.Valid() {
			return fmt.Errorf("unknown verdict %q", v.Verdict)
		}
	case nil:
		return fmt.Errorf("missing assessment")
	default:
		return fmt.Errorf("unsupported assessment %T", a)
	}
	return nil
}

// Usage is token and cost accounting for one or more provider calls.
type Usage struct {
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	TotalTokens      int     `json:"totalTokens"`
	Cost             float64 `json:"cost"`
}

// Add returns the sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
		Cost:             u.Cost + o.Cost,
	}
}

// AgentVerdict is one Tier 2 panel member's output. Immutable once produced.
type AgentVerdict struct {
	AgentID    string
	AgentName  string
	Assessment Assessment
	Reasoning  string
	Timestamp  time.Time
	Model      string
	Usage      Usage
}

type agentVerdictJSON struct {
	AgentID   string        `json:"agent"`
	AgentName string        `json:"agentName,omitempty"`
	Format    VerdictFormat `json:"format"`
	Score     *int          `json:"score,omitempty"`
	Verdict   *Category     `json:"verdict,omitempty"`
	Reasoning string        `json:"reasoning"`
	Timestamp time.Time     `json:"timestamp"`
	Model     string        `json:"model,omitempty"`
	Usage     Usage         `json:"usage"`
}

func (v AgentVerdict) MarshalJSON() ([]byte, error) {
	out := agentVerdictJSON{
		AgentID:   v.AgentID,
		AgentName: v.AgentName,
		Reasoning: v.Reasoning,
		Timestamp: v.Timestamp,
		Model:     v.Model,
		Usage:     v.Usage,
	}
	switch a := v.Assessment.(type) {
	case Scored:
		out.Format = VerdictFormatScored
		out.Score = &a.Score
	case Categorical:
		out.Format = VerdictFormatCategorical
		out.Verdict = &a.Verdict
	}
	return json.Marshal(out)
}

func (v *AgentVerdict) UnmarshalJSON(data []byte) error {
	var in agentVerdictJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = AgentVerdict{
		AgentID:   in.AgentID,
		AgentName: in.AgentName,
		Reasoning: in.Reasoning,
		Timestamp: in.Timestamp,
		Model:     in.Model,
		Usage:     in.Usage,
	}
	switch {
	case in.Score != nil:
		v.Assessment = Scored{Score: *in.Score}
	case in.Verdict != nil:
		v.Assessment = Categorical{Verdict: *in.Verdict}
	}
	return nil
}

// AgreementLevel classifies how concentrated a panel's verdicts are.
type AgreementLevel string

const (
	AgreementUnanimous AgreementLevel = "unanimous"
	AgreementStrong    AgreementLevel = "strong"
	AgreementSplit     AgreementLevel = "split"
	AgreementMajority  AgreementLevel = "majority"
)

// Recommendation is the Tier 2 outcome label.
type Recommendation string

const (
	RecommendationLikelyValid        Recommendation = "CITATION_LIKELY_VALID"
	RecommendationUncertain          Recommendation = "CITATION_UNCERTAIN"
	RecommendationLikelyHallucinated Recommendation = "CITATION_LIKELY_HALLUCINATED"
)

// ScoreStats summarises a scored panel.
type ScoreStats struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"standardDeviation"`
	Min      int     `json:"min"`
	Max      int     `json:"max"`
}

// Consensus is the derived Tier 2 aggregate.
type Consensus struct {
	AgreementLevel  AgreementLevel   `json:"agreement_level"`
	Format          VerdictFormat    `json:"format"`
	Scores          *ScoreStats      `json:"scores,omitempty"`
	Votes           map[Category]int `json:"votes,omitempty"`
	ConfidenceScore float64          `json:"confidence_score"`
	Recommendation  Recommendation   `json:"recommendation"`
	Tier3Trigger    bool             `json:"tier_3_trigger"`
}

// Tier2Result is what the Tier 2 panel writes into a citation.
type Tier2Result struct {
	Verdicts    []AgentVerdict `json:"agents"`
	Consensus   Consensus      `json:"consensus"`
	Usage       Usage          `json:"usage"`
	CompletedAt time.Time      `json:"completedAt"`
}

// RiskLevel is the Tier 3 rubric vocabulary.
type RiskLevel string

const (
	RiskLow                   RiskLevel = "LOW_RISK"
	RiskModerate              RiskLevel = "MODERATE_RISK"
	RiskNeedsAdditionalReview RiskLevel = "NEEDS_ADDITIONAL_REVIEW"
)

// Severity orders risk levels; higher is more conservative. Unknown levels are 0.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 1
	case RiskModerate:
		return 2
	case RiskNeedsAdditionalReview:
		return 3
	}
	return 0
}

// Tier3AgentVerdict is one escalation panel member's output.
type Tier3AgentVerdict struct {
	AgentID   string    `json:"agent"`
	AgentName string    `json:"agentName,omitempty"`
	RiskLevel RiskLevel `json:"risk_level"`
	Reasoning string    `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model,omitempty"`
	Usage     Usage     `json:"usage"`
}

// Tier3Consensus is the derived escalation aggregate.
type Tier3Consensus struct {
	AgreementLevel  AgreementLevel    `json:"agreement_level"`
	Votes           map[RiskLevel]int `json:"votes"`
	FinalRiskLevel  RiskLevel         `json:"final_risk_level"`
	ConfidenceScore float64           `json:"confidence_score"`
	Reasoning       string            `json:"reasoning"`
}

// Tier3Result is what the escalation panel writes into a citation.
type Tier3Result struct {
	Verdicts    []Tier3AgentVerdict `json:"agents"`
	Consensus   Tier3Consensus      `json:"consensus"`
	Usage       Usage               `json:"usage"`
	CompletedAt time.Time           `json:"completedAt"`
}
