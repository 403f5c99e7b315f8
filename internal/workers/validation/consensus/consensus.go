// Package consensus aggregates panel verdicts. Every function here is pure:
// the same verdicts and thresholds always give the same result.
package consensus

import (
	"math"

	"citation-validator/internal/common/config"
	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/models"
)

// maxStdDev is the standard deviation of a panel split evenly between the
// ends of the 1..10 scale. It normalises spread into the confidence score.
const maxStdDev = 4.5

// Scores that categorical verdicts take when a panel mixes both formats.
var categoryScore = map[models.Category]int{
	models.CategoryValid:     9,
	models.CategoryUncertain: 5,
	models.CategoryInvalid:   2,
}

type Engine struct {
	cfg config.ConsensusConfig
}

func NewEngine(cfg config.ConsensusConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Tier2 aggregates exactly n verdicts into a Consensus.
func (e *Engine) Tier2(verdicts []models.AgentVerdict, n int) (models.Consensus, error) {
	if len(verdicts) != n || n == 0 {
		return models.Consensus{}, apperrors.NewPartialPanelError(string(models.Tier2), len(verdicts), n)
	}

	scored, categorical := 0, 0
	for _, v := range verdicts {
		if err := models.ValidateAssessment(v.Assessment); err != nil {
			return models.Consensus{}, apperrors.NewInvalidVerdictError(v.AgentID, err.Error())
		}
		switch v.Assessment.(type) {
		case models.Scored:
			scored++
		case models.Categorical:
			categorical++
		}
	}

	var c models.Consensus
	if categorical == n {
		c = e.categorical(verdicts)
	} else {
		c = e.scored(verdicts)
	}
	c.Tier3Trigger = !(c.AgreementLevel == models.AgreementUnanimous &&
		c.Recommendation == models.RecommendationLikelyValid)
	return c, nil
}

// band maps a score to its polarity.
func (e *Engine) band(score int) models.Category {
	switch {
	case score >= e.cfg.ValidMinScore:
		return models.CategoryValid
	case score <= e.cfg.InvalidMaxScore:
		return models.CategoryInvalid
	default:
		return models.CategoryUncertain
	}
}

func (e *Engine) scored(verdicts []models.AgentVerdict) models.Consensus {
	n := len(verdicts)
	scores := make([]int, 0, n)
	for _, v := range verdicts {
		switch a := v.Assessment.(type) {
		case models.Scored:
			scores = append(scores, a.Score)
		case models.Categorical:
			scores = append(scores, categoryScore[a.Verdict])
		}
	}

	stats := Stats(scores)
	votes := map[models.Category]int{}
	for _, s := range scores {
		votes[e.band(s)]++
	}
	largest := largestCount(votes)

	agreement := models.AgreementStrong
	switch {
	case largest == n && stats.StdDev <= e.cfg.UnanimousMaxStdDev:
		agreement = models.AgreementUnanimous
	case votes[models.CategoryValid] >= e.cfg.SplitMinMinority &&
		votes[models.CategoryInvalid] >= e.cfg.SplitMinMinority:
		agreement = models.AgreementSplit
	}

	rec := models.RecommendationUncertain
	switch {
	case votes[models.CategoryInvalid]*2 > n || stats.Mean < e.cfg.HallucinatedMaxMean:
		rec = models.RecommendationLikelyHallucinated
	case votes[models.CategoryValid]*2 > n && votes[models.CategoryInvalid] == 0 &&
		stats.StdDev <= e.cfg.UnanimousMaxStdDev:
		rec = models.RecommendationLikelyValid
	}

	confidence := float64(largest) / float64(n) * (1 - stats.StdDev/maxStdDev)

	return models.Consensus{
		AgreementLevel:  agreement,
		Format:          models.VerdictFormatScored,
		Scores:          &stats,
		Votes:           votes,
		ConfidenceScore: clamp01(confidence),
		Recommendation:  rec,
	}
}

func (e *Engine) categorical(verdicts []models.AgentVerdict) models.Consensus {
	n := len(verdicts)
	votes := map[models.Category]int{}
	for _, v := range verdicts {
		votes[v.Assessment.(models.Categorical).Verdict]++
	}
	largest := largestCount(votes)

	agreement := models.AgreementStrong
	switch {
	case largest == n:
		agreement = models.AgreementUnanimous
	case votes[models.CategoryValid] >= e.cfg.SplitMinMinority &&
		votes[models.CategoryInvalid] >= e.cfg.SplitMinMinority:
		agreement = models.AgreementSplit
	}

	rec := models.RecommendationUncertain
	switch {
	case votes[models.CategoryInvalid]*2 > n:
		rec = models.RecommendationLikelyHallucinated
	case votes[models.CategoryValid]*2 > n && votes[models.CategoryInvalid] == 0:
		rec = models.RecommendationLikelyValid
	}

	return models.Consensus{
		AgreementLevel:  agreement,
		Format:          models.VerdictFormatCategorical,
		Votes:           votes,
		ConfidenceScore: clamp01(float64(largest) / float64(n)),
		Recommendation:  rec,
	}
}

// Stats computes population mean, variance and standard deviation.
func Stats(scores []int) models.ScoreStats {
	if len(scores) == 0 {
		return models.ScoreStats{}
	}
	st := models.ScoreStats{Min: scores[0], Max: scores[0]}
	sum := 0.0
	for _, s := range scores {
		sum += float64(s)
		if s < st.Min {
			st.Min = s
		}
		if s > st.Max {
			st.Max = s
		}
	}
	st.Mean = sum / float64(len(scores))
	for _, s := range scores {
		d := float64(s) - st.Mean
		st.Variance += d * d
	}
	st.Variance /= float64(len(scores))
	st.StdDev = math.Sqrt(st.Variance)
	return st
}

func largestCount[K comparable](votes map[K]int) int {
	max := 0
	for _, c := range votes {
		if c > max {
			max = c
		}
	}
	return max
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
