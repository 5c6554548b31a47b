package recommend

import (
	"github.com/helixir/scholar-aggregator/internal/domain"
)

// Score distribution thresholds.
const (
	highScoreThreshold   = 7.0
	mediumScoreThreshold = 4.0
)

// ScoreDistribution buckets recommendation scores.
type ScoreDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Metrics summarizes a recommendation batch.
type Metrics struct {
	TotalRecommendations int               `json:"total_recommendations"`
	AverageScore         float64           `json:"average_score"`
	AverageConfidence    float64           `json:"average_confidence"`
	AverageDiversity     float64           `json:"average_diversity"`
	ScoreDistribution    ScoreDistribution `json:"score_distribution"`
	UserSatisfaction     *float64          `json:"user_satisfaction,omitempty"`
}

// Evaluate computes batch metrics. feedback, when non-empty, marks which
// recommendations the user accepted and yields UserSatisfaction.
func Evaluate(recs []Recommendation, feedback []bool) (*Metrics, error) {
	if len(recs) == 0 {
		return nil, domain.NewValidationError("recommendations", "cannot be empty")
	}

	m := &Metrics{TotalRecommendations: len(recs)}
	for _, r := range recs {
		m.AverageScore += r.Score
		m.AverageConfidence += r.Confidence
		m.AverageDiversity += r.Diversity
		switch {
		case r.Score >= highScoreThreshold:
			m.ScoreDistribution.High++
		case r.Score >= mediumScoreThreshold:
			m.ScoreDistribution.Medium++
		default:
			m.ScoreDistribution.Low++
		}
	}
	n := float64(len(recs))
	m.AverageScore /= n
	m.AverageConfidence /= n
	m.AverageDiversity /= n

	if len(feedback) > 0 {
		accepted := 0
		for _, ok := range feedback {
			if ok {
				accepted++
			}
		}
		satisfaction := float64(accepted) / float64(len(feedback))
		m.UserSatisfaction = &satisfaction
	}
	return m, nil
}
