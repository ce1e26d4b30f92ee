package models

// Recommendation is a triage outcome. Quality scoring uses the
// APPROVE/REVIEW subset; case-level aggregation uses all three.
type Recommendation string

const (
	RecommendationApprove Recommendation = "APPROVE"
	RecommendationDeny    Recommendation = "DENY"
	RecommendationReview  Recommendation = "REVIEW"
)

// QualityGate is the minimum quality score an evidence item needs to be
// considered during criteria matching.
const QualityGate = 0.75

// QualityApproveThreshold is the evidence-level triage cutoff: at or
// above it the item is recommended APPROVE, below it REVIEW.
const QualityApproveThreshold = 0.70

// QualityResult is the per-evidence quality assessment. Ephemeral; it is
// computed per evaluation and never persisted.
type QualityResult struct {
	Score           float64            `json:"score"`
	MissingEntities []string           `json:"missing_entities"`
	EntityScores    map[string]float64 `json:"entity_scores"`
	AgeScore        float64            `json:"age_score"`
	Recommendation  Recommendation     `json:"recommendation"`
}

// Qualifies reports whether the evidence passes the matching quality
// gate.
func (q *QualityResult) Qualifies() bool {
	return q.Score >= QualityGate
}
