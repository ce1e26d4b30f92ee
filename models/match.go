package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CriterionResult is the outcome of evaluating one criterion against
// the qualifying evidence set. It is the unit stored in the result
// cache and consumed by aggregation.
type CriterionResult struct {
	CriteriaID       uuid.UUID   `json:"criteria_id"`
	Score            float64     `json:"score"`
	MatchingEvidence []uuid.UUID `json:"matching_evidence"`
}

// CriteriaScores maps a criterion id to the best score any qualifying
// evidence achieved against it.
type CriteriaScores map[uuid.UUID]float64

// Value implements driver.Valuer for JSONB
func (c CriteriaScores) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB
func (c *CriteriaScores) Scan(value interface{}) error {
	if value == nil {
		*c = make(CriteriaScores)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*c = make(CriteriaScores)
		return nil
	}

	if len(bytes) == 0 {
		*c = make(CriteriaScores)
		return nil
	}

	return json.Unmarshal(bytes, c)
}

// EvidenceMapping maps a criterion id to the evidence ids that met its
// threshold, in input order.
type EvidenceMapping map[uuid.UUID][]uuid.UUID

// Value implements driver.Valuer for JSONB
func (e EvidenceMapping) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB
func (e *EvidenceMapping) Scan(value interface{}) error {
	if value == nil {
		*e = make(EvidenceMapping)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*e = make(EvidenceMapping)
		return nil
	}

	if len(bytes) == 0 {
		*e = make(EvidenceMapping)
		return nil
	}

	return json.Unmarshal(bytes, e)
}

// MatchResult is the outcome of one evaluation call: per-criterion
// scores, the evidence that supported each criterion, and the computed
// recommendation. Created once per evaluation and never mutated.
type MatchResult struct {
	ID                uuid.UUID       `json:"id"`
	RequestID         uuid.UUID       `json:"request_id"`
	OverallConfidence float64         `json:"overall_confidence"`
	CriteriaScores    CriteriaScores  `json:"criteria_scores"`
	EvidenceMapping   EvidenceMapping `json:"evidence_mapping"`
	MissingCriteria   []uuid.UUID     `json:"missing_criteria"`
	Recommendation    Recommendation  `json:"recommendation"`
	EvaluatedAt       time.Time       `json:"evaluated_at"`
}

// Validate checks the result invariants: all scores in [0,1], and a
// non-empty missing list forces DENY.
func (m *MatchResult) Validate() error {
	if m.OverallConfidence < 0 || m.OverallConfidence > 1 {
		return NewValidationError("overall_confidence", "must be in [0,1]")
	}

	for id, score := range m.CriteriaScores {
		if score < 0 || score > 1 {
			return NewValidationError("criteria_scores", "score for "+id.String()+" outside [0,1]")
		}
	}

	if len(m.MissingCriteria) > 0 && m.Recommendation != RecommendationDeny {
		return NewValidationError("recommendation", "missing criteria require DENY")
	}

	return nil
}
