package models

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceSourceType identifies where an evidence item came from.
type EvidenceSourceType string

const (
	SourceEMR      EvidenceSourceType = "EMR"
	SourceDocument EvidenceSourceType = "DOCUMENT"
	SourceManual   EvidenceSourceType = "MANUAL"
)

// MaxEvidenceAgeDays is the validity window for clinical evidence.
// Older items are rejected at creation time; within the window, age
// only degrades the quality score.
const MaxEvidenceAgeDays = 365

// MinPreScoredConfidence is the floor for evidence that arrives with a
// confidence score already attached. A pre-scored item below this is
// invalid input, not merely low quality.
const MinPreScoredConfidence = 0.75

// ClinicalEvidence is one unit of clinical documentation supporting a
// prior-authorization case. Immutable for the duration of an evaluation.
type ClinicalEvidence struct {
	ID              uuid.UUID          `json:"id"`
	SourceType      EvidenceSourceType `json:"source_type"`
	SourceID        string             `json:"source_id"`
	ClinicalData    ClinicalData       `json:"clinical_data"`
	RecordedAt      time.Time          `json:"recorded_at"`
	ConfidenceScore *float64           `json:"confidence_score,omitempty"`
	Metadata        Metadata           `json:"metadata,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// AgeDays returns the whole days elapsed since the evidence was
// recorded, never negative (future-dated evidence counts as fresh).
func (e *ClinicalEvidence) AgeDays(now time.Time) int {
	if !e.RecordedAt.Before(now) {
		return 0
	}
	return int(now.Sub(e.RecordedAt).Hours() / 24)
}

// Validate checks the creation-time invariants of an evidence item.
func (e *ClinicalEvidence) Validate() error {
	switch e.SourceType {
	case SourceEMR, SourceDocument, SourceManual:
	default:
		return NewValidationError("source_type", "must be one of EMR, DOCUMENT, MANUAL")
	}

	if len(e.SourceID) == 0 || len(e.SourceID) > 255 {
		return NewValidationError("source_id", "must be 1-255 characters")
	}

	if len(e.ClinicalData) == 0 {
		return NewValidationError("clinical_data", "must not be empty")
	}

	if e.AgeDays(time.Now()) > MaxEvidenceAgeDays {
		return NewValidationError("recorded_at", "evidence is older than 365 days")
	}

	if e.ConfidenceScore != nil {
		cs := *e.ConfidenceScore
		if cs < 0 || cs > 1 {
			return NewValidationError("confidence_score", "must be in [0,1]")
		}
		if cs < MinPreScoredConfidence {
			return NewValidationError("confidence_score", "pre-scored evidence below 0.75 is invalid")
		}
	}

	return nil
}
