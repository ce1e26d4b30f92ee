package scoring

import (
	"context"
	"fmt"

	"priorauth-backend/models"
)

// ExtractedEntity is one structured clinical entity pulled out of raw
// evidence data.
type ExtractedEntity struct {
	Confidence float64      `json:"confidence"`
	Value      models.Value `json:"value"`
}

// EntityExtraction is the full result of an entity-extraction call.
type EntityExtraction struct {
	Entities         map[string]ExtractedEntity `json:"entities"`
	ConfidenceScores map[string]float64         `json:"confidence_scores"`
}

// Client is the contract to the external scoring collaborator. Both
// operations are I/O-bound and rate-limited; implementations carry
// their own retry budget and surface *ScoringError once it is spent.
type Client interface {
	// ExtractEntities pulls structured clinical entities out of an
	// evidence item's clinical data.
	ExtractEntities(ctx context.Context, clinicalData models.ClinicalData) (*EntityExtraction, error)

	// ScoreEvidence rates how well one evidence item supports one
	// criterion's requirements, returning a confidence in [0,1].
	ScoreEvidence(ctx context.Context, clinicalData models.ClinicalData, requirements models.Requirements, requestID string) (float64, error)
}

// ScoringError reports a collaborator failure after the retry budget
// was exhausted.
type ScoringError struct {
	Op       string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ScoringError) Unwrap() error {
	return e.Err
}
