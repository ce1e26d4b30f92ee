package service

import (
	"log"
	"time"

	"github.com/google/uuid"

	"priorauth-backend/models"
)

// MatchObserver receives engine events at defined points of an
// evaluation. It replaces implicit audit wrapping: the orchestrator
// emits explicitly, and tests substitute a no-op.
type MatchObserver interface {
	MatchStarted(requestID uuid.UUID, evidenceCount, criteriaCount int)
	CriterionEvaluated(requestID, criteriaID uuid.UUID, score float64, cached bool)
	MatchCompleted(requestID uuid.UUID, result *models.MatchResult, elapsed time.Duration)
	MatchFailed(requestID uuid.UUID, err error)
}

// LogObserver emits engine events via the standard logger.
type LogObserver struct{}

// MatchStarted logs the start of an evaluation.
func (LogObserver) MatchStarted(requestID uuid.UUID, evidenceCount, criteriaCount int) {
	log.Printf("match %s: started with %d evidence items, %d criteria", requestID, evidenceCount, criteriaCount)
}

// CriterionEvaluated logs one criterion's completion.
func (LogObserver) CriterionEvaluated(requestID, criteriaID uuid.UUID, score float64, cached bool) {
	log.Printf("match %s: criterion %s scored %.2f (cached=%v)", requestID, criteriaID, score, cached)
}

// MatchCompleted logs the final recommendation.
func (LogObserver) MatchCompleted(requestID uuid.UUID, result *models.MatchResult, elapsed time.Duration) {
	log.Printf("match %s: %s (confidence %.2f, %d missing) in %s",
		requestID, result.Recommendation, result.OverallConfidence, len(result.MissingCriteria), elapsed)
}

// MatchFailed logs an aborted evaluation.
func (LogObserver) MatchFailed(requestID uuid.UUID, err error) {
	log.Printf("match %s: failed: %v", requestID, err)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) MatchStarted(uuid.UUID, int, int)                             {}
func (NopObserver) CriterionEvaluated(uuid.UUID, uuid.UUID, float64, bool)       {}
func (NopObserver) MatchCompleted(uuid.UUID, *models.MatchResult, time.Duration) {}
func (NopObserver) MatchFailed(uuid.UUID, error)                                 {}
