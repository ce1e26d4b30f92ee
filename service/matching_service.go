package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"priorauth-backend/models"
	"priorauth-backend/scoring"
)

// DefaultConcurrency is the number of criteria evaluated simultaneously
// within one request.
const DefaultConcurrency = 5

// MatchingService runs bounded-concurrency evaluation of policy
// criteria against a quality-filtered evidence set and aggregates the
// per-criterion results into a recommendation.
type MatchingService struct {
	scorer      scoring.Client
	quality     *QualityService
	cache       ResultCache
	observer    MatchObserver
	concurrency int
}

// MatchingServiceOption is a functional option for MatchingService
type MatchingServiceOption func(*MatchingService)

// WithScoringClient sets the scoring collaborator
func WithScoringClient(c scoring.Client) MatchingServiceOption {
	return func(s *MatchingService) {
		s.scorer = c
	}
}

// WithQualityService sets the evidence quality scorer
func WithQualityService(q *QualityService) MatchingServiceOption {
	return func(s *MatchingService) {
		s.quality = q
	}
}

// WithResultCache sets the shared per-criterion result cache
func WithResultCache(c ResultCache) MatchingServiceOption {
	return func(s *MatchingService) {
		s.cache = c
	}
}

// WithObserver sets the engine event observer
func WithObserver(o MatchObserver) MatchingServiceOption {
	return func(s *MatchingService) {
		s.observer = o
	}
}

// WithConcurrency sets the criterion evaluation width
func WithConcurrency(n int) MatchingServiceOption {
	return func(s *MatchingService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewMatchingService creates a new matching service
func NewMatchingService(opts ...MatchingServiceOption) *MatchingService {
	s := &MatchingService{
		cache:       NopResultCache{},
		observer:    NopObserver{},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchCriteria evaluates every criterion against the evidence set and
// returns the aggregated result. The first scoring failure cancels all
// in-flight criterion evaluations and is the sole error returned; no
// partial result is ever produced.
func (s *MatchingService) MatchCriteria(
	ctx context.Context,
	requestID uuid.UUID,
	evidence []models.ClinicalEvidence,
	criteria []models.PolicyCriteria,
) (*models.MatchResult, error) {
	if s.scorer == nil {
		return nil, errors.New("scoring client not set")
	}
	if s.quality == nil {
		return nil, errors.New("quality service not set")
	}

	// Validate everything before any collaborator call is made.
	if len(evidence) == 0 {
		return nil, models.NewValidationError("evidence", "must not be empty")
	}
	if len(criteria) == 0 {
		return nil, models.NewValidationError("criteria", "must not be empty")
	}
	for i := range evidence {
		if err := evidence[i].Validate(); err != nil {
			return nil, err
		}
	}
	for i := range criteria {
		if err := criteria[i].Validate(); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	s.observer.MatchStarted(requestID, len(evidence), len(criteria))

	qualifying, err := s.filterByQuality(ctx, evidence)
	if err != nil {
		s.observer.MatchFailed(requestID, err)
		return nil, err
	}

	results := make([]*models.CriterionResult, len(criteria))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range criteria {
		i := i
		criterion := &criteria[i]
		g.Go(func() error {
			result, cached, err := s.evaluateCriterion(gctx, requestID, criterion, qualifying)
			if err != nil {
				return err
			}
			results[i] = result
			s.observer.CriterionEvaluated(requestID, criterion.ID, result.Score, cached)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.observer.MatchFailed(requestID, err)
		return nil, err
	}

	result := Aggregate(requestID, results)
	s.observer.MatchCompleted(requestID, result, time.Since(started))
	return result, nil
}

// filterByQuality scores each evidence item and keeps, in input order,
// the ones that pass the quality gate. All criteria share this filtered
// set.
func (s *MatchingService) filterByQuality(ctx context.Context, evidence []models.ClinicalEvidence) ([]models.ClinicalEvidence, error) {
	qualifying := make([]models.ClinicalEvidence, 0, len(evidence))
	for i := range evidence {
		quality, err := s.quality.ScoreQuality(ctx, &evidence[i])
		if err != nil {
			return nil, err
		}
		if quality.Qualifies() {
			qualifying = append(qualifying, evidence[i])
		}
	}
	return qualifying, nil
}

// evaluateCriterion scores one criterion against the qualifying
// evidence, consulting the shared cache first. The bool result reports
// a cache hit.
func (s *MatchingService) evaluateCriterion(
	ctx context.Context,
	requestID uuid.UUID,
	criterion *models.PolicyCriteria,
	qualifying []models.ClinicalEvidence,
) (*models.CriterionResult, bool, error) {
	fp := Fingerprint(criterion.ID, qualifying)
	if cached, ok := s.cache.Get(fp); ok {
		return cached, true, nil
	}

	threshold := criterion.EvidenceThreshold()
	best := 0.0
	matching := make([]uuid.UUID, 0)

	for i := range qualifying {
		score, err := s.scorer.ScoreEvidence(ctx, qualifying[i].ClinicalData, criterion.Requirements, requestID.String())
		if err != nil {
			return nil, false, err
		}
		if score > best {
			best = score
		}
		if score >= threshold {
			matching = append(matching, qualifying[i].ID)
		}
	}

	result := &models.CriterionResult{
		CriteriaID:       criterion.ID,
		Score:            best,
		MatchingEvidence: matching,
	}
	s.cache.Put(fp, result)
	return result, false, nil
}

// Fingerprint derives the cache key for a (criterion, ordered evidence
// set) pair.
func Fingerprint(criteriaID uuid.UUID, evidence []models.ClinicalEvidence) string {
	h := sha256.New()
	h.Write(criteriaID[:])
	for i := range evidence {
		h.Write(evidence[i].ID[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Aggregate combines per-criterion results into a MatchResult. Pure: no
// I/O, no dependence on completion order.
func Aggregate(requestID uuid.UUID, results []*models.CriterionResult) *models.MatchResult {
	criteriaScores := make(models.CriteriaScores, len(results))
	evidenceMapping := make(models.EvidenceMapping, len(results))
	missing := make([]uuid.UUID, 0)

	var sum float64
	for _, result := range results {
		criteriaScores[result.CriteriaID] = result.Score
		evidenceMapping[result.CriteriaID] = result.MatchingEvidence
		sum += result.Score
		if result.Score < models.MatchThreshold {
			missing = append(missing, result.CriteriaID)
		}
	}

	overall := 0.0
	if len(results) > 0 {
		overall = sum / float64(len(results))
	}

	recommendation := models.RecommendationReview
	switch {
	case len(missing) > 0:
		recommendation = models.RecommendationDeny
	case overall >= models.MatchThreshold && allAtLeast(criteriaScores, models.MatchThreshold):
		recommendation = models.RecommendationApprove
	}

	return &models.MatchResult{
		ID:                uuid.New(),
		RequestID:         requestID,
		OverallConfidence: overall,
		CriteriaScores:    criteriaScores,
		EvidenceMapping:   evidenceMapping,
		MissingCriteria:   missing,
		Recommendation:    recommendation,
		EvaluatedAt:       time.Now(),
	}
}

func allAtLeast(scores models.CriteriaScores, threshold float64) bool {
	for _, score := range scores {
		if score < threshold {
			return false
		}
	}
	return true
}

// EvaluateMandatoryCriteria reports whether every mandatory criterion
// reached the stricter 0.85 threshold. Advisory only: the
// recommendation state machine in Aggregate uses the uniform 0.75
// threshold and is not affected by this check.
func EvaluateMandatoryCriteria(scores models.CriteriaScores, criteria []models.PolicyCriteria) bool {
	for i := range criteria {
		if !criteria[i].Mandatory {
			continue
		}
		score, ok := scores[criteria[i].ID]
		if !ok || score < models.MandatoryEvidenceThreshold {
			return false
		}
	}
	return true
}
