package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"priorauth-backend/models"
	"priorauth-backend/scoring"
)

// requiredEntityWeights are the entity-completeness weights. They sum
// to 1.0.
var requiredEntityWeights = map[string]float64{
	"diagnosis":         0.25,
	"medications":       0.25,
	"lab_results":       0.20,
	"treatment_history": 0.15,
	"contraindications": 0.10,
	"allergies":         0.05,
}

// Component weights of the final quality score.
const (
	completenessWeight  = 0.5
	entityQualityWeight = 0.3
	ageWeight           = 0.2
)

// QualityService computes a defensible quality score for one clinical
// evidence item from extracted entities, completeness weights, and
// evidence age.
type QualityService struct {
	scorer scoring.Client
}

// QualityServiceOption is a functional option for QualityService
type QualityServiceOption func(*QualityService)

// QualityWithScoringClient sets the scoring collaborator
func QualityWithScoringClient(c scoring.Client) QualityServiceOption {
	return func(s *QualityService) {
		s.scorer = c
	}
}

// NewQualityService creates a new quality service
func NewQualityService(opts ...QualityServiceOption) *QualityService {
	s := &QualityService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreQuality computes the quality score for one evidence item.
// Validation failures (empty clinical data, stale evidence) surface as
// *models.ValidationError before any collaborator call.
func (s *QualityService) ScoreQuality(ctx context.Context, evidence *models.ClinicalEvidence) (*models.QualityResult, error) {
	if s.scorer == nil {
		return nil, errors.New("scoring client not set")
	}

	if len(evidence.ClinicalData) == 0 {
		return nil, models.NewValidationError("clinical_data", "must not be empty")
	}

	ageDays := evidence.AgeDays(time.Now())
	if ageDays > models.MaxEvidenceAgeDays {
		return nil, models.NewValidationError("recorded_at", "evidence is older than 365 days")
	}

	extraction, err := s.scorer.ExtractEntities(ctx, evidence.ClinicalData)
	if err != nil {
		return nil, err
	}

	completeness, entityScores, missing := completenessScore(extraction)
	age := ageScore(ageDays)
	quality := entityQuality(extraction)

	final := completenessWeight*completeness + entityQualityWeight*quality + ageWeight*age
	final = round2(clip01(final))

	recommendation := models.RecommendationReview
	if final >= models.QualityApproveThreshold {
		recommendation = models.RecommendationApprove
	}

	return &models.QualityResult{
		Score:           final,
		MissingEntities: missing,
		EntityScores:    entityScores,
		AgeScore:        age,
		Recommendation:  recommendation,
	}, nil
}

// completenessScore sums the weighted confidence of each required
// entity that was extracted. Absent entities contribute zero and are
// reported as missing.
func completenessScore(extraction *scoring.EntityExtraction) (float64, map[string]float64, []string) {
	entityScores := make(map[string]float64, len(requiredEntityWeights))
	missing := make([]string, 0)

	var contributions, totalWeight float64
	for name, weight := range requiredEntityWeights {
		totalWeight += weight
		entity, ok := extraction.Entities[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		contribution := entity.Confidence * weight
		entityScores[name] = contribution
		contributions += contribution
	}
	sort.Strings(missing)

	if totalWeight == 0 {
		return 0, entityScores, missing
	}
	return contributions / totalWeight, entityScores, missing
}

// ageScore decays linearly from 1.0 (recorded today or future) to 0.0
// at 365 days.
func ageScore(ageDays int) float64 {
	if ageDays <= 0 {
		return 1.0
	}
	if ageDays >= models.MaxEvidenceAgeDays {
		return 0.0
	}
	return 1.0 - float64(ageDays)/float64(models.MaxEvidenceAgeDays)
}

// entityQuality is the mean of the extraction's raw confidence scores,
// 0 when none were returned.
func entityQuality(extraction *scoring.EntityExtraction) float64 {
	if len(extraction.ConfidenceScores) == 0 {
		return 0
	}
	var sum float64
	for _, confidence := range extraction.ConfidenceScores {
		sum += confidence
	}
	return sum / float64(len(extraction.ConfidenceScores))
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
