package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-backend/models"
	"priorauth-backend/scoring"
)

func criterionWithKey(key string, mandatory bool) models.PolicyCriteria {
	return models.PolicyCriteria{
		ID:           uuid.New(),
		CriteriaType: models.CriteriaClinical,
		Description:  "criterion " + key,
		Requirements: models.Requirements{"key": models.StringValue(key)},
		Mandatory:    mandatory,
		Weight:       1.0,
	}
}

// scoresByKey scripts ScoreEvidence to return a fixed score per
// criterion, keyed by the "key" requirement.
func scoresByKey(scores map[string]float64) func(models.ClinicalData, models.Requirements) (float64, error) {
	return func(_ models.ClinicalData, requirements models.Requirements) (float64, error) {
		key := requirements["key"].Str
		score, ok := scores[key]
		if !ok {
			return 0, errors.New("unscripted criterion key: " + key)
		}
		return score, nil
	}
}

func newTestMatcher(mock *mockScoringClient, opts ...MatchingServiceOption) *MatchingService {
	quality := NewQualityService(QualityWithScoringClient(mock))
	base := []MatchingServiceOption{
		WithScoringClient(mock),
		WithQualityService(quality),
	}
	return NewMatchingService(append(base, opts...)...)
}

func TestMatchCriteriaApprove(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	c1 := criterionWithKey("c1", true)
	c2 := criterionWithKey("c2", false)
	mock.scoreFn = scoresByKey(map[string]float64{"c1": 0.90, "c2": 0.88})

	svc := newTestMatcher(mock)
	evidence := []models.ClinicalEvidence{freshEvidence(time.Now())}

	result, err := svc.MatchCriteria(context.Background(), uuid.New(), evidence, []models.PolicyCriteria{c1, c2})
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationApprove, result.Recommendation)
	assert.InDelta(t, 0.89, result.OverallConfidence, 1e-9)
	assert.Empty(t, result.MissingCriteria)
	assert.InDelta(t, 0.90, result.CriteriaScores[c1.ID], 1e-9)
	assert.InDelta(t, 0.88, result.CriteriaScores[c2.ID], 1e-9)
	assert.NoError(t, result.Validate())
}

func TestMatchCriteriaDenyOnMissing(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	c1 := criterionWithKey("c1", true)
	c2 := criterionWithKey("c2", false)
	mock.scoreFn = scoresByKey(map[string]float64{"c1": 0.95, "c2": 0.74})

	svc := newTestMatcher(mock)
	evidence := []models.ClinicalEvidence{freshEvidence(time.Now())}

	result, err := svc.MatchCriteria(context.Background(), uuid.New(), evidence, []models.PolicyCriteria{c1, c2})
	require.NoError(t, err)

	// One criterion below 0.75 forces DENY even though the mean is high.
	assert.Equal(t, models.RecommendationDeny, result.Recommendation)
	assert.InDelta(t, 0.845, result.OverallConfidence, 1e-9)
	assert.Equal(t, []uuid.UUID{c2.ID}, result.MissingCriteria)
	assert.NoError(t, result.Validate())
}

func TestMatchCriteriaThresholdAsymmetry(t *testing.T) {
	// A 0.80 score satisfies a non-mandatory criterion's evidence
	// threshold but not a mandatory one's. Neither criterion is missing.
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	mandatory := criterionWithKey("m", true)
	optional := criterionWithKey("o", false)
	mock.scoreFn = scoresByKey(map[string]float64{"m": 0.80, "o": 0.80})

	svc := newTestMatcher(mock)
	evidence := []models.ClinicalEvidence{freshEvidence(time.Now())}

	result, err := svc.MatchCriteria(context.Background(), uuid.New(), evidence, []models.PolicyCriteria{mandatory, optional})
	require.NoError(t, err)

	assert.Empty(t, result.MissingCriteria)
	assert.Empty(t, result.EvidenceMapping[mandatory.ID])
	assert.Equal(t, []uuid.UUID{evidence[0].ID}, result.EvidenceMapping[optional.ID])
	assert.Equal(t, models.RecommendationApprove, result.Recommendation)
}

func TestMatchCriteriaRejectsEmptyInput(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	svc := newTestMatcher(mock)

	evidence := []models.ClinicalEvidence{freshEvidence(time.Now())}
	criteria := []models.PolicyCriteria{criterionWithKey("c1", true)}

	_, err := svc.MatchCriteria(context.Background(), uuid.New(), nil, criteria)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "evidence", verr.Field)

	_, err = svc.MatchCriteria(context.Background(), uuid.New(), evidence, nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "criteria", verr.Field)

	// Rejection happens before any collaborator traffic.
	assert.Equal(t, int64(0), mock.extractions.Load())
	assert.Equal(t, int64(0), mock.scores.Load())
}

func TestMatchCriteriaRejectsInvalidItems(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	svc := newTestMatcher(mock)

	t.Run("invalid evidence", func(t *testing.T) {
		bad := freshEvidence(time.Now())
		bad.SourceType = "FAX"

		_, err := svc.MatchCriteria(context.Background(), uuid.New(),
			[]models.ClinicalEvidence{bad},
			[]models.PolicyCriteria{criterionWithKey("c1", true)})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "source_type", verr.Field)
	})

	t.Run("invalid criterion", func(t *testing.T) {
		bad := criterionWithKey("c1", true)
		bad.Requirements = models.Requirements{}

		_, err := svc.MatchCriteria(context.Background(), uuid.New(),
			[]models.ClinicalEvidence{freshEvidence(time.Now())},
			[]models.PolicyCriteria{bad})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "requirements", verr.Field)
	})

	assert.Equal(t, int64(0), mock.scores.Load())
}

func TestMatchCriteriaQualityGate(t *testing.T) {
	// Two evidence items: one rich enough to pass the quality gate, one
	// nearly empty. Only the qualifying item is scored against criteria.
	rich := freshEvidence(time.Now())
	poor := freshEvidence(time.Now())
	poor.ClinicalData = models.ClinicalData{"note": models.StringValue("illegible")}

	mock := &mockScoringClient{}
	mock.extractFn = func(clinicalData models.ClinicalData) (*scoring.EntityExtraction, error) {
		if _, ok := clinicalData["note"]; ok {
			return &scoring.EntityExtraction{
				Entities:         map[string]scoring.ExtractedEntity{},
				ConfidenceScores: map[string]float64{},
			}, nil
		}
		return fullExtraction(0.95), nil
	}
	mock.scoreFn = scoresByKey(map[string]float64{"c1": 0.9})

	svc := newTestMatcher(mock)
	c1 := criterionWithKey("c1", false)

	result, err := svc.MatchCriteria(context.Background(), uuid.New(),
		[]models.ClinicalEvidence{rich, poor},
		[]models.PolicyCriteria{c1})
	require.NoError(t, err)

	// One criterion, one qualifying evidence item: exactly one scoring call.
	assert.Equal(t, int64(1), mock.scores.Load())
	assert.Equal(t, []uuid.UUID{rich.ID}, result.EvidenceMapping[c1.ID])
}

func TestMatchCriteriaAllEvidenceExcluded(t *testing.T) {
	// When nothing passes the quality gate every criterion goes
	// unsupported and the case is denied without scoring traffic.
	mock := &mockScoringClient{}
	svc := newTestMatcher(mock)

	c1 := criterionWithKey("c1", true)
	c2 := criterionWithKey("c2", false)

	result, err := svc.MatchCriteria(context.Background(), uuid.New(),
		[]models.ClinicalEvidence{freshEvidence(time.Now())},
		[]models.PolicyCriteria{c1, c2})
	require.NoError(t, err)

	assert.Equal(t, models.RecommendationDeny, result.Recommendation)
	assert.Len(t, result.MissingCriteria, 2)
	assert.Equal(t, int64(0), mock.scores.Load())
}

func TestMatchCriteriaCache(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	c1 := criterionWithKey("c1", true)
	c2 := criterionWithKey("c2", false)
	mock.scoreFn = scoresByKey(map[string]float64{"c1": 0.9, "c2": 0.8})

	cache, err := NewLRUResultCache(64)
	require.NoError(t, err)
	svc := newTestMatcher(mock, WithResultCache(cache))

	evidence := []models.ClinicalEvidence{freshEvidence(time.Now())}
	criteria := []models.PolicyCriteria{c1, c2}
	requestID := uuid.New()

	first, err := svc.MatchCriteria(context.Background(), requestID, evidence, criteria)
	require.NoError(t, err)
	callsAfterFirst := mock.scores.Load()

	second, err := svc.MatchCriteria(context.Background(), requestID, evidence, criteria)
	require.NoError(t, err)

	// Re-evaluating identical inputs hits the cache for every criterion.
	assert.Equal(t, callsAfterFirst, mock.scores.Load())
	assert.Equal(t, first.CriteriaScores, second.CriteriaScores)
	assert.Equal(t, first.EvidenceMapping, second.EvidenceMapping)
	assert.Equal(t, first.Recommendation, second.Recommendation)
}

func TestMatchCriteriaFailFast(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}
	wantErr := &scoring.ScoringError{Op: "evidence scoring", Attempts: 3, Err: errors.New("rate limited")}
	mock.scoreFn = func(_ models.ClinicalData, requirements models.Requirements) (float64, error) {
		if requirements["key"].Str == "c2" {
			return 0, wantErr
		}
		return 0.9, nil
	}

	svc := newTestMatcher(mock)
	criteria := []models.PolicyCriteria{
		criterionWithKey("c1", true),
		criterionWithKey("c2", true),
		criterionWithKey("c3", true),
	}

	result, err := svc.MatchCriteria(context.Background(), uuid.New(),
		[]models.ClinicalEvidence{freshEvidence(time.Now())}, criteria)

	assert.Nil(t, result)
	var serr *scoring.ScoringError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "evidence scoring", serr.Op)
}

func TestMatchCriteriaConcurrencyBound(t *testing.T) {
	mock := &mockScoringClient{extraction: fullExtraction(0.9)}

	var inFlight, peak atomic.Int64
	mock.scoreFn = func(models.ClinicalData, models.Requirements) (float64, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return 0.9, nil
	}

	svc := newTestMatcher(mock)

	criteria := make([]models.PolicyCriteria, 0, 20)
	for i := 0; i < 20; i++ {
		criteria = append(criteria, criterionWithKey("c", false))
	}

	_, err := svc.MatchCriteria(context.Background(), uuid.New(),
		[]models.ClinicalEvidence{freshEvidence(time.Now())}, criteria)
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int64(DefaultConcurrency))
	assert.Equal(t, int64(20), mock.scores.Load())
}

func TestAggregate(t *testing.T) {
	requestID := uuid.New()
	c1 := uuid.New()
	c2 := uuid.New()
	e1 := uuid.New()

	t.Run("no results", func(t *testing.T) {
		result := Aggregate(requestID, nil)
		assert.Equal(t, 0.0, result.OverallConfidence)
		assert.Empty(t, result.MissingCriteria)
		assert.Equal(t, models.RecommendationReview, result.Recommendation)
	})

	t.Run("exact threshold approves", func(t *testing.T) {
		result := Aggregate(requestID, []*models.CriterionResult{
			{CriteriaID: c1, Score: 0.75, MatchingEvidence: []uuid.UUID{e1}},
			{CriteriaID: c2, Score: 0.75, MatchingEvidence: []uuid.UUID{e1}},
		})
		assert.Equal(t, models.RecommendationApprove, result.Recommendation)
		assert.InDelta(t, 0.75, result.OverallConfidence, 1e-9)
	})

	t.Run("just below threshold denies", func(t *testing.T) {
		result := Aggregate(requestID, []*models.CriterionResult{
			{CriteriaID: c1, Score: 0.7499, MatchingEvidence: []uuid.UUID{}},
		})
		assert.Equal(t, models.RecommendationDeny, result.Recommendation)
		assert.Equal(t, []uuid.UUID{c1}, result.MissingCriteria)
	})

	t.Run("order independent", func(t *testing.T) {
		forward := Aggregate(requestID, []*models.CriterionResult{
			{CriteriaID: c1, Score: 0.9, MatchingEvidence: []uuid.UUID{e1}},
			{CriteriaID: c2, Score: 0.8, MatchingEvidence: []uuid.UUID{}},
		})
		reverse := Aggregate(requestID, []*models.CriterionResult{
			{CriteriaID: c2, Score: 0.8, MatchingEvidence: []uuid.UUID{}},
			{CriteriaID: c1, Score: 0.9, MatchingEvidence: []uuid.UUID{e1}},
		})
		assert.Equal(t, forward.CriteriaScores, reverse.CriteriaScores)
		assert.Equal(t, forward.Recommendation, reverse.Recommendation)
		assert.InDelta(t, forward.OverallConfidence, reverse.OverallConfidence, 1e-9)
	})
}

func TestEvaluateMandatoryCriteria(t *testing.T) {
	mandatory := criterionWithKey("m", true)
	optional := criterionWithKey("o", false)
	criteria := []models.PolicyCriteria{mandatory, optional}

	tests := []struct {
		name   string
		scores models.CriteriaScores
		want   bool
	}{
		{
			name:   "mandatory at threshold",
			scores: models.CriteriaScores{mandatory.ID: 0.85, optional.ID: 0.10},
			want:   true,
		},
		{
			name:   "mandatory below threshold",
			scores: models.CriteriaScores{mandatory.ID: 0.84, optional.ID: 0.99},
			want:   false,
		},
		{
			name:   "mandatory unscored",
			scores: models.CriteriaScores{optional.ID: 0.99},
			want:   false,
		},
		{
			name:   "no mandatory criteria",
			scores: models.CriteriaScores{},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := criteria
			if tt.name == "no mandatory criteria" {
				cs = []models.PolicyCriteria{optional}
			}
			assert.Equal(t, tt.want, EvaluateMandatoryCriteria(tt.scores, cs))
		})
	}
}

func TestFingerprint(t *testing.T) {
	criterionID := uuid.New()
	e1 := freshEvidence(time.Now())
	e2 := freshEvidence(time.Now())

	same := Fingerprint(criterionID, []models.ClinicalEvidence{e1, e2})
	assert.Equal(t, same, Fingerprint(criterionID, []models.ClinicalEvidence{e1, e2}))

	// Order, membership, and criterion identity all change the key.
	assert.NotEqual(t, same, Fingerprint(criterionID, []models.ClinicalEvidence{e2, e1}))
	assert.NotEqual(t, same, Fingerprint(criterionID, []models.ClinicalEvidence{e1}))
	assert.NotEqual(t, same, Fingerprint(uuid.New(), []models.ClinicalEvidence{e1, e2}))
}
