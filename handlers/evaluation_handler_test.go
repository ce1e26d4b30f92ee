package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-backend/models"
	"priorauth-backend/scoring"
	"priorauth-backend/service"
)

// stubScoringClient returns a full extraction and a fixed match score.
type stubScoringClient struct {
	score float64
}

func (s *stubScoringClient) ExtractEntities(ctx context.Context, clinicalData models.ClinicalData) (*scoring.EntityExtraction, error) {
	names := []string{"diagnosis", "medications", "lab_results", "treatment_history", "contraindications", "allergies"}
	entities := make(map[string]scoring.ExtractedEntity, len(names))
	confidences := make(map[string]float64, len(names))
	for _, name := range names {
		entities[name] = scoring.ExtractedEntity{Confidence: 0.95, Value: models.StringValue("present")}
		confidences[name] = 0.95
	}
	return &scoring.EntityExtraction{Entities: entities, ConfidenceScores: confidences}, nil
}

func (s *stubScoringClient) ScoreEvidence(ctx context.Context, clinicalData models.ClinicalData, requirements models.Requirements, requestID string) (float64, error) {
	return s.score, nil
}

func newTestRouter(score float64) *gin.Engine {
	gin.SetMode(gin.TestMode)

	stub := &stubScoringClient{score: score}
	quality := service.NewQualityService(service.QualityWithScoringClient(stub))
	matching := service.NewMatchingService(
		service.WithScoringClient(stub),
		service.WithQualityService(quality),
	)
	handler := NewEvaluationHandler(matching, quality, nil)

	r := gin.New()
	r.POST("/api/evaluations", handler.Evaluate)
	r.POST("/api/evidence/quality", handler.ScoreQuality)
	return r
}

func evaluateBody(t *testing.T) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"request_id": uuid.New().String(),
		"evidence": []map[string]interface{}{
			{
				"source_type":   "EMR",
				"source_id":     "epic-encounter-4417",
				"clinical_data": map[string]interface{}{"diagnosis": "E11.9"},
				"recorded_at":   time.Now().Format(time.RFC3339),
			},
		},
		"criteria": []map[string]interface{}{
			{
				"criteria_type": "CLINICAL",
				"description":   "Documented diagnosis of type 2 diabetes",
				"requirements":  map[string]interface{}{"diagnosis_code": "E11"},
				"mandatory":     true,
				"weight":        1.0,
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestEvaluateEndpoint(t *testing.T) {
	r := newTestRouter(0.9)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", bytes.NewReader(evaluateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Result             models.MatchResult `json:"result"`
			MandatorySatisfied bool               `json:"mandatory_satisfied"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, models.RecommendationApprove, resp.Data.Result.Recommendation)
	assert.InDelta(t, 0.9, resp.Data.Result.OverallConfidence, 1e-9)
	assert.True(t, resp.Data.MandatorySatisfied)
}

func TestEvaluateEndpointValidationFailure(t *testing.T) {
	r := newTestRouter(0.9)

	body, err := json.Marshal(map[string]interface{}{
		"request_id": uuid.New().String(),
		"evidence":   []map[string]interface{}{},
		"criteria":   []map[string]interface{}{},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_FAILED")
}

func TestEvaluateEndpointRejectsBadRequestID(t *testing.T) {
	r := newTestRouter(0.9)

	body := []byte(`{"request_id": "not-a-uuid", "evidence": [], "criteria": []}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/evaluations", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST_ID")
}

func TestScoreQualityEndpoint(t *testing.T) {
	r := newTestRouter(0.9)

	body, err := json.Marshal(map[string]interface{}{
		"source_type":   "EMR",
		"source_id":     "epic-encounter-4417",
		"clinical_data": map[string]interface{}{"diagnosis": "E11.9"},
		"recorded_at":   time.Now().Format(time.RFC3339),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/evidence/quality", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, fmt.Sprintf("body: %s", w.Body.String()))

	var resp struct {
		Success bool                 `json:"success"`
		Data    models.QualityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, models.RecommendationApprove, resp.Data.Recommendation)
	assert.Empty(t, resp.Data.MissingEntities)
}
