package handlers

import (
	"errors"
	"net/http"
	"time"

	"priorauth-backend/models"
	"priorauth-backend/repository"
	"priorauth-backend/scoring"
	"priorauth-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EvaluationHandler handles HTTP requests for case evaluations
type EvaluationHandler struct {
	matching       *service.MatchingService
	quality        *service.QualityService
	evaluationRepo *repository.EvaluationRepository
}

// NewEvaluationHandler creates a new evaluation handler
func NewEvaluationHandler(
	matching *service.MatchingService,
	quality *service.QualityService,
	evaluationRepo *repository.EvaluationRepository,
) *EvaluationHandler {
	return &EvaluationHandler{
		matching:       matching,
		quality:        quality,
		evaluationRepo: evaluationRepo,
	}
}

// EvidencePayload is the wire form of one evidence item
type EvidencePayload struct {
	ID              string              `json:"id"`
	SourceType      string              `json:"source_type" binding:"required"`
	SourceID        string              `json:"source_id" binding:"required"`
	ClinicalData    models.ClinicalData `json:"clinical_data" binding:"required"`
	RecordedAt      time.Time           `json:"recorded_at" binding:"required"`
	ConfidenceScore *float64            `json:"confidence_score"`
	Metadata        models.Metadata     `json:"metadata"`
}

// ToModel converts the payload to a model, assigning an id when the
// caller did not supply one
func (p *EvidencePayload) ToModel() (*models.ClinicalEvidence, error) {
	id := uuid.New()
	if p.ID != "" {
		parsed, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = make(models.Metadata)
	}

	return &models.ClinicalEvidence{
		ID:              id,
		SourceType:      models.EvidenceSourceType(p.SourceType),
		SourceID:        p.SourceID,
		ClinicalData:    p.ClinicalData,
		RecordedAt:      p.RecordedAt,
		ConfidenceScore: p.ConfidenceScore,
		Metadata:        metadata,
	}, nil
}

// CriterionPayload is the wire form of one policy criterion
type CriterionPayload struct {
	ID              string                 `json:"id"`
	CriteriaType    string                 `json:"criteria_type" binding:"required"`
	Description     string                 `json:"description" binding:"required"`
	Requirements    models.Requirements    `json:"requirements" binding:"required"`
	Mandatory       *bool                  `json:"mandatory"` // defaults to true
	Weight          float64                `json:"weight"`
	ValidationRules models.ValidationRules `json:"validation_rules"`
}

// ToModel converts the payload to a model
func (p *CriterionPayload) ToModel() (*models.PolicyCriteria, error) {
	id := uuid.New()
	if p.ID != "" {
		parsed, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	mandatory := true
	if p.Mandatory != nil {
		mandatory = *p.Mandatory
	}

	return &models.PolicyCriteria{
		ID:              id,
		CriteriaType:    models.CriteriaType(p.CriteriaType),
		Description:     p.Description,
		Requirements:    p.Requirements,
		Mandatory:       mandatory,
		Weight:          p.Weight,
		ValidationRules: p.ValidationRules,
	}, nil
}

// EvaluateRequest is the request body for POST /api/evaluations
type EvaluateRequest struct {
	RequestID string             `json:"request_id" binding:"required"`
	Evidence  []EvidencePayload  `json:"evidence"`
	Criteria  []CriterionPayload `json:"criteria"`
}

// Evaluate handles POST /api/evaluations
func (h *EvaluationHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST_ID",
				"message": "Invalid request_id format",
			},
		})
		return
	}

	evidence := make([]models.ClinicalEvidence, 0, len(req.Evidence))
	for i := range req.Evidence {
		item, err := req.Evidence[i].ToModel()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_EVIDENCE_ID",
					"message": "Invalid evidence id format",
				},
			})
			return
		}
		evidence = append(evidence, *item)
	}

	criteria := make([]models.PolicyCriteria, 0, len(req.Criteria))
	for i := range req.Criteria {
		criterion, err := req.Criteria[i].ToModel()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CRITERIA_ID",
					"message": "Invalid criteria id format",
				},
			})
			return
		}
		criteria = append(criteria, *criterion)
	}

	result, err := h.matching.MatchCriteria(c.Request.Context(), requestID, evidence, criteria)
	if err != nil {
		status, code := evaluationErrorStatus(err)
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	if h.evaluationRepo != nil {
		if err := h.evaluationRepo.Create(c.Request.Context(), result); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "PERSIST_FAILED",
					"message": err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"result":              result,
			"mandatory_satisfied": service.EvaluateMandatoryCriteria(result.CriteriaScores, criteria),
		},
	})
}

// GetEvaluation handles GET /api/evaluations/:id
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid evaluation id format",
			},
		})
		return
	}

	result, err := h.evaluationRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EVALUATION_NOT_FOUND",
				"message": "Evaluation not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// ListEvaluations handles GET /api/requests/:id/evaluations
func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST_ID",
				"message": "Invalid request id format",
			},
		})
		return
	}

	results, err := h.evaluationRepo.ListByRequestID(c.Request.Context(), requestID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    results,
	})
}

// ScoreQuality handles POST /api/evidence/quality
func (h *EvaluationHandler) ScoreQuality(c *gin.Context) {
	var payload EvidencePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	evidence, err := payload.ToModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_EVIDENCE_ID",
				"message": "Invalid evidence id format",
			},
		})
		return
	}

	quality, err := h.quality.ScoreQuality(c.Request.Context(), evidence)
	if err != nil {
		status, code := evaluationErrorStatus(err)
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quality,
	})
}

// evaluationErrorStatus maps engine errors to HTTP status codes
func evaluationErrorStatus(err error) (int, string) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "VALIDATION_FAILED"
	}

	var scoringErr *scoring.ScoringError
	if errors.As(err, &scoringErr) {
		return http.StatusBadGateway, "SCORING_FAILED"
	}

	return http.StatusInternalServerError, "EVALUATION_FAILED"
}
