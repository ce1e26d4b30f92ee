package handlers

import (
	"net/http"

	"priorauth-backend/models"
	"priorauth-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogHandler handles HTTP requests for the evidence and policy
// criteria catalog
type CatalogHandler struct {
	evidenceRepo *repository.EvidenceRepository
	policyRepo   *repository.PolicyRepository
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(evidenceRepo *repository.EvidenceRepository, policyRepo *repository.PolicyRepository) *CatalogHandler {
	return &CatalogHandler{
		evidenceRepo: evidenceRepo,
		policyRepo:   policyRepo,
	}
}

// CreateEvidence handles POST /api/evidence
func (h *CatalogHandler) CreateEvidence(c *gin.Context) {
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

	if err := evidence.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	if err := h.evidenceRepo.Create(c.Request.Context(), evidence); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    evidence,
	})
}

// GetEvidence handles GET /api/evidence/:id
func (h *CatalogHandler) GetEvidence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid evidence id format",
			},
		})
		return
	}

	evidence, err := h.evidenceRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EVIDENCE_NOT_FOUND",
				"message": "Evidence not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    evidence,
	})
}

// CreateCriterion handles POST /api/criteria
func (h *CatalogHandler) CreateCriterion(c *gin.Context) {
	var payload CriterionPayload
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

	criterion, err := payload.ToModel()
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

	if err := criterion.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	if err := h.policyRepo.Create(c.Request.Context(), criterion); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    criterion,
	})
}

// GetCriterion handles GET /api/criteria/:id
func (h *CatalogHandler) GetCriterion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid criteria id format",
			},
		})
		return
	}

	criterion, err := h.policyRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CRITERIA_NOT_FOUND",
				"message": "Criteria not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    criterion,
	})
}

// ListCriteria handles GET /api/criteria?type=CLINICAL
func (h *CatalogHandler) ListCriteria(c *gin.Context) {
	criteriaType := models.CriteriaType(c.DefaultQuery("type", string(models.CriteriaClinical)))

	criteria, err := h.policyRepo.ListByType(c.Request.Context(), criteriaType)
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
		"data":    criteria,
	})
}
