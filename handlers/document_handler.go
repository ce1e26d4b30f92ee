package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"priorauth-backend/models"
	"priorauth-backend/repository"
	"priorauth-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles HTTP requests for evidence source documents
type DocumentHandler struct {
	documentRepo     *repository.DocumentRepository
	evidenceRepo     *repository.EvidenceRepository
	storage          storage.Storage
	maxDocumentSize  int64
	allowedMimeTypes map[string]bool
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documentRepo *repository.DocumentRepository, evidenceRepo *repository.EvidenceRepository, storage storage.Storage) *DocumentHandler {
	return &DocumentHandler{
		documentRepo:    documentRepo,
		evidenceRepo:    evidenceRepo,
		storage:         storage,
		maxDocumentSize: 25 * 1024 * 1024, // 25MB, scanned records get large
		allowedMimeTypes: map[string]bool{
			"application/pdf":  true,
			"text/plain":       true,
			"application/xml":  true, // C-CDA exports
			"application/json": true, // FHIR bundles
			"image/tiff":       true, // faxed records
		},
	}
}

// UploadDocument handles POST /api/documents/upload
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var evidenceID *uuid.UUID
	evidenceIDStr := c.PostForm("evidence_id")
	if evidenceIDStr != "" {
		eid, err := uuid.Parse(evidenceIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_EVIDENCE_ID",
					"message": "Invalid evidence_id format",
				},
			})
			return
		}

		// The document must attach to an existing evidence record
		if _, err := h.evidenceRepo.GetByID(c.Request.Context(), eid); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "EVIDENCE_NOT_FOUND",
					"message": "Evidence not found",
				},
			})
			return
		}
		evidenceID = &eid
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "File is required",
			},
		})
		return
	}

	if fileHeader.Size > h.maxDocumentSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_TOO_LARGE",
				"message": fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxDocumentSize),
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_OPEN_ERROR",
				"message": err.Error(),
			},
		})
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = inferMimeType(fileHeader.Filename)
	}

	if !h.allowedMimeTypes[mimeType] && !strings.HasPrefix(mimeType, "text/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNSUPPORTED_FILE_TYPE",
				"message": fmt.Sprintf("File type %s is not supported", mimeType),
			},
		})
		return
	}

	documentID := uuid.New()
	storagePath, err := h.storage.Upload(c.Request.Context(), documentID, fileHeader.Filename, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UPLOAD_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	doc := &models.EvidenceDocument{
		EvidenceID:  evidenceID,
		Filename:    fileHeader.Filename,
		MimeType:    mimeType,
		Size:        fileHeader.Size,
		StoragePath: storagePath,
	}

	if err := h.documentRepo.Create(c.Request.Context(), doc); err != nil {
		// Best effort cleanup of the orphaned object
		_ = h.storage.Delete(c.Request.Context(), storagePath)
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
		"data":    doc,
	})
}

// GetDocument handles GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid document id format",
			},
		})
		return
	}

	doc, err := h.documentRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOCUMENT_NOT_FOUND",
				"message": "Document not found",
			},
		})
		return
	}

	reader, err := h.storage.Download(c.Request.Context(), doc.StoragePath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOWNLOAD_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.DataFromReader(http.StatusOK, doc.Size, doc.MimeType, reader, nil)
}

// inferMimeType guesses a MIME type from filename extension
func inferMimeType(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain"
	case strings.HasSuffix(lower, ".xml"):
		return "application/xml"
	case strings.HasSuffix(lower, ".json"):
		return "application/json"
	case strings.HasSuffix(lower, ".tif"), strings.HasSuffix(lower, ".tiff"):
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
