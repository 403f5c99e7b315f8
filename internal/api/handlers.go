// internal/api/handlers.go
package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "citation-validator/internal/common/errors"
	"citation-validator/internal/common/events"
	"citation-validator/internal/common/logger"
	"citation-validator/internal/models"
	"citation-validator/internal/service"
)

// ValidationHandler serves the validation job API.
type ValidationHandler struct {
	svc          *service.ValidationService
	subscriber   events.Subscriber
	pollInterval time.Duration
	logger       logger.Logger
}

func NewValidationHandler(svc *service.ValidationService, subscriber events.Subscriber, pollInterval time.Duration, log logger.Logger) *ValidationHandler {
	if subscriber == nil {
		subscriber = events.NopBus{}
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &ValidationHandler{
		svc:          svc,
		subscriber:   subscriber,
		pollInterval: pollInterval,
		logger:       logger.Component(log, "api"),
	}
}

// StartValidation handles POST /api/checks/:checkId/validate
func (h *ValidationHandler) StartValidation(c *gin.Context) {
	var opts service.StartOptions
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	job, err := h.svc.StartValidation(c.Request.Context(), c.Param("checkId"), opts)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"jobId":  job.ID,
			"status": job.Status,
		},
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *ValidationHandler) GetJobStatus(c *gin.Context) {
	view, err := h.svc.GetJobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// RetryFailed handles POST /api/jobs/:id/retry
func (h *ValidationHandler) RetryFailed(c *gin.Context) {
	n, err := h.svc.RetryFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"requeued": n}})
}

// ListItems handles GET /api/jobs/:id/items
func (h *ValidationHandler) ListItems(c *gin.Context) {
	items, err := h.svc.ListItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}

// CreateDocument handles POST /api/documents
func (h *ValidationHandler) CreateDocument(c *gin.Context) {
	var doc models.CitationDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if err := h.svc.SaveDocument(c.Request.Context(), &doc); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": doc})
}

// GetDocument handles GET /api/documents/:id
func (h *ValidationHandler) GetDocument(c *gin.Context) {
	doc, err := h.svc.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
}

// CreateDocumentVersion handles POST /api/documents/:id/versions
func (h *ValidationHandler) CreateDocumentVersion(c *gin.Context) {
	doc, err := h.svc.CreateDocumentVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": doc})
}

func (h *ValidationHandler) fail(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"path":      c.FullPath(),
			"errorCode": string(stdErr.Code),
			"error":     stdErr.Error(),
		})
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    stdErr.Code,
			"message": stdErr.Message,
			"details": stdErr.Details,
		},
	})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeProviderNotConfigured:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeDocumentNotFound, apperrors.ErrCodeJobNotFound, apperrors.ErrCodeCitationNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeItemNotClaimed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
