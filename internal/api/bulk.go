package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/domain"
	"github.com/approvio/approvio/internal/models"
)

// BulkHandler serves the bulk decision endpoint.
type BulkHandler struct {
	svc domain.BulkApplier
	log *logrus.Logger
}

// NewBulkHandler creates a BulkHandler.
func NewBulkHandler(svc domain.BulkApplier, log *logrus.Logger) *BulkHandler {
	return &BulkHandler{svc: svc, log: log}
}

// Decide handles POST /api/v1/bulk/decision. Partial success is the normal
// case: the response always carries per-item outcomes, never all-or-nothing.
func (h *BulkHandler) Decide(c *gin.Context) {
	var req models.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	result, err := h.svc.ApplyBulk(c.Request.Context(), tenantID, req)
	if err != nil {
		h.log.WithError(err).Error("applying bulk decision")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, result)
}
