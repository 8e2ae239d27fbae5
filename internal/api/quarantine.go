package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/domain"
)

// QuarantineHandler exposes parked inbound events for operator inspection.
type QuarantineHandler struct {
	svc domain.QuarantineReader
	log *logrus.Logger
}

// NewQuarantineHandler creates a QuarantineHandler.
func NewQuarantineHandler(svc domain.QuarantineReader, log *logrus.Logger) *QuarantineHandler {
	return &QuarantineHandler{svc: svc, log: log}
}

// List handles GET /api/v1/quarantine.
func (h *QuarantineHandler) List(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	limit := parseInt(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	events, hasMore, err := h.svc.List(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		h.log.WithError(err).Error("listing quarantined events")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     events,
		"has_more": hasMore,
	})
}
