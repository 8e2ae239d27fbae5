// Package api provides HTTP handlers for the approval core.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/domain"
	"github.com/approvio/approvio/internal/models"
)

// ItemHandler serves approval item endpoints.
type ItemHandler struct {
	svc domain.ApprovalService
	log *logrus.Logger
}

// NewItemHandler creates an ItemHandler.
func NewItemHandler(svc domain.ApprovalService, log *logrus.Logger) *ItemHandler {
	return &ItemHandler{svc: svc, log: log}
}

// List handles GET /api/v1/items.
func (h *ItemHandler) List(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	filter := models.ListFilter{
		Type:        c.Query("type"),
		Tier:        models.Tier(c.Query("tier")),
		AssignedTo:  c.Query("assigned_to"),
		OverdueOnly: c.Query("overdue") == "true",
		Limit:       parseInt(c.Query("limit"), 50),
		Offset:      parseOffset(c.Query("offset")),
	}

	items, hasMore, err := h.svc.ListPending(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.log.WithError(err).Error("listing pending items")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     items,
		"has_more": hasMore,
	})
}

// Get handles GET /api/v1/items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	itemID := c.Param("id")
	if err := validatePathID(itemID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	item, err := h.svc.GetItem(c.Request.Context(), tenantID, itemID)
	if err != nil {
		h.respondItemError(c, err, "fetching item")
		return
	}

	c.JSON(http.StatusOK, item)
}

// Decide handles POST /api/v1/items/:id/decision. A repeated decision on a
// resolved item returns 200 with applied=false and the prior resolution.
func (h *ItemHandler) Decide(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	itemID := c.Param("id")
	if err := validatePathID(itemID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return
	}

	result, err := h.svc.ApplyDecision(c.Request.Context(), tenantID, itemID, req, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondItemError(c, err, "applying decision")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Trail handles GET /api/v1/items/:id/audit.
func (h *ItemHandler) Trail(c *gin.Context) {
	tenantID := getTenantID(c)
	if tenantID == "" {
		return
	}

	itemID := c.Param("id")
	if err := validatePathID(itemID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}

	entries, err := h.svc.AuditTrail(c.Request.Context(), tenantID, itemID)
	if err != nil {
		h.respondItemError(c, err, "fetching audit trail")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// respondItemError maps lifecycle errors to HTTP status codes. A tenant
// mismatch reads as not-found so item existence never leaks across tenants.
func (h *ItemHandler) respondItemError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, models.ErrItemNotFound), errors.Is(err, models.ErrTenantMismatch):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "item not found")
	case errors.Is(err, models.ErrVersionConflict):
		respondError(c, http.StatusConflict, ErrCodeConflict, "item was modified concurrently, reread and retry")
	case errors.Is(err, models.ErrDuplicateKey):
		respondError(c, http.StatusConflict, ErrCodeConflict, "duplicate idempotency key")
	default:
		h.log.WithError(err).Error(action)
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
