package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/domain"
	"github.com/approvio/approvio/internal/metrics"
	"github.com/approvio/approvio/internal/models"
)

// decisionRetries bounds per-item compare-and-set retries within one bulk
// call. Conflicts past this are reported, not silently retried forever.
const decisionRetries = 3

// Compile-time check: *BulkService must satisfy domain.BulkApplier.
var _ domain.BulkApplier = (*BulkService)(nil)

// BulkService applies one decision to a set of items. A bulk call is N
// independent decisions, each with its own audit entry and retry budget; one
// item's conflict or terminal state never blocks or rolls back the others.
type BulkService struct {
	lifecycle *LifecycleService
	log       *logrus.Logger
}

// NewBulkService creates a BulkService.
func NewBulkService(lifecycle *LifecycleService, log *logrus.Logger) *BulkService {
	return &BulkService{lifecycle: lifecycle, log: log}
}

// ApplyBulk applies the decision to every item in the batch and reports
// per-item outcomes so callers can surface partial success.
func (s *BulkService) ApplyBulk(
	ctx context.Context, tenantID string, req models.BulkRequest,
) (*models.BulkResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &models.BulkResult{Succeeded: []string{}, Skipped: []models.SkippedItem{}}

	for _, itemID := range req.ItemIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		applied, reason := s.applyOne(ctx, tenantID, itemID, req)
		if applied {
			result.Succeeded = append(result.Succeeded, itemID)
			continue
		}

		result.Skipped = append(result.Skipped, models.SkippedItem{ID: itemID, Reason: reason})
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"decision":  req.Decision,
		"succeeded": len(result.Succeeded),
		"skipped":   len(result.Skipped),
	}).Info("approval.bulk_applied")
	metrics.BulkItemsTotal.WithLabelValues("succeeded").Add(float64(len(result.Succeeded)))
	metrics.BulkItemsTotal.WithLabelValues("skipped").Add(float64(len(result.Skipped)))

	return result, nil
}

// applyOne applies the decision to a single item with a bounded retry budget
// for version conflicts. Returns whether the decision was applied and, if
// not, the skip reason.
func (s *BulkService) applyOne(
	ctx context.Context, tenantID, itemID string, req models.BulkRequest,
) (bool, string) {
	decision := models.DecisionRequest{
		Decision:      req.Decision,
		Actor:         req.Actor,
		Notes:         req.Notes,
		Modifications: req.Modifications,
	}

	for attempt := 1; ; attempt++ {
		res, err := s.lifecycle.applyDecision(ctx, tenantID, itemID, decision, models.AuditBulkApplied, "")
		switch {
		case err == nil && res.Applied:
			return true, ""
		case err == nil:
			return false, models.SkipReasonAlreadyResolved
		case errors.Is(err, models.ErrVersionConflict):
			if attempt < decisionRetries {
				continue
			}

			return false, models.SkipReasonVersionConflict
		case errors.Is(err, models.ErrItemNotFound):
			return false, models.SkipReasonNotFound
		case errors.Is(err, models.ErrTenantMismatch):
			return false, models.SkipReasonTenantMismatch
		default:
			s.log.WithError(err).WithFields(logrus.Fields{
				"tenant_id": tenantID,
				"item_id":   itemID,
			}).Error("bulk decision failed")

			return false, models.SkipReasonInternal
		}
	}
}
