// Package service provides the approval lifecycle business logic between the
// transport adapters (HTTP, bus) and the data stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/domain"
	"github.com/approvio/approvio/internal/metrics"
	"github.com/approvio/approvio/internal/models"
)

// ItemStore is the data-access interface LifecycleService depends on.
type ItemStore interface {
	CreateFromProposal(ctx context.Context, item *models.ApprovalItem, idempotencyKey string, dedupTTL time.Duration) error
	GetItem(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error)
	ApplyDecision(ctx context.Context, tenantID, itemID string, req models.DecisionRequest, auditAction, idempotencyKey string, dedupTTL time.Duration) (*models.ApprovalItem, bool, error)
	Escalate(ctx context.Context, tenantID, itemID, escalatedTo string, expectedVersion int64) (*models.ApprovalItem, error)
	ListPending(ctx context.Context, tenantID string, filter models.ListFilter) ([]models.ApprovalItem, bool, error)
	ListOverdue(ctx context.Context, limit int) ([]models.ApprovalItem, error)
}

// SettingsReader loads normalized per-tenant routing configuration.
type SettingsReader interface {
	Get(ctx context.Context, tenantID string) (models.TenantSettings, error)
}

// TrailReader loads an item's ordered audit trail.
type TrailReader interface {
	Trail(ctx context.Context, tenantID, itemID string) ([]models.AuditEntry, error)
}

// Publisher emits outbound lifecycle events. Publishing is best-effort: a
// failed publish is logged and counted, never propagated, because the state
// transition it announces has already committed.
type Publisher interface {
	ApprovalCreated(ctx context.Context, ev models.ApprovalCreatedEvent)
	ApprovalAutoApproved(ctx context.Context, ev models.ApprovalAutoApprovedEvent)
	ApprovalResolved(ctx context.Context, ev models.ApprovalResolvedEvent)
	ApprovalEscalated(ctx context.Context, ev models.ApprovalEscalatedEvent)
}

// Auditor is an alias for the canonical domain.Auditor interface.
type Auditor = domain.Auditor

// Compile-time check: *LifecycleService must satisfy domain.ApprovalService.
var _ domain.ApprovalService = (*LifecycleService)(nil)

// LifecycleService owns the authoritative state of approval items. All
// transitions flow through here; no caller mutates item fields directly.
type LifecycleService struct {
	items       ItemStore
	settings    SettingsReader
	trail       TrailReader
	pub         Publisher
	auditWorker *AuditWorker
	log         *logrus.Logger
	dedupTTL    time.Duration
	now         func() time.Time
}

// NewLifecycleService creates a LifecycleService.
func NewLifecycleService(
	items ItemStore,
	settings SettingsReader,
	trail TrailReader,
	pub Publisher,
	auditWorker *AuditWorker,
	log *logrus.Logger,
	dedupTTL time.Duration,
) *LifecycleService {
	return &LifecycleService{
		items:       items,
		settings:    settings,
		trail:       trail,
		pub:         pub,
		auditWorker: auditWorker,
		log:         log,
		dedupTTL:    dedupTTL,
		now:         time.Now,
	}
}

// CreateFromProposal routes an incoming proposal and creates the item.
// Proposals above the auto threshold are approved immediately, with the same
// audit pipeline as every other transition. Returns models.ErrDuplicateKey on
// redelivered proposals; nothing is written then.
func (s *LifecycleService) CreateFromProposal(
	ctx context.Context, ev models.ActionProposedEvent,
) (*models.ApprovalItem, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx, ev.TenantID)
	if err != nil {
		return nil, fmt.Errorf("loading routing settings: %w", err)
	}

	tier, sla := Route(ev.ConfidenceScore, settings)
	// timestamptz stores microseconds; sub-microsecond precision would
	// survive in the audit detail JSON but not in the item columns, breaking
	// trail replay comparison.
	now := s.now().UTC().Truncate(time.Microsecond)

	item := &models.ApprovalItem{
		ID:                uuid.New().String(),
		TenantID:          ev.TenantID,
		Type:              ev.Type,
		Title:             ev.Title,
		Description:       ev.Description,
		ConfidenceScore:   ev.ConfidenceScore,
		ConfidenceFactors: ev.ConfidenceFactors,
		AIRecommendation:  ev.AIRecommendation,
		AIReasoning:       ev.AIReasoning,
		Tier:              tier,
		Status:            models.StatusPending,
		RequestedBy:       ev.RequestedBy,
		CreatedAt:         now,
		DueAt:             now.Add(sla),
		Version:           1,
	}
	if ev.AssignedTo != "" {
		item.AssignedTo = &ev.AssignedTo
	}

	if tier == models.TierAuto {
		resolvedAt := now
		item.Status = models.StatusAutoApproved
		item.ResolvedAt = &resolvedAt
		item.Resolution = &models.Resolution{
			Decision: models.DecisionApprove,
			Notes:    "confidence above auto-approval threshold",
		}
	}

	if err := s.items.CreateFromProposal(ctx, item, ev.ProposalID, s.dedupTTL); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": item.TenantID,
		"item_id":   item.ID,
		"tier":      item.Tier,
		"score":     item.ConfidenceScore,
	}).Info("approval.created")
	metrics.ItemsCreatedTotal.WithLabelValues(string(tier)).Inc()

	s.pub.ApprovalCreated(ctx, models.ApprovalCreatedEvent{
		ItemID:   item.ID,
		TenantID: item.TenantID,
		Tier:     item.Tier,
		Status:   item.Status,
		DueAt:    item.DueAt,
	})

	if item.Status == models.StatusAutoApproved {
		s.pub.ApprovalAutoApproved(ctx, models.ApprovalAutoApprovedEvent{
			ItemID:   item.ID,
			TenantID: item.TenantID,
		})
	}

	return item, nil
}

// ApplyDecision applies a single decision. Duplicate decisions on a terminal
// item are a no-op success carrying the prior resolution, so at-least-once
// redelivery and double-clicks are harmless. The outbound resolved event is
// emitted only on the first effective transition.
func (s *LifecycleService) ApplyDecision(
	ctx context.Context, tenantID, itemID string, req models.DecisionRequest, idempotencyKey string,
) (*models.DecisionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.applyDecision(ctx, tenantID, itemID, req, auditActionFor(req.Decision), idempotencyKey)
}

// applyDecision is the shared transition path for single and bulk decisions.
func (s *LifecycleService) applyDecision(
	ctx context.Context, tenantID, itemID string, req models.DecisionRequest, auditAction, idempotencyKey string,
) (*models.DecisionResult, error) {
	item, applied, err := s.items.ApplyDecision(ctx, tenantID, itemID, req, auditAction, idempotencyKey, s.dedupTTL)
	if err != nil {
		if errors.Is(err, models.ErrTenantMismatch) {
			s.recordTenantMismatch(tenantID, itemID, req.Actor)
		}

		return nil, err
	}

	if !applied {
		s.log.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"item_id":   itemID,
			"actor":     req.Actor,
		}).Info("approval.decision_ignored_duplicate")
		metrics.DecisionsTotal.WithLabelValues(req.Decision, "duplicate").Inc()

		return &models.DecisionResult{Item: item, Applied: false}, nil
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"item_id":   itemID,
		"decision":  req.Decision,
		"actor":     req.Actor,
	}).Info("approval.resolved")
	metrics.DecisionsTotal.WithLabelValues(req.Decision, "applied").Inc()

	s.pub.ApprovalResolved(ctx, models.ApprovalResolvedEvent{
		ItemID:     item.ID,
		TenantID:   tenantID,
		Decision:   req.Decision,
		ResolvedBy: req.Actor,
	})

	return &models.DecisionResult{Item: item, Applied: true}, nil
}

// recordTenantMismatch audits a boundary violation asynchronously. The
// triggering call already failed; the trace must survive regardless.
func (s *LifecycleService) recordTenantMismatch(tenantID, itemID, actor string) {
	s.log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"item_id":   itemID,
		"actor":     actor,
	}).Warn("approval.tenant_mismatch")
	metrics.TenantMismatchTotal.Inc()

	if s.auditWorker != nil {
		s.auditWorker.Enqueue(&AuditJob{
			TenantID: tenantID,
			ItemID:   itemID,
			Action:   models.AuditTenantMismatch,
			Actor:    actor,
			Detail:   map[string]any{"attempted_by_tenant": tenantID},
		})
	}
}

// GetItem returns a single item (pass-through).
func (s *LifecycleService) GetItem(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error) {
	return s.items.GetItem(ctx, tenantID, itemID)
}

// ListPending returns a page of pending items (pass-through).
func (s *LifecycleService) ListPending(
	ctx context.Context, tenantID string, filter models.ListFilter,
) ([]models.ApprovalItem, bool, error) {
	return s.items.ListPending(ctx, tenantID, filter)
}

// AuditTrail returns an item's ordered audit trail (pass-through).
func (s *LifecycleService) AuditTrail(ctx context.Context, tenantID, itemID string) ([]models.AuditEntry, error) {
	return s.trail.Trail(ctx, tenantID, itemID)
}
