// Package domain defines the canonical service interfaces shared across API
// layers and the bus adapter. Consumers should depend on these interfaces
// rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/approvio/approvio/internal/models"
)

// ApprovalService defines the approval lifecycle operations.
type ApprovalService interface {
	// CreateFromProposal routes a proposal and creates the item. Returns
	// models.ErrDuplicateKey when the proposal was already processed.
	CreateFromProposal(ctx context.Context, ev models.ActionProposedEvent) (*models.ApprovalItem, error)

	// ApplyDecision applies one decision idempotently. idempotencyKey is ""
	// for direct synchronous calls.
	ApplyDecision(ctx context.Context, tenantID, itemID string, req models.DecisionRequest, idempotencyKey string) (*models.DecisionResult, error)

	GetItem(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error)
	ListPending(ctx context.Context, tenantID string, filter models.ListFilter) ([]models.ApprovalItem, bool, error)
	AuditTrail(ctx context.Context, tenantID, itemID string) ([]models.AuditEntry, error)
}

// BulkApplier applies one decision to many items with per-item isolation.
type BulkApplier interface {
	ApplyBulk(ctx context.Context, tenantID string, req models.BulkRequest) (*models.BulkResult, error)
}

// AuditReader serves the compliance audit surface.
type AuditReader interface {
	Query(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	PurgeOldEntries(ctx context.Context, tenantID string, retentionDays int) (int, error)
}

// QuarantineReader lists parked inbound events for operator inspection.
type QuarantineReader interface {
	List(ctx context.Context, tenantID string, limit, offset int) ([]models.QuarantinedEvent, bool, error)
}

// Auditor records out-of-band audit entries (boundary anomalies). Transition
// entries are written transactionally by the store, not through this.
type Auditor interface {
	RecordAnomaly(ctx context.Context, tenantID, itemID, action, actor string, detail map[string]any) error
}
