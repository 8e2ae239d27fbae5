package api_test

import (
	"context"

	"github.com/approvio/approvio/internal/models"
)

// mockApprovalService implements domain.ApprovalService for testing.
type mockApprovalService struct {
	createFn func(ctx context.Context, ev models.ActionProposedEvent) (*models.ApprovalItem, error)
	applyFn  func(ctx context.Context, tenantID, itemID string, req models.DecisionRequest, idempotencyKey string) (*models.DecisionResult, error)
	getFn    func(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error)
	listFn   func(ctx context.Context, tenantID string, filter models.ListFilter) ([]models.ApprovalItem, bool, error)
	trailFn  func(ctx context.Context, tenantID, itemID string) ([]models.AuditEntry, error)
}

func (m *mockApprovalService) CreateFromProposal(ctx context.Context, ev models.ActionProposedEvent) (*models.ApprovalItem, error) {
	return m.createFn(ctx, ev)
}

func (m *mockApprovalService) ApplyDecision(ctx context.Context, tenantID, itemID string, req models.DecisionRequest, idempotencyKey string) (*models.DecisionResult, error) {
	return m.applyFn(ctx, tenantID, itemID, req, idempotencyKey)
}

func (m *mockApprovalService) GetItem(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error) {
	return m.getFn(ctx, tenantID, itemID)
}

func (m *mockApprovalService) ListPending(ctx context.Context, tenantID string, filter models.ListFilter) ([]models.ApprovalItem, bool, error) {
	return m.listFn(ctx, tenantID, filter)
}

func (m *mockApprovalService) AuditTrail(ctx context.Context, tenantID, itemID string) ([]models.AuditEntry, error) {
	return m.trailFn(ctx, tenantID, itemID)
}

// mockBulkApplier implements domain.BulkApplier for testing.
type mockBulkApplier struct {
	applyFn func(ctx context.Context, tenantID string, req models.BulkRequest) (*models.BulkResult, error)
}

func (m *mockBulkApplier) ApplyBulk(ctx context.Context, tenantID string, req models.BulkRequest) (*models.BulkResult, error) {
	return m.applyFn(ctx, tenantID, req)
}

// mockAuditReader implements domain.AuditReader for testing.
type mockAuditReader struct {
	queryFn func(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	purgeFn func(ctx context.Context, tenantID string, retentionDays int) (int, error)
}

func (m *mockAuditReader) Query(ctx context.Context, tenantID string, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, tenantID, opts)
}

func (m *mockAuditReader) PurgeOldEntries(ctx context.Context, tenantID string, retentionDays int) (int, error) {
	return m.purgeFn(ctx, tenantID, retentionDays)
}

// mockQuarantineReader implements domain.QuarantineReader for testing.
type mockQuarantineReader struct {
	listFn func(ctx context.Context, tenantID string, limit, offset int) ([]models.QuarantinedEvent, bool, error)
}

func (m *mockQuarantineReader) List(ctx context.Context, tenantID string, limit, offset int) ([]models.QuarantinedEvent, bool, error) {
	return m.listFn(ctx, tenantID, limit, offset)
}
