package service

import (
	"context"
	"sync"
	"time"

	"github.com/approvio/approvio/internal/models"
)

// mockItemStore implements ItemStore for testing.
type mockItemStore struct {
	createFn      func(ctx context.Context, item *models.ApprovalItem, idempotencyKey string, dedupTTL time.Duration) error
	getFn         func(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error)
	applyFn       func(ctx context.Context, tenantID, itemID string, req models.DecisionRequest, auditAction, idempotencyKey string, dedupTTL time.Duration) (*models.ApprovalItem, bool, error)
	escalateFn    func(ctx context.Context, tenantID, itemID, escalatedTo string, expectedVersion int64) (*models.ApprovalItem, error)
	listFn        func(ctx context.Context, tenantID string, filter models.ListFilter) ([]models.ApprovalItem, bool, error)
	listOverdueFn func(ctx context.Context, limit int) ([]models.ApprovalItem, error)
}

func (m *mockItemStore) CreateFromProposal(ctx context.Context, item *models.ApprovalItem, idempotencyKey string, dedupTTL time.Duration) error {
	return m.createFn(ctx, item, idempotencyKey, dedupTTL)
}

func (m *mockItemStore) GetItem(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error) {
	return m.getFn(ctx, tenantID, itemID)
}

func (m *mockItemStore) ApplyDecision(ctx context.Context, tenantID, itemID string, req models.DecisionRequest, auditAction, idempotencyKey string, dedupTTL time.Duration) (*models.ApprovalItem, bool, error) {
	return m.applyFn(ctx, tenantID, itemID, req, auditAction, idempotencyKey, dedupTTL)
}

func (m *mockItemStore) Escalate(ctx context.Context, tenantID, itemID, escalatedTo string, expectedVersion int64) (*models.ApprovalItem, error) {
	return m.escalateFn(ctx, tenantID, itemID, escalatedTo, expectedVersion)
}

func (m *mockItemStore) ListPending(ctx context.Context, tenantID string, filter models.ListFilter) ([]models.ApprovalItem, bool, error) {
	return m.listFn(ctx, tenantID, filter)
}

func (m *mockItemStore) ListOverdue(ctx context.Context, limit int) ([]models.ApprovalItem, error) {
	return m.listOverdueFn(ctx, limit)
}

// mockSettings implements SettingsReader, returning fixed settings per tenant.
type mockSettings struct {
	settings map[string]models.TenantSettings
}

func (m *mockSettings) Get(_ context.Context, tenantID string) (models.TenantSettings, error) {
	if s, ok := m.settings[tenantID]; ok {
		return s.Normalized(), nil
	}
	return models.DefaultTenantSettings(tenantID), nil
}

// mockTrail implements TrailReader.
type mockTrail struct {
	entries []models.AuditEntry
	err     error
}

func (m *mockTrail) Trail(_ context.Context, _, _ string) ([]models.AuditEntry, error) {
	return m.entries, m.err
}

// mockOwners implements OwnerLookup.
type mockOwners struct {
	owners map[string]string
	err    error
}

func (m *mockOwners) GetWorkspaceOwner(_ context.Context, tenantID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.owners[tenantID], nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu        sync.Mutex
	created   []models.ApprovalCreatedEvent
	auto      []models.ApprovalAutoApprovedEvent
	resolved  []models.ApprovalResolvedEvent
	escalated []models.ApprovalEscalatedEvent
}

func (m *mockPublisher) ApprovalCreated(_ context.Context, ev models.ApprovalCreatedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, ev)
}

func (m *mockPublisher) ApprovalAutoApproved(_ context.Context, ev models.ApprovalAutoApprovedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auto = append(m.auto, ev)
}

func (m *mockPublisher) ApprovalResolved(_ context.Context, ev models.ApprovalResolvedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, ev)
}

func (m *mockPublisher) ApprovalEscalated(_ context.Context, ev models.ApprovalEscalatedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalated = append(m.escalated, ev)
}

// anomalyCall records one RecordAnomaly invocation.
type anomalyCall struct {
	TenantID string
	ItemID   string
	Action   string
	Actor    string
	Detail   map[string]any
}

// mockAuditor implements Auditor, recording calls.
type mockAuditor struct {
	mu    sync.Mutex
	calls []anomalyCall
	err   error
}

func (m *mockAuditor) RecordAnomaly(_ context.Context, tenantID, itemID, action, actor string, detail map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, anomalyCall{TenantID: tenantID, ItemID: itemID, Action: action, Actor: actor, Detail: detail})
	return m.err
}

func (m *mockAuditor) getCalls() []anomalyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]anomalyCall, len(m.calls))
	copy(out, m.calls)
	return out
}
