package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestLifecycle(items *mockItemStore, pub *mockPublisher) *LifecycleService {
	svc := NewLifecycleService(
		items,
		&mockSettings{},
		&mockTrail{},
		pub,
		nil,
		testLogger(),
		24*time.Hour,
	)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateFromProposal_TimestampsFitColumnPrecision(t *testing.T) {
	items := &mockItemStore{
		createFn: func(_ context.Context, _ *models.ApprovalItem, _ string, _ time.Duration) error {
			return nil
		},
	}
	svc := newTestLifecycle(items, &mockPublisher{})
	// Wall clocks carry nanoseconds but timestamptz keeps microseconds.
	// Anything finer would survive in the audit detail JSON while the item
	// columns truncate it, so trail replay would disagree with the live row.
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC) }

	ev := validProposal()
	ev.ConfidenceScore = 92 // auto tier, so resolved_at is set too

	item, err := svc.CreateFromProposal(context.Background(), ev)
	if err != nil {
		t.Fatalf("CreateFromProposal: %v", err)
	}
	if item.ResolvedAt == nil {
		t.Fatal("resolved_at = nil, want set for auto-approved item")
	}

	for name, ts := range map[string]time.Time{
		"created_at":  item.CreatedAt,
		"due_at":      item.DueAt,
		"resolved_at": *item.ResolvedAt,
	} {
		if !ts.Equal(ts.Truncate(time.Microsecond)) {
			t.Errorf("%s carries sub-microsecond precision: %v", name, ts)
		}
	}

	// The due_at written to the audit detail round-trips through JSON as an
	// RFC3339Nano string; it must come back equal to the column value.
	parsed, err := time.Parse(time.RFC3339Nano, item.DueAt.Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("parsing round-tripped due_at: %v", err)
	}
	if !parsed.Equal(item.DueAt) {
		t.Errorf("round-tripped due_at = %v, want %v", parsed, item.DueAt)
	}
}

func validProposal() models.ActionProposedEvent {
	return models.ActionProposedEvent{
		TenantID:        "t1",
		ProposalID:      "p1",
		Type:            "crm.lead_update",
		Title:           "Update lead score",
		ConfidenceScore: 70,
		RequestedBy:     "agent-1",
	}
}

func TestCreateFromProposal_QuickTier(t *testing.T) {
	var stored *models.ApprovalItem
	items := &mockItemStore{
		createFn: func(_ context.Context, item *models.ApprovalItem, key string, _ time.Duration) error {
			if key != "p1" {
				t.Errorf("idempotency key = %q, want proposal id", key)
			}
			stored = item
			return nil
		},
	}
	pub := &mockPublisher{}
	svc := newTestLifecycle(items, pub)

	ev := validProposal()
	ev.ConfidenceFactors = []models.ConfidenceFactor{
		{Name: "historical_accuracy", Score: 74, Weight: 0.6, Detail: "similar updates accepted"},
		{Name: "data_freshness", Score: 64, Weight: 0.4},
	}

	item, err := svc.CreateFromProposal(context.Background(), ev)
	if err != nil {
		t.Fatalf("CreateFromProposal: %v", err)
	}

	if item.Tier != models.TierQuick {
		t.Errorf("tier = %s, want %s", item.Tier, models.TierQuick)
	}
	if item.Status != models.StatusPending {
		t.Errorf("status = %s, want %s", item.Status, models.StatusPending)
	}
	if item.Version != 1 {
		t.Errorf("version = %d, want 1", item.Version)
	}

	wantDue := svc.now().Add(time.Duration(models.DefaultSLAHours) * time.Hour)
	if !item.DueAt.Equal(wantDue) {
		t.Errorf("due_at = %v, want %v", item.DueAt, wantDue)
	}

	if stored == nil {
		t.Fatal("item was not stored")
	}
	// The AI assessment is write-once: each factor's score, weight, and
	// explanation must survive intake untouched.
	if len(stored.ConfidenceFactors) != 2 {
		t.Fatalf("stored %d confidence factors, want 2", len(stored.ConfidenceFactors))
	}
	if f := stored.ConfidenceFactors[0]; f.Score != 74 || f.Weight != 0.6 {
		t.Errorf("factor[0] = %+v, want score 74 weight 0.6", f)
	}
	if len(pub.created) != 1 {
		t.Fatalf("created events = %d, want 1", len(pub.created))
	}
	if len(pub.auto) != 0 {
		t.Errorf("auto events = %d, want 0", len(pub.auto))
	}
}

func TestCreateFromProposal_AutoApproved(t *testing.T) {
	items := &mockItemStore{
		createFn: func(_ context.Context, _ *models.ApprovalItem, _ string, _ time.Duration) error {
			return nil
		},
	}
	pub := &mockPublisher{}
	svc := newTestLifecycle(items, pub)

	ev := validProposal()
	ev.ConfidenceScore = 92

	item, err := svc.CreateFromProposal(context.Background(), ev)
	if err != nil {
		t.Fatalf("CreateFromProposal: %v", err)
	}

	if item.Tier != models.TierAuto {
		t.Errorf("tier = %s, want %s", item.Tier, models.TierAuto)
	}
	if item.Status != models.StatusAutoApproved {
		t.Errorf("status = %s, want %s", item.Status, models.StatusAutoApproved)
	}
	if item.Resolution == nil || item.Resolution.Decision != models.DecisionApprove {
		t.Error("auto-approved item must carry an approve resolution")
	}
	if item.ResolvedAt == nil {
		t.Error("auto-approved item must have resolved_at set")
	}

	if len(pub.created) != 1 || len(pub.auto) != 1 {
		t.Errorf("events = (%d created, %d auto), want (1, 1)", len(pub.created), len(pub.auto))
	}
}

func TestCreateFromProposal_DuplicateProposal(t *testing.T) {
	items := &mockItemStore{
		createFn: func(_ context.Context, _ *models.ApprovalItem, _ string, _ time.Duration) error {
			return models.ErrDuplicateKey
		},
	}
	pub := &mockPublisher{}
	svc := newTestLifecycle(items, pub)

	_, err := svc.CreateFromProposal(context.Background(), validProposal())
	if !errors.Is(err, models.ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}

	// Redelivery must not re-announce the item.
	if len(pub.created) != 0 {
		t.Errorf("created events = %d, want 0", len(pub.created))
	}
}

func TestCreateFromProposal_InvalidEvent(t *testing.T) {
	svc := newTestLifecycle(&mockItemStore{}, &mockPublisher{})

	ev := validProposal()
	ev.Title = ""

	if _, err := svc.CreateFromProposal(context.Background(), ev); !errors.Is(err, models.ErrMissingTitle) {
		t.Fatalf("err = %v, want ErrMissingTitle", err)
	}
}

func TestApplyDecision_Applied(t *testing.T) {
	resolved := &models.ApprovalItem{ID: "i1", TenantID: "t1", Status: models.StatusApproved, Version: 2}
	items := &mockItemStore{
		applyFn: func(_ context.Context, _, _ string, _ models.DecisionRequest, auditAction, _ string, _ time.Duration) (*models.ApprovalItem, bool, error) {
			if auditAction != models.AuditApproved {
				t.Errorf("audit action = %q, want %q", auditAction, models.AuditApproved)
			}
			return resolved, true, nil
		},
	}
	pub := &mockPublisher{}
	svc := newTestLifecycle(items, pub)

	req := models.DecisionRequest{Decision: models.DecisionApprove, Actor: "u1"}
	result, err := svc.ApplyDecision(context.Background(), "t1", "i1", req, "")
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}

	if !result.Applied {
		t.Error("result.Applied = false, want true")
	}
	if len(pub.resolved) != 1 {
		t.Fatalf("resolved events = %d, want 1", len(pub.resolved))
	}
	if pub.resolved[0].Decision != models.DecisionApprove {
		t.Errorf("event decision = %q, want approve", pub.resolved[0].Decision)
	}
}

func TestApplyDecision_DuplicateOnTerminalItem(t *testing.T) {
	terminal := &models.ApprovalItem{ID: "i1", TenantID: "t1", Status: models.StatusRejected, Version: 3}
	items := &mockItemStore{
		applyFn: func(_ context.Context, _, _ string, _ models.DecisionRequest, _, _ string, _ time.Duration) (*models.ApprovalItem, bool, error) {
			return terminal, false, nil
		},
	}
	pub := &mockPublisher{}
	svc := newTestLifecycle(items, pub)

	req := models.DecisionRequest{Decision: models.DecisionApprove, Actor: "u2"}
	result, err := svc.ApplyDecision(context.Background(), "t1", "i1", req, "k1")
	if err != nil {
		t.Fatalf("ApplyDecision: %v", err)
	}

	if result.Applied {
		t.Error("result.Applied = true, want false for terminal item")
	}
	if result.Item.Status != models.StatusRejected {
		t.Errorf("prior resolution status = %s, want rejected", result.Item.Status)
	}

	// The duplicate must not re-announce resolution.
	if len(pub.resolved) != 0 {
		t.Errorf("resolved events = %d, want 0", len(pub.resolved))
	}
}

func TestApplyDecision_TenantMismatchRecordsAnomaly(t *testing.T) {
	items := &mockItemStore{
		applyFn: func(_ context.Context, _, _ string, _ models.DecisionRequest, _, _ string, _ time.Duration) (*models.ApprovalItem, bool, error) {
			return nil, false, models.ErrTenantMismatch
		},
	}
	auditor := &mockAuditor{}
	worker := NewAuditWorker(auditor, testLogger(), 10)

	svc := NewLifecycleService(items, &mockSettings{}, &mockTrail{}, &mockPublisher{}, worker, testLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	req := models.DecisionRequest{Decision: models.DecisionApprove, Actor: "intruder"}
	_, err := svc.ApplyDecision(context.Background(), "t2", "i1", req, "")
	if !errors.Is(err, models.ErrTenantMismatch) {
		t.Fatalf("err = %v, want ErrTenantMismatch", err)
	}

	deadline := time.After(time.Second)
	for len(auditor.getCalls()) == 0 {
		select {
		case <-deadline:
			t.Fatal("anomaly audit entry was never recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}

	call := auditor.getCalls()[0]
	if call.Action != models.AuditTenantMismatch {
		t.Errorf("anomaly action = %q, want %q", call.Action, models.AuditTenantMismatch)
	}
	if call.Actor != "intruder" {
		t.Errorf("anomaly actor = %q, want intruder", call.Actor)
	}
}

func TestApplyDecision_InvalidRequest(t *testing.T) {
	svc := newTestLifecycle(&mockItemStore{}, &mockPublisher{})

	req := models.DecisionRequest{Decision: "maybe", Actor: "u1"}
	if _, err := svc.ApplyDecision(context.Background(), "t1", "i1", req, ""); !errors.Is(err, models.ErrInvalidDecision) {
		t.Fatalf("err = %v, want ErrInvalidDecision", err)
	}
}
