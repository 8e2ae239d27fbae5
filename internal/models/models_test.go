package models

import (
	"errors"
	"testing"
	"time"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusExpired, false},
		{StatusAutoApproved, true},
		{StatusApproved, true},
		{StatusRejected, true},
	}

	for _, tc := range tests {
		if got := tc.status.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestDecisionRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     DecisionRequest
		wantErr error
	}{
		{"valid approve", DecisionRequest{Decision: DecisionApprove, Actor: "u1"}, nil},
		{"valid reject with version", DecisionRequest{Decision: DecisionReject, Actor: "u1", ExpectedVersion: 3}, nil},
		{"unknown decision", DecisionRequest{Decision: "maybe", Actor: "u1"}, ErrInvalidDecision},
		{"missing actor", DecisionRequest{Decision: DecisionApprove}, ErrMissingActor},
		{"negative version", DecisionRequest{Decision: DecisionApprove, Actor: "u1", ExpectedVersion: -1}, ErrInvalidVersion},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestBulkRequest_Validate(t *testing.T) {
	ids := make([]string, maxBulkItems+1)
	for i := range ids {
		ids[i] = "id"
	}

	tests := []struct {
		name    string
		req     BulkRequest
		wantErr bool
	}{
		{"valid", BulkRequest{ItemIDs: []string{"a", "b"}, Decision: DecisionApprove, Actor: "u1"}, false},
		{"empty batch", BulkRequest{Decision: DecisionApprove, Actor: "u1"}, true},
		{"oversized batch", BulkRequest{ItemIDs: ids, Decision: DecisionApprove, Actor: "u1"}, true},
		{"bad decision", BulkRequest{ItemIDs: []string{"a"}, Decision: "x", Actor: "u1"}, true},
		{"missing actor", BulkRequest{ItemIDs: []string{"a"}, Decision: DecisionReject}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestActionProposedEvent_Validate(t *testing.T) {
	valid := ActionProposedEvent{
		TenantID:        "t1",
		ProposalID:      "p1",
		Type:            "crm.lead_update",
		Title:           "Update lead score",
		ConfidenceScore: 75,
		RequestedBy:     "agent-1",
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ActionProposedEvent)
	}{
		{"missing tenant", func(e *ActionProposedEvent) { e.TenantID = "" }},
		{"missing proposal id", func(e *ActionProposedEvent) { e.ProposalID = "" }},
		{"missing type", func(e *ActionProposedEvent) { e.Type = "" }},
		{"missing title", func(e *ActionProposedEvent) { e.Title = "" }},
		{"score too high", func(e *ActionProposedEvent) { e.ConfidenceScore = 101 }},
		{"score negative", func(e *ActionProposedEvent) { e.ConfidenceScore = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := valid
			tc.mutate(&ev)
			if err := ev.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestDecisionSubmittedEvent_Validate(t *testing.T) {
	valid := DecisionSubmittedEvent{
		TenantID:       "t1",
		ItemID:         "i1",
		Decision:       DecisionApprove,
		Actor:          "u1",
		IdempotencyKey: "k1",
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}

	ev := valid
	ev.IdempotencyKey = ""
	if err := ev.Validate(); !errors.Is(err, ErrMissingKey) {
		t.Errorf("missing key: got %v, want %v", err, ErrMissingKey)
	}

	// A blank item_id is a malformed event, not a lookup miss: the lifecycle
	// sentinel would send it down the retry path instead of quarantine.
	ev = valid
	ev.ItemID = ""
	if err := ev.Validate(); !errors.Is(err, ErrMissingItemID) {
		t.Errorf("missing item_id: got %v, want %v", err, ErrMissingItemID)
	}
	if errors.Is(ev.Validate(), ErrItemNotFound) {
		t.Error("missing item_id must not alias the not-found sentinel")
	}

	ev = valid
	ev.Decision = "defer"
	if err := ev.Validate(); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("bad decision: got %v, want %v", err, ErrInvalidDecision)
	}
}

func TestTenantSettings_Normalized(t *testing.T) {
	t.Run("inverted thresholds fall back to defaults", func(t *testing.T) {
		s := TenantSettings{TenantID: "t1", HighThreshold: 40, LowThreshold: 70, SLAHours: 24, FallbackApprover: "mgr"}
		n := s.Normalized()

		if n.HighThreshold != DefaultHighThreshold || n.LowThreshold != DefaultLowThreshold {
			t.Errorf("thresholds = (%d, %d), want defaults (%d, %d)",
				n.HighThreshold, n.LowThreshold, DefaultHighThreshold, DefaultLowThreshold)
		}
		if n.SLAHours != DefaultSLAHours {
			t.Errorf("sla_hours = %d, want default %d", n.SLAHours, DefaultSLAHours)
		}
		if n.FallbackApprover != "mgr" {
			t.Error("fallback approver must survive the fail-closed reset")
		}
	})

	t.Run("zero sla falls back to defaults", func(t *testing.T) {
		s := TenantSettings{TenantID: "t1", HighThreshold: 90, LowThreshold: 50}
		if n := s.Normalized(); n.SLAHours != DefaultSLAHours {
			t.Errorf("sla_hours = %d, want %d", n.SLAHours, DefaultSLAHours)
		}
	})

	t.Run("valid settings kept, gaps filled", func(t *testing.T) {
		s := TenantSettings{TenantID: "t1", HighThreshold: 90, LowThreshold: 50, SLAHours: 24}
		n := s.Normalized()

		if n.HighThreshold != 90 || n.LowThreshold != 50 || n.SLAHours != 24 {
			t.Error("valid settings must be preserved")
		}
		if n.EscalationCooldownMinutes != DefaultCooldownMinutes {
			t.Errorf("cooldown = %d, want default %d", n.EscalationCooldownMinutes, DefaultCooldownMinutes)
		}
	})
}

func TestTenantSettings_SLAFor(t *testing.T) {
	s := TenantSettings{SLAHours: 48, SLAHoursQuick: 24, SLAHoursFull: 72}

	tests := []struct {
		tier Tier
		want time.Duration
	}{
		{TierAuto, 48 * time.Hour},
		{TierQuick, 24 * time.Hour},
		{TierFull, 72 * time.Hour},
	}

	for _, tc := range tests {
		if got := s.SLAFor(tc.tier); got != tc.want {
			t.Errorf("SLAFor(%s) = %v, want %v", tc.tier, got, tc.want)
		}
	}

	// No overrides: tenant-wide SLA applies to every tier.
	flat := TenantSettings{SLAHours: 48}
	for _, tier := range []Tier{TierAuto, TierQuick, TierFull} {
		if got := flat.SLAFor(tier); got != 48*time.Hour {
			t.Errorf("SLAFor(%s) without override = %v, want 48h", tier, got)
		}
	}
}
