package service

import (
	"testing"
	"time"

	"github.com/approvio/approvio/internal/models"
)

func TestRoute(t *testing.T) {
	settings := models.DefaultTenantSettings("t1")

	tests := []struct {
		name     string
		score    int
		wantTier models.Tier
	}{
		{"above high threshold", 86, models.TierAuto},
		{"at high threshold", 85, models.TierQuick},
		{"at low threshold", 60, models.TierQuick},
		{"below low threshold", 59, models.TierFull},
		{"zero score", 0, models.TierFull},
		{"perfect score", 100, models.TierAuto},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tier, sla := Route(tc.score, settings)
			if tier != tc.wantTier {
				t.Errorf("Route(%d) tier = %s, want %s", tc.score, tier, tc.wantTier)
			}
			if sla != time.Duration(settings.SLAHours)*time.Hour {
				t.Errorf("Route(%d) sla = %v, want %dh", tc.score, sla, settings.SLAHours)
			}
		})
	}
}

func TestRoute_PerTierSLA(t *testing.T) {
	settings := models.TenantSettings{
		HighThreshold: 85,
		LowThreshold:  60,
		SLAHours:      48,
		SLAHoursQuick: 8,
		SLAHoursFull:  96,
	}

	if _, sla := Route(70, settings); sla != 8*time.Hour {
		t.Errorf("quick tier sla = %v, want 8h", sla)
	}
	if _, sla := Route(10, settings); sla != 96*time.Hour {
		t.Errorf("full tier sla = %v, want 96h", sla)
	}
}

func TestRoute_FailClosedSettings(t *testing.T) {
	// Inverted thresholds must not widen auto-approval: callers normalize
	// first, and normalization collapses to the defaults.
	broken := models.TenantSettings{HighThreshold: 10, LowThreshold: 90, SLAHours: 24}

	tier, _ := Route(50, broken.Normalized())
	if tier != models.TierFull {
		t.Errorf("tier = %s, want %s (defaults applied)", tier, models.TierFull)
	}

	tier, _ = Route(86, broken.Normalized())
	if tier != models.TierAuto {
		t.Errorf("tier = %s, want %s under default thresholds", tier, models.TierAuto)
	}
}

func TestAuditActionFor(t *testing.T) {
	if got := auditActionFor(models.DecisionApprove); got != models.AuditApproved {
		t.Errorf("approve action = %q, want %q", got, models.AuditApproved)
	}
	if got := auditActionFor(models.DecisionReject); got != models.AuditRejected {
		t.Errorf("reject action = %q, want %q", got, models.AuditRejected)
	}
}
