package models

import "time"

// Documented routing defaults, applied whenever a tenant has no stored
// settings or the stored pair is invalid. The router fails closed: a broken
// configuration must never widen auto-approval.
const (
	DefaultHighThreshold      = 85
	DefaultLowThreshold       = 60
	DefaultSLAHours           = 48
	DefaultCooldownMinutes    = 60
	DefaultAuditRetentionDays = 365
)

// TenantSettings is per-tenant routing and escalation configuration, owned by
// an external configuration service and read-only at this core's boundary.
type TenantSettings struct {
	TenantID string `json:"-"`

	// Confidence routing thresholds: score > HighThreshold routes to the
	// auto tier, score < LowThreshold to full review.
	HighThreshold int `json:"high_threshold"`
	LowThreshold  int `json:"low_threshold"`

	// SLAHours is the tenant-wide deadline; the per-tier overrides apply
	// when non-zero.
	SLAHours      int `json:"sla_hours"`
	SLAHoursQuick int `json:"sla_hours_quick,omitempty"`
	SLAHoursFull  int `json:"sla_hours_full,omitempty"`

	EscalationCooldownMinutes int    `json:"escalation_cooldown_minutes"`
	FallbackApprover          string `json:"fallback_approver,omitempty"`

	AuditRetentionDays int `json:"audit_retention_days"`
}

// DefaultTenantSettings returns the documented defaults.
func DefaultTenantSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID:                  tenantID,
		HighThreshold:             DefaultHighThreshold,
		LowThreshold:              DefaultLowThreshold,
		SLAHours:                  DefaultSLAHours,
		EscalationCooldownMinutes: DefaultCooldownMinutes,
		AuditRetentionDays:        DefaultAuditRetentionDays,
	}
}

// valid reports whether the stored thresholds and SLA are usable.
func (s TenantSettings) valid() bool {
	if s.LowThreshold < 0 || s.HighThreshold > 100 || s.LowThreshold > s.HighThreshold {
		return false
	}
	return s.SLAHours > 0
}

// Normalized returns settings safe to route with: invalid threshold pairs
// collapse to the defaults, missing optional values are filled in.
func (s TenantSettings) Normalized() TenantSettings {
	if !s.valid() {
		d := DefaultTenantSettings(s.TenantID)
		d.FallbackApprover = s.FallbackApprover
		return d
	}
	if s.EscalationCooldownMinutes <= 0 {
		s.EscalationCooldownMinutes = DefaultCooldownMinutes
	}
	if s.AuditRetentionDays <= 0 {
		s.AuditRetentionDays = DefaultAuditRetentionDays
	}
	return s
}

// SLAFor returns the effective SLA for a tier, honoring per-tier overrides.
func (s TenantSettings) SLAFor(tier Tier) time.Duration {
	hours := s.SLAHours
	switch tier {
	case TierQuick:
		if s.SLAHoursQuick > 0 {
			hours = s.SLAHoursQuick
		}
	case TierFull:
		if s.SLAHoursFull > 0 {
			hours = s.SLAHoursFull
		}
	case TierAuto:
		// Auto-approved items resolve immediately; the tenant-wide SLA is
		// recorded for consistency but never scanned.
	}
	return time.Duration(hours) * time.Hour
}
