package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/approvio/approvio/internal/models"
)

// SettingsStore reads per-tenant routing configuration. The configuration is
// owned by an external service; this core only reads it, and always through
// Normalized() so broken data fails closed.
type SettingsStore struct {
	Base
}

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(base Base) *SettingsStore {
	return &SettingsStore{Base: base}
}

// Get returns the tenant's normalized settings. A tenant with no stored row
// gets the documented defaults.
func (s *SettingsStore) Get(ctx context.Context, tenantID string) (models.TenantSettings, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var (
		ts                models.TenantSettings
		slaQuick, slaFull *int
		fallback          *string
	)

	err := s.Pool.QueryRow(ctx, `
		SELECT tenant_id, high_threshold, low_threshold, sla_hours, sla_hours_quick,
		       sla_hours_full, escalation_cooldown_minutes, fallback_approver, audit_retention_days
		FROM tenant_settings WHERE tenant_id = $1`,
		tenantID,
	).Scan(
		&ts.TenantID, &ts.HighThreshold, &ts.LowThreshold, &ts.SLAHours,
		&slaQuick, &slaFull, &ts.EscalationCooldownMinutes, &fallback, &ts.AuditRetentionDays,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultTenantSettings(tenantID), nil
		}

		return models.TenantSettings{}, fmt.Errorf("loading tenant settings: %w", err)
	}

	if slaQuick != nil {
		ts.SLAHoursQuick = *slaQuick
	}
	if slaFull != nil {
		ts.SLAHoursFull = *slaFull
	}
	if fallback != nil {
		ts.FallbackApprover = *fallback
	}

	return ts.Normalized(), nil
}
