package store

import (
	"context"
	"fmt"

	"github.com/approvio/approvio/internal/models"
)

// QuarantineStore persists inbound events that could not be processed so
// operators can inspect and replay them. Nothing here is ever silently
// dropped.
type QuarantineStore struct {
	Base
}

// NewQuarantineStore creates a QuarantineStore.
func NewQuarantineStore(base Base) *QuarantineStore {
	return &QuarantineStore{Base: base}
}

// Add parks an event. tenantID may be empty when the payload was too
// malformed to extract one.
func (s *QuarantineStore) Add(ctx context.Context, ev *models.QuarantinedEvent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var tenantID *string
	if ev.TenantID != "" {
		tenantID = &ev.TenantID
	}

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO quarantined_events (tenant_id, subject, payload, reason, attempts)
		VALUES ($1, $2, $3, $4, $5)`,
		tenantID, ev.Subject, ev.Payload, ev.Reason, ev.Attempts,
	)
	if err != nil {
		return fmt.Errorf("quarantining event: %w", err)
	}

	return nil
}

// List returns a tenant's quarantined events, newest first.
func (s *QuarantineStore) List(ctx context.Context, tenantID string, limit, offset int) ([]models.QuarantinedEvent, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT id, tenant_id, subject, payload, reason, attempts, created_at
		FROM quarantined_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		tenantID, limit+1, offset,
	)
	if err != nil {
		return nil, false, fmt.Errorf("listing quarantined events: %w", err)
	}
	defer rows.Close()

	events := make([]models.QuarantinedEvent, 0, limit+1)
	for rows.Next() {
		var (
			ev  models.QuarantinedEvent
			tid *string
		)
		if err := rows.Scan(&ev.ID, &tid, &ev.Subject, &ev.Payload, &ev.Reason, &ev.Attempts, &ev.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scanning quarantined event: %w", err)
		}
		if tid != nil {
			ev.TenantID = *tid
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(events) > limit
	if hasMore {
		events = events[:limit]
	}

	return events, hasMore, nil
}
