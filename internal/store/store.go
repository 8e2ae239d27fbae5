// Package store provides focused, single-concern data access stores for the
// approval orchestration core.
//
// Each store owns one domain (items, audit, dedup, quarantine, settings) and
// embeds shared helpers (Pool, logger) via the Base struct. Stores never
// import each other; shared logic lives in this file.
//
// The approval_items row is the only shared mutable resource in the system.
// Every mutation goes through a transaction that locks the row, bumps the
// version column, and appends the matching audit entry before committing, so
// state and audit are durable together or not at all.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/approvio/approvio/internal/dbpool"
	"github.com/approvio/approvio/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// setTenant sets the tenant context within a transaction. Row filtering is
// done with explicit predicates; the session variable keeps the schema ready
// for RLS policies without changing call sites.
func setTenant(ctx context.Context, tx pgx.Tx, tenantID string) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return fmt.Errorf("invalid tenant ID format: %w", err)
	}

	_, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID)
	if err != nil {
		return fmt.Errorf("setting tenant context: %w", err)
	}

	return nil
}

// beginTx starts a read-write transaction and sets the tenant context.
func (b *Base) beginTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if err := setTenant(ctx, tx, tenantID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction and sets the tenant context.
func (b *Base) beginReadTx(ctx context.Context, tenantID string) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	if err := setTenant(ctx, tx, tenantID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// insertDedup records an inbound idempotency key inside the caller's
// transaction. Returns models.ErrDuplicateKey when the key was already seen,
// in which case the surrounding transaction must not apply the event again.
func insertDedup(ctx context.Context, tx pgx.Tx, tenantID, key, subject string, ttl time.Duration) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO inbound_dedup (tenant_id, idempotency_key, subject, expires_at)
		VALUES ($1, $2, $3, NOW() + make_interval(secs => $4))
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING`,
		tenantID, key, subject, ttl.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("recording idempotency key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return models.ErrDuplicateKey
	}

	return nil
}

// appendAudit inserts one audit entry inside the caller's transaction,
// assigning the next sequence number for the item. Callers hold the item row
// lock, so the MAX+1 computation cannot race for a given item.
func appendAudit(ctx context.Context, tx pgx.Tx, e *models.AuditEntry) error {
	var detailJSON []byte
	if e.Detail != nil {
		var err error
		if detailJSON, err = json.Marshal(e.Detail); err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO approval_audit_log
			(item_id, sequence_number, tenant_id, action, actor, previous_status, new_status, detail)
		VALUES ($1,
			(SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM approval_audit_log WHERE item_id = $1),
			$2, $3, $4, $5, $6, $7)`,
		e.ItemID, e.TenantID, e.Action, e.Actor, nullableStatus(e.PreviousStatus), nullableStatus(e.NewStatus), detailJSON,
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}

	return nil
}

func nullableStatus(s models.Status) *string {
	if s == "" {
		return nil
	}
	v := string(s)

	return &v
}
