package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/approvio/approvio/internal/models"
)

// AuditStore provides read access to the append-only approval_audit_log plus
// the out-of-band anomaly write used by the async audit worker. Transition
// entries are written in the item transaction, never through this store.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// Trail returns an item's full audit trail in sequence order. The lookup
// enforces the tenant boundary the same way GetItem does.
func (s *AuditStore) Trail(ctx context.Context, tenantID, itemID string) ([]models.AuditEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	var ownerTenant string
	if err := tx.QueryRow(ctx, "SELECT tenant_id FROM approval_items WHERE id = $1", itemID).Scan(&ownerTenant); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrItemNotFound
		}

		return nil, fmt.Errorf("checking item ownership: %w", err)
	}

	if ownerTenant != tenantID {
		return nil, models.ErrTenantMismatch
	}

	rows, err := tx.Query(ctx, `
		SELECT item_id, sequence_number, tenant_id, action, actor, previous_status, new_status, detail, created_at
		FROM approval_audit_log
		WHERE item_id = $1
		ORDER BY sequence_number ASC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// Query returns audit entries matching the given filters for compliance
// export, newest first. Returns entries, hasMore flag, and any error.
func (s *AuditStore) Query(
	ctx context.Context, tenantID string, opts models.AuditQueryOpts,
) ([]models.AuditEntry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	where, args, argIdx := buildAuditFilter(tenantID, opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT item_id, sequence_number, tenant_id, action, actor, previous_status, new_status, detail, created_at
		FROM approval_audit_log %s
		ORDER BY created_at DESC, sequence_number DESC
		LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, opts.Offset)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// RecordAnomaly appends a non-transition audit entry (e.g. tenant_mismatch)
// outside any item transaction. A short row lock keeps sequence numbering
// safe against concurrent transition writes.
func (s *AuditStore) RecordAnomaly(
	ctx context.Context, tenantID, itemID, action, actor string, detail map[string]any,
) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	// Lock the item row if it exists so the MAX+1 sequence cannot race.
	var dummy string
	err = tx.QueryRow(ctx, "SELECT id FROM approval_items WHERE id = $1 FOR UPDATE", itemID).Scan(&dummy)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("locking item for anomaly record: %w", err)
	}

	entry := &models.AuditEntry{
		ItemID:   itemID,
		TenantID: tenantID,
		Action:   action,
		Actor:    actor,
		Detail:   detail,
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// purgeBatchSize limits the number of rows deleted per transaction to avoid
// holding long locks on approval_audit_log.
const purgeBatchSize = 5000

// PurgeOldEntries deletes a tenant's audit entries older than retentionDays
// in batches. Returns the number of deleted entries.
func (s *AuditStore) PurgeOldEntries(
	ctx context.Context, tenantID string, retentionDays int,
) (int, error) {
	var totalDeleted int

	for {
		batchCtx, cancel := withTimeout(ctx)

		deleted, err := s.purgeBatch(batchCtx, tenantID, retentionDays)
		cancel()

		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < purgeBatchSize {
			break
		}
	}

	return totalDeleted, nil
}

func (s *AuditStore) purgeBatch(ctx context.Context, tenantID string, retentionDays int) (int, error) {
	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	tag, err := tx.Exec(ctx,
		`DELETE FROM approval_audit_log WHERE ctid IN (
			SELECT ctid FROM approval_audit_log
			WHERE tenant_id = $1 AND created_at < NOW() - make_interval(days => $2)
			LIMIT $3
		)`,
		tenantID, retentionDays, purgeBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("purging audit entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

// buildAuditFilter builds the WHERE clause and args from AuditQueryOpts.
func buildAuditFilter(tenantID string, opts models.AuditQueryOpts) (where string, args []any, nextArg int) {
	conditions := []string{"tenant_id = $1"}
	args = append(args, tenantID)
	argIdx := 2

	if opts.ItemID != "" {
		conditions = append(conditions, "item_id = $"+strconv.Itoa(argIdx))
		args = append(args, opts.ItemID)
		argIdx++
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = $"+strconv.Itoa(argIdx))
		args = append(args, opts.Action)
		argIdx++
	}
	if opts.Since != nil {
		conditions = append(conditions, "created_at >= $"+strconv.Itoa(argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		conditions = append(conditions, "created_at < $"+strconv.Itoa(argIdx))
		args = append(args, *opts.Until)
		argIdx++
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argIdx
}

// scanAuditRows scans audit entries from a query result.
func scanAuditRows(rows pgx.Rows) ([]models.AuditEntry, error) {
	entries := make([]models.AuditEntry, 0, 16)

	for rows.Next() {
		var (
			e          models.AuditEntry
			prev, next *string
			detailJSON []byte
		)

		if err := rows.Scan(&e.ItemID, &e.SequenceNumber, &e.TenantID, &e.Action, &e.Actor, &prev, &next, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if prev != nil {
			e.PreviousStatus = models.Status(*prev)
		}
		if next != nil {
			e.NewStatus = models.Status(*next)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshaling audit detail: %w", err)
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
