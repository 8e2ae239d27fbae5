package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/approvio/approvio/internal/models"
)

// itemColumns is the canonical column list for scanning approval items.
const itemColumns = `id, tenant_id, type, title, description, confidence_score,
	confidence_factors, ai_recommendation, ai_reasoning, tier, status,
	requested_by, assigned_to, escalated_to, created_at, due_at, resolved_at,
	last_escalated_at, resolution, version`

// ItemStore owns all reads and writes of approval_items. Every mutation is
// a single transaction that locks the row, applies the change with a version
// bump, and appends the audit entry.
type ItemStore struct {
	Base
}

// NewItemStore creates an ItemStore.
func NewItemStore(base Base) *ItemStore {
	return &ItemStore{Base: base}
}

// CreateFromProposal inserts a new item together with its idempotency key and
// creation audit entries. Returns models.ErrDuplicateKey when the proposal
// was already processed (at-least-once redelivery); nothing is written then.
func (s *ItemStore) CreateFromProposal(
	ctx context.Context,
	item *models.ApprovalItem,
	idempotencyKey string,
	dedupTTL time.Duration,
) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, item.TenantID)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if err := insertDedup(ctx, tx, item.TenantID, idempotencyKey, models.SubjectActionProposed, dedupTTL); err != nil {
		return err
	}

	factorsJSON, resolutionJSON, err := marshalItemJSON(item)
	if err != nil {
		return err
	}

	query := `INSERT INTO approval_items
		(id, tenant_id, type, title, description, confidence_score, confidence_factors,
		 ai_recommendation, ai_reasoning, tier, status, requested_by, assigned_to,
		 created_at, due_at, resolved_at, resolution, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)`

	_, err = tx.Exec(ctx, query,
		item.ID, item.TenantID, item.Type, item.Title, item.Description,
		item.ConfidenceScore, factorsJSON, item.AIRecommendation, item.AIReasoning,
		item.Tier, item.Status, item.RequestedBy, item.AssignedTo,
		item.CreatedAt, item.DueAt, item.ResolvedAt, resolutionJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.ErrDuplicateKey
		}

		return fmt.Errorf("inserting item: %w", err)
	}

	created := &models.AuditEntry{
		ItemID:   item.ID,
		TenantID: item.TenantID,
		Action:   models.AuditCreated,
		Actor:    models.ActorSystem,
		// The initial state before routing is pending; auto-approval is a
		// distinct second entry so replay mirrors the transition order.
		NewStatus: models.StatusPending,
		Detail: map[string]any{
			"tier":             string(item.Tier),
			"due_at":           item.DueAt,
			"confidence_score": item.ConfidenceScore,
			"requested_by":     item.RequestedBy,
		},
	}
	if err := appendAudit(ctx, tx, created); err != nil {
		return err
	}

	if item.Status == models.StatusAutoApproved {
		auto := &models.AuditEntry{
			ItemID:         item.ID,
			TenantID:       item.TenantID,
			Action:         models.AuditAutoApproved,
			Actor:          models.ActorSystem,
			PreviousStatus: models.StatusPending,
			NewStatus:      models.StatusAutoApproved,
			Detail:         map[string]any{"confidence_score": item.ConfidenceScore},
		}
		if err := appendAudit(ctx, tx, auto); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing create item: %w", err)
	}

	return nil
}

// GetItem returns a single item. The lookup is by bare id so a valid id owned
// by another tenant surfaces as models.ErrTenantMismatch, never as data.
func (s *ItemStore) GetItem(ctx context.Context, tenantID, itemID string) (*models.ApprovalItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	item, err := fetchItem(ctx, tx, itemID, false)
	if err != nil {
		return nil, err
	}

	if item.TenantID != tenantID {
		return nil, models.ErrTenantMismatch
	}

	return item, nil
}

// ApplyDecision applies a terminal decision to an item, appending the audit
// entry in the same transaction. The returned bool is false when the item was
// already terminal: the prior resolution is returned unchanged and a
// decision_ignored_duplicate entry is appended instead.
//
// An optional idempotencyKey dedupes bus-delivered decisions; direct HTTP
// calls pass "".
func (s *ItemStore) ApplyDecision( //nolint:gocognit // transition guards are inherently branchy.
	ctx context.Context,
	tenantID, itemID string,
	req models.DecisionRequest,
	auditAction string,
	idempotencyKey string,
	dedupTTL time.Duration,
) (*models.ApprovalItem, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return nil, false, fmt.Errorf("applying decision: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if idempotencyKey != "" {
		if err := insertDedup(ctx, tx, tenantID, idempotencyKey, models.SubjectDecisionSubmitted, dedupTTL); err != nil {
			return nil, false, err
		}
	}

	// Row lock serializes all transitions for this item; the version check
	// below only guards staleness of the caller's earlier read.
	item, err := fetchItem(ctx, tx, itemID, true)
	if err != nil {
		return nil, false, err
	}

	if item.TenantID != tenantID {
		return nil, false, models.ErrTenantMismatch
	}

	if req.ExpectedVersion > 0 && req.ExpectedVersion != item.Version {
		return nil, false, models.ErrVersionConflict
	}

	if item.Status.IsTerminal() {
		ignored := &models.AuditEntry{
			ItemID:         item.ID,
			TenantID:       tenantID,
			Action:         models.AuditIgnoredDuplicate,
			Actor:          req.Actor,
			PreviousStatus: item.Status,
			NewStatus:      item.Status,
			Detail:         map[string]any{"attempted_decision": req.Decision},
		}
		if err := appendAudit(ctx, tx, ignored); err != nil {
			return nil, false, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("committing ignored duplicate: %w", err)
		}

		return item, false, nil
	}

	newStatus := models.StatusApproved
	if req.Decision == models.DecisionReject {
		newStatus = models.StatusRejected
	}

	resolution := &models.Resolution{
		Decision:      req.Decision,
		Notes:         req.Notes,
		Modifications: req.Modifications,
	}

	resolutionJSON, err := json.Marshal(resolution)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling resolution: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE approval_items
		SET status = $1, resolution = $2, resolved_at = NOW(), version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING `+itemColumns,
		newStatus, resolutionJSON, itemID, item.Version,
	)

	updated, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, models.ErrVersionConflict
		}

		return nil, false, fmt.Errorf("updating item: %w", err)
	}

	entry := &models.AuditEntry{
		ItemID:         item.ID,
		TenantID:       tenantID,
		Action:         auditAction,
		Actor:          req.Actor,
		PreviousStatus: item.Status,
		NewStatus:      newStatus,
		Detail:         map[string]any{"decision": req.Decision},
	}
	if req.Notes != "" {
		entry.Detail["notes"] = req.Notes
	}
	if len(req.Modifications) > 0 {
		entry.Detail["modifications"] = req.Modifications
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing decision: %w", err)
	}

	return updated, true, nil
}

// Escalate reassigns an overdue pending item via compare-and-set on version.
// Returns models.ErrVersionConflict when another scheduler replica won the
// race or the item is no longer pending; callers skip silently then.
func (s *ItemStore) Escalate(
	ctx context.Context,
	tenantID, itemID, escalatedTo string,
	expectedVersion int64,
) (*models.ApprovalItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("escalating item: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	row := tx.QueryRow(ctx, `
		UPDATE approval_items
		SET escalated_to = $1, last_escalated_at = NOW(), version = version + 1
		WHERE id = $2 AND tenant_id = $3 AND status = 'pending' AND version = $4
		RETURNING `+itemColumns,
		escalatedTo, itemID, tenantID, expectedVersion,
	)

	item, err := scanItem(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrVersionConflict
		}

		return nil, fmt.Errorf("escalating item: %w", err)
	}

	entry := &models.AuditEntry{
		ItemID:         itemID,
		TenantID:       tenantID,
		Action:         models.AuditEscalated,
		Actor:          models.ActorScheduler,
		PreviousStatus: models.StatusPending,
		NewStatus:      models.StatusPending,
		Detail:         map[string]any{"escalated_to": escalatedTo},
	}
	if err := appendAudit(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing escalation: %w", err)
	}

	return item, nil
}

// ListPending returns a page of pending items for a tenant.
// Returns items, hasMore flag, and any error.
func (s *ItemStore) ListPending(
	ctx context.Context,
	tenantID string,
	filter models.ListFilter,
) ([]models.ApprovalItem, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx.

	where, args, argIdx := buildPendingFilter(tenantID, filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		"SELECT %s FROM approval_items %s ORDER BY due_at ASC LIMIT $%d OFFSET $%d",
		itemColumns, where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, filter.Offset)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("listing pending items: %w", err)
	}
	defer rows.Close()

	items := make([]models.ApprovalItem, 0, limit+1)
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	return items, hasMore, nil
}

// ListOverdue returns pending items past their due date whose per-tenant
// escalation cool-down has elapsed, across all tenants, oldest first.
func (s *ItemStore) ListOverdue(ctx context.Context, limit int) ([]models.ApprovalItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM approval_items i
		LEFT JOIN tenant_settings ts ON ts.tenant_id = i.tenant_id
		WHERE i.status = 'pending'
		  AND i.due_at < NOW()
		  AND (i.last_escalated_at IS NULL
		       OR i.last_escalated_at < NOW() - make_interval(mins => COALESCE(ts.escalation_cooldown_minutes, %d)))
		ORDER BY i.due_at ASC
		LIMIT $1`,
		prefixColumns("i"), models.DefaultCooldownMinutes,
	)

	rows, err := s.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning overdue items: %w", err)
	}
	defer rows.Close()

	items := make([]models.ApprovalItem, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning overdue item: %w", err)
		}
		items = append(items, *item)
	}

	return items, nil
}

// buildPendingFilter builds the WHERE clause and args for ListPending.
func buildPendingFilter(tenantID string, f models.ListFilter) (where string, args []any, nextArg int) {
	conditions := []string{"tenant_id = $1", "status = 'pending'"}
	args = append(args, tenantID)
	argIdx := 2

	if f.Type != "" {
		conditions = append(conditions, "type = $"+strconv.Itoa(argIdx))
		args = append(args, f.Type)
		argIdx++
	}
	if f.Tier != "" {
		conditions = append(conditions, "tier = $"+strconv.Itoa(argIdx))
		args = append(args, string(f.Tier))
		argIdx++
	}
	if f.AssignedTo != "" {
		conditions = append(conditions, "(assigned_to = $"+strconv.Itoa(argIdx)+" OR escalated_to = $"+strconv.Itoa(argIdx)+")")
		args = append(args, f.AssignedTo)
		argIdx++
	}
	if f.OverdueOnly {
		conditions = append(conditions, "due_at < NOW()")
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argIdx
}

// fetchItem loads one item by bare id, optionally locking the row.
func fetchItem(ctx context.Context, tx pgx.Tx, itemID string, forUpdate bool) (*models.ApprovalItem, error) {
	query := "SELECT " + itemColumns + " FROM approval_items WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	item, err := scanItem(tx.QueryRow(ctx, query, itemID).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrItemNotFound
		}

		return nil, fmt.Errorf("fetching item: %w", err)
	}

	return item, nil
}

// scanItem scans a single approval item from a row scan function.
func scanItem(scan func(dest ...any) error) (*models.ApprovalItem, error) {
	var (
		item           models.ApprovalItem
		factorsJSON    []byte
		resolutionJSON []byte
	)

	err := scan(
		&item.ID, &item.TenantID, &item.Type, &item.Title, &item.Description,
		&item.ConfidenceScore, &factorsJSON, &item.AIRecommendation, &item.AIReasoning,
		&item.Tier, &item.Status, &item.RequestedBy, &item.AssignedTo, &item.EscalatedTo,
		&item.CreatedAt, &item.DueAt, &item.ResolvedAt, &item.LastEscalatedAt,
		&resolutionJSON, &item.Version,
	)
	if err != nil {
		return nil, err
	}

	if factorsJSON != nil {
		if err := json.Unmarshal(factorsJSON, &item.ConfidenceFactors); err != nil {
			return nil, fmt.Errorf("unmarshaling confidence factors: %w", err)
		}
	}
	if resolutionJSON != nil {
		if err := json.Unmarshal(resolutionJSON, &item.Resolution); err != nil {
			return nil, fmt.Errorf("unmarshaling resolution: %w", err)
		}
	}

	return &item, nil
}

// marshalItemJSON serializes the JSONB columns of an item.
func marshalItemJSON(item *models.ApprovalItem) (factors, resolution []byte, err error) {
	if item.ConfidenceFactors != nil {
		if factors, err = json.Marshal(item.ConfidenceFactors); err != nil {
			return nil, nil, fmt.Errorf("marshaling confidence factors: %w", err)
		}
	}
	if item.Resolution != nil {
		if resolution, err = json.Marshal(item.Resolution); err != nil {
			return nil, nil, fmt.Errorf("marshaling resolution: %w", err)
		}
	}

	return factors, resolution, nil
}

// prefixColumns qualifies itemColumns with a table alias.
func prefixColumns(alias string) string {
	cols := strings.Split(itemColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}

	return strings.Join(cols, ", ")
}
