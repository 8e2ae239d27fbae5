package service

import (
	"fmt"
	"time"

	"github.com/approvio/approvio/internal/models"
)

// ReplayedState is the portion of an item reconstructed from its audit
// trail. Because every transition commits its audit entry in the same
// transaction (and Postgres NOW() is the transaction timestamp), the entry
// timestamps equal the item's resolved_at / last_escalated_at columns.
type ReplayedState struct {
	Status          models.Status
	Resolution      *models.Resolution
	DueAt           time.Time
	ResolvedAt      *time.Time
	EscalatedTo     *string
	LastEscalatedAt *time.Time
}

// ReplayTrail folds an item's ordered audit entries into its current state.
// Non-transition entries (ignored duplicates, anomalies) are skipped, so the
// result is identical regardless of how many duplicates were delivered.
func ReplayTrail(entries []models.AuditEntry) (*ReplayedState, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty audit trail")
	}

	if entries[0].Action != models.AuditCreated {
		return nil, fmt.Errorf("trail must start with %q, got %q", models.AuditCreated, entries[0].Action)
	}

	state := &ReplayedState{Status: models.StatusPending}

	dueAt, err := detailTime(entries[0].Detail, "due_at")
	if err != nil {
		return nil, fmt.Errorf("created entry: %w", err)
	}
	state.DueAt = dueAt

	for i := range entries[1:] {
		e := &entries[1:][i]

		switch e.Action {
		case models.AuditAutoApproved:
			at := e.CreatedAt
			state.Status = models.StatusAutoApproved
			state.ResolvedAt = &at
			state.Resolution = &models.Resolution{
				Decision: models.DecisionApprove,
				Notes:    "confidence above auto-approval threshold",
			}

		case models.AuditApproved, models.AuditRejected, models.AuditBulkApplied:
			if state.Status.IsTerminal() {
				return nil, fmt.Errorf("entry %d: decision after terminal state %q", e.SequenceNumber, state.Status)
			}

			at := e.CreatedAt
			state.Status = e.NewStatus
			state.ResolvedAt = &at
			state.Resolution = resolutionFromDetail(e.Detail)

		case models.AuditEscalated:
			at := e.CreatedAt
			target, _ := e.Detail["escalated_to"].(string)
			state.EscalatedTo = &target
			state.LastEscalatedAt = &at

		case models.AuditIgnoredDuplicate, models.AuditTenantMismatch, models.AuditCreated:
			// No state effect; duplicates and anomalies are trace-only.

		default:
			return nil, fmt.Errorf("entry %d: unknown action %q", e.SequenceNumber, e.Action)
		}
	}

	return state, nil
}

// Matches reports whether the replayed state agrees with the live record on
// status, resolution, due date and escalation fields.
func (r *ReplayedState) Matches(item *models.ApprovalItem) bool {
	if r.Status != item.Status || !r.DueAt.Equal(item.DueAt) {
		return false
	}

	if (r.Resolution == nil) != (item.Resolution == nil) {
		return false
	}
	if r.Resolution != nil && r.Resolution.Decision != item.Resolution.Decision {
		return false
	}

	if (r.EscalatedTo == nil) != (item.EscalatedTo == nil) {
		return false
	}
	if r.EscalatedTo != nil && *r.EscalatedTo != *item.EscalatedTo {
		return false
	}

	return true
}

// resolutionFromDetail rebuilds a resolution payload from an audit entry.
func resolutionFromDetail(detail map[string]any) *models.Resolution {
	res := &models.Resolution{}

	if d, ok := detail["decision"].(string); ok {
		res.Decision = d
	}
	if n, ok := detail["notes"].(string); ok {
		res.Notes = n
	}
	if m, ok := detail["modifications"].(map[string]any); ok {
		res.Modifications = m
	}

	return res
}

// detailTime extracts a timestamp from an audit detail map, tolerating both
// native time.Time values and the RFC 3339 strings a JSONB round trip yields.
func detailTime(detail map[string]any, key string) (time.Time, error) {
	v, ok := detail[key]
	if !ok {
		return time.Time{}, fmt.Errorf("detail missing %q", key)
	}

	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing detail %q: %w", key, err)
		}

		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("detail %q has unexpected type %T", key, v)
	}
}
