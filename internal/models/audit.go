package models

import "time"

// Audit actions. One entry is appended per state transition; ignored
// duplicates and boundary anomalies are appended without a status change.
const (
	AuditCreated          = "created"
	AuditAutoApproved     = "auto_approved"
	AuditApproved         = "approved"
	AuditRejected         = "rejected"
	AuditEscalated        = "escalated"
	AuditBulkApplied      = "bulk_applied"
	AuditIgnoredDuplicate = "decision_ignored_duplicate"
	AuditTenantMismatch   = "tenant_mismatch"
)

// AuditEntry is one append-only record in an item's audit trail, keyed by
// (item_id, sequence_number). Entries are never updated or deleted; replaying
// an item's entries in order reconstructs its current state.
type AuditEntry struct {
	ItemID         string         `json:"item_id"`
	SequenceNumber int            `json:"sequence_number"`
	TenantID       string         `json:"-"`
	Action         string         `json:"action"`
	Actor          string         `json:"actor"`
	PreviousStatus Status         `json:"previous_status,omitempty"`
	NewStatus      Status         `json:"new_status,omitempty"`
	Detail         map[string]any `json:"detail,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Well-known actors for entries not attributable to a user.
const (
	ActorSystem    = "system"
	ActorScheduler = "scheduler"
)

// AuditQueryOpts holds filters for the compliance audit query.
type AuditQueryOpts struct {
	ItemID string
	Action string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}
