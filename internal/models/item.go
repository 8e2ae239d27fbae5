package models

import "time"

// Status is the lifecycle state of an approval item.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAutoApproved Status = "auto_approved"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusExpired      Status = "expired"
)

// IsTerminal reports whether the status admits no further decisions.
// Expired is not terminal: an overdue item stays decidable until resolved.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAutoApproved, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Tier is the review depth routing assigned from the confidence score.
type Tier string

const (
	TierAuto  Tier = "auto"
	TierQuick Tier = "quick"
	TierFull  Tier = "full"
)

// Decisions a reviewer (or the router) can apply.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ConfidenceFactor is one named component of an AI confidence score: the
// factor's own score, its weight in the aggregate, and the explanation.
type ConfidenceFactor struct {
	Name   string  `json:"name"`
	Score  int     `json:"score"`
	Weight float64 `json:"weight,omitempty"`
	Detail string  `json:"detail,omitempty"`
}

// Resolution records the terminal verdict on an item.
type Resolution struct {
	Decision      string         `json:"decision"`
	Notes         string         `json:"notes,omitempty"`
	Modifications map[string]any `json:"modifications,omitempty"`
}

// ApprovalItem is a pending or resolved approval request. TenantID is never
// serialized; tenancy is carried by the authenticated context, not payloads.
type ApprovalItem struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"-"`
	Type              string             `json:"type"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	ConfidenceScore   int                `json:"confidence_score"`
	ConfidenceFactors []ConfidenceFactor `json:"confidence_factors,omitempty"`
	AIRecommendation  string             `json:"ai_recommendation,omitempty"`
	AIReasoning       string             `json:"ai_reasoning,omitempty"`
	Tier              Tier               `json:"tier"`
	Status            Status             `json:"status"`
	RequestedBy       string             `json:"requested_by"`
	AssignedTo        *string            `json:"assigned_to,omitempty"`
	EscalatedTo       *string            `json:"escalated_to,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	DueAt             time.Time          `json:"due_at"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
	LastEscalatedAt   *time.Time         `json:"last_escalated_at,omitempty"`
	Resolution        *Resolution        `json:"resolution,omitempty"`
	Version           int64              `json:"version"`
}

// DecisionRequest is a single decision on one item. ExpectedVersion of zero
// skips the optimistic concurrency check.
type DecisionRequest struct {
	Decision        string         `json:"decision"`
	Actor           string         `json:"actor"`
	Notes           string         `json:"notes,omitempty"`
	Modifications   map[string]any `json:"modifications,omitempty"`
	ExpectedVersion int64          `json:"expected_version,omitempty"`
}

// Validate checks the request before any row is touched.
func (r DecisionRequest) Validate() error {
	if r.Decision != DecisionApprove && r.Decision != DecisionReject {
		return ErrInvalidDecision
	}
	if r.Actor == "" {
		return ErrMissingActor
	}
	if r.ExpectedVersion < 0 {
		return ErrInvalidVersion
	}
	return nil
}

// DecisionResult reports the outcome of a decision. Applied is false when the
// item was already terminal and the decision was recorded as a duplicate.
type DecisionResult struct {
	Item    *ApprovalItem `json:"item"`
	Applied bool          `json:"applied"`
}

// Per-item skip reasons reported by bulk decisions.
const (
	SkipReasonAlreadyResolved = "already_resolved"
	SkipReasonNotFound        = "not_found"
	SkipReasonTenantMismatch  = "tenant_mismatch"
	SkipReasonVersionConflict = "version_conflict"
	SkipReasonInternal        = "internal_error"
)

// maxBulkItems bounds one bulk call. Larger batches must be split by the
// caller so a single request cannot hold row locks across thousands of items.
const maxBulkItems = 500

// BulkRequest applies one decision to every listed item.
type BulkRequest struct {
	ItemIDs       []string       `json:"item_ids"`
	Decision      string         `json:"decision"`
	Actor         string         `json:"actor"`
	Notes         string         `json:"notes,omitempty"`
	Modifications map[string]any `json:"modifications,omitempty"`
}

// Validate checks the batch before any item is touched.
func (r BulkRequest) Validate() error {
	if len(r.ItemIDs) == 0 {
		return ErrEmptyBatch
	}
	if len(r.ItemIDs) > maxBulkItems {
		return ErrBatchTooLarge(maxBulkItems)
	}
	if r.Decision != DecisionApprove && r.Decision != DecisionReject {
		return ErrInvalidDecision
	}
	if r.Actor == "" {
		return ErrMissingActor
	}
	return nil
}

// SkippedItem is one item a bulk call could not decide, with the reason.
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult reports per-item outcomes of a bulk decision.
type BulkResult struct {
	Succeeded []string      `json:"succeeded"`
	Skipped   []SkippedItem `json:"skipped"`
}

// ListFilter narrows and pages the pending-items listing.
type ListFilter struct {
	Type        string
	Tier        Tier
	AssignedTo  string
	OverdueOnly bool
	Limit       int
	Offset      int
}
