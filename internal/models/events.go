package models

import "time"

// Inbound event subjects consumed from the bus.
const (
	SubjectActionProposed    = "approvals.action.proposed"
	SubjectDecisionSubmitted = "approvals.decision.submitted"
)

// Outbound event subjects. The trailing segment is the event kind.
const (
	SubjectApprovalCreated      = "approvals.event.created"
	SubjectApprovalAutoApproved = "approvals.event.auto_approved"
	SubjectApprovalResolved     = "approvals.event.resolved"
	SubjectApprovalEscalated    = "approvals.event.escalated"
)

// ActionProposedEvent is published by an external module when an AI-proposed
// action needs an approval verdict. ProposalID doubles as the idempotency key
// for at-least-once delivery. Unknown payload fields are ignored; missing
// required fields reject the event.
type ActionProposedEvent struct {
	TenantID          string             `json:"tenant_id"`
	ProposalID        string             `json:"proposal_id"`
	Type              string             `json:"type"`
	Title             string             `json:"title"`
	Description       string             `json:"description,omitempty"`
	ConfidenceScore   int                `json:"confidence_score"`
	ConfidenceFactors []ConfidenceFactor `json:"confidence_factors,omitempty"`
	AIRecommendation  string             `json:"ai_recommendation,omitempty"`
	AIReasoning       string             `json:"ai_reasoning,omitempty"`
	RequestedBy       string             `json:"requested_by"`
	AssignedTo        string             `json:"assigned_to,omitempty"`
}

// Validate rejects malformed proposals at the adapter boundary.
func (e ActionProposedEvent) Validate() error {
	if e.TenantID == "" {
		return ErrMissingTenant
	}
	if e.ProposalID == "" {
		return ErrMissingKey
	}
	if e.Type == "" {
		return ErrMissingType
	}
	if e.Title == "" {
		return ErrMissingTitle
	}
	if e.ConfidenceScore < 0 || e.ConfidenceScore > 100 {
		return ErrInvalidScore
	}
	return nil
}

// DecisionSubmittedEvent carries a human or automation decision for an
// existing item. IdempotencyKey is caller-assigned and scoped to the tenant.
type DecisionSubmittedEvent struct {
	TenantID       string         `json:"tenant_id"`
	ItemID         string         `json:"item_id"`
	Decision       string         `json:"decision"`
	Actor          string         `json:"actor"`
	Notes          string         `json:"notes,omitempty"`
	Modifications  map[string]any `json:"modifications,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// Validate rejects malformed decision events at the adapter boundary.
func (e DecisionSubmittedEvent) Validate() error {
	if e.TenantID == "" {
		return ErrMissingTenant
	}
	if e.ItemID == "" {
		return ErrMissingItemID
	}
	if e.IdempotencyKey == "" {
		return ErrMissingKey
	}
	if e.Decision != DecisionApprove && e.Decision != DecisionReject {
		return ErrInvalidDecision
	}
	if e.Actor == "" {
		return ErrMissingActor
	}
	return nil
}

// ApprovalCreatedEvent notifies observers of a newly created item.
type ApprovalCreatedEvent struct {
	ItemID   string    `json:"item_id"`
	TenantID string    `json:"tenant_id"`
	Tier     Tier      `json:"tier"`
	Status   Status    `json:"status"`
	DueAt    time.Time `json:"due_at"`
}

// ApprovalAutoApprovedEvent notifies observers that routing approved an item
// without a human step.
type ApprovalAutoApprovedEvent struct {
	ItemID   string `json:"item_id"`
	TenantID string `json:"tenant_id"`
}

// ApprovalResolvedEvent notifies the requesting module of the terminal
// decision. Emitted exactly once per item, on the first effective transition.
type ApprovalResolvedEvent struct {
	ItemID     string `json:"item_id"`
	TenantID   string `json:"tenant_id"`
	Decision   string `json:"decision"`
	ResolvedBy string `json:"resolved_by"`
}

// ApprovalEscalatedEvent notifies observers that an overdue item was
// reassigned. Escalation never resolves the item.
type ApprovalEscalatedEvent struct {
	ItemID      string `json:"item_id"`
	TenantID    string `json:"tenant_id"`
	EscalatedTo string `json:"escalated_to"`
}

// QuarantinedEvent is an inbound event that exhausted its redeliveries or
// failed validation, parked for operator inspection instead of being dropped.
type QuarantinedEvent struct {
	ID        int64     `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Subject   string    `json:"subject"`
	Payload   []byte    `json:"payload"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}
