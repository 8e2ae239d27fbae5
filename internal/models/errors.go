package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrInvalidDecision = errors.New("decision must be approve or reject")
	ErrMissingActor    = errors.New("actor is required")
	ErrInvalidVersion  = errors.New("expected_version must not be negative")
	ErrEmptyBatch      = errors.New("item_ids must not be empty")
	ErrMissingTenant   = errors.New("tenant_id is required")
	ErrMissingItemID   = errors.New("item_id is required")
	ErrMissingTitle    = errors.New("title is required")
	ErrMissingType     = errors.New("type is required")
	ErrMissingKey      = errors.New("idempotency key is required")
	ErrInvalidScore    = errors.New("confidence_score must be between 0 and 100")
)

// Sentinel errors for lifecycle operations.
var (
	// ErrItemNotFound is terminal for the call; the item does not exist
	// within the caller's visibility.
	ErrItemNotFound = errors.New("approval item not found")

	// ErrVersionConflict signals the stored version advanced past the
	// caller's expectation. Recoverable: reread and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrTenantMismatch is a hard boundary violation: the item exists but
	// belongs to another tenant. Always rejected, always audited.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrDuplicateKey indicates an idempotency-key replay or unique
	// constraint violation (maps to HTTP 409 Conflict).
	ErrDuplicateKey = errors.New("duplicate key")
)

// ErrBatchTooLarge returns a validation error for oversized bulk batches.
func ErrBatchTooLarge(maxItems int) error {
	return fmt.Errorf("batch exceeds maximum size of %d", maxItems)
}
