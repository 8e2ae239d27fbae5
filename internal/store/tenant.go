package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/approvio/approvio/internal/dbpool"
)

// TenantStore handles tenant lookups (API key → tenant ID, workspace owner).
type TenantStore struct {
	Pool *dbpool.Pool
}

// NewTenantStore creates a new TenantStore.
func NewTenantStore(pool *dbpool.Pool) *TenantStore {
	return &TenantStore{Pool: pool}
}

// GetTenantByAPIKey looks up a tenant ID by API key hash.
func (s *TenantStore) GetTenantByAPIKey(ctx context.Context, apiKey string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	hash := sha256.Sum256([]byte(apiKey))
	apiKeyHash := hex.EncodeToString(hash[:])

	var tenantID string

	err := s.Pool.QueryRow(ctx, "SELECT id FROM tenants WHERE api_key_hash = $1", apiKeyHash).Scan(&tenantID)
	if err != nil {
		return "", fmt.Errorf("looking up tenant by API key: %w", err)
	}

	return tenantID, nil
}

// GetWorkspaceOwner returns the tenant's owner user, the escalation target of
// last resort when no fallback approver is configured.
func (s *TenantStore) GetWorkspaceOwner(ctx context.Context, tenantID string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var owner string

	err := s.Pool.QueryRow(ctx, "SELECT owner_user_id FROM tenants WHERE id = $1", tenantID).Scan(&owner)
	if err != nil {
		return "", fmt.Errorf("looking up workspace owner: %w", err)
	}

	return owner, nil
}
