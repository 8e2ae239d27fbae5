package store

import (
	"context"
	"fmt"
)

// DedupStore handles maintenance of the inbound_dedup table. Key insertion
// happens inside item transactions (see insertDedup); this store only owns
// the TTL cleanup.
type DedupStore struct {
	Base
}

// NewDedupStore creates a DedupStore.
func NewDedupStore(base Base) *DedupStore {
	return &DedupStore{Base: base}
}

// PurgeExpired deletes dedup records past their expiry. The TTL must outlive
// the bus redelivery window, so anything expired can no longer be redelivered.
// Returns the number of deleted records.
func (s *DedupStore) PurgeExpired(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, "DELETE FROM inbound_dedup WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("purging expired dedup records: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
