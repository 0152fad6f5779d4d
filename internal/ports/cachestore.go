package ports

import (
	"context"
)

// CacheStore persists raw cache entries keyed by thread identity.
// Implementations MUST return types.ErrNotFound for a missing key and MUST NOT
// apply their own expiry: freshness is decided read-side by the cache layer,
// so stale entries stay in storage until overwritten.
type CacheStore interface {
	// Get returns the raw entry bytes for a key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put fully replaces the entry for a key.
	Put(ctx context.Context, key string, entry []byte) error

	Delete(ctx context.Context, key string) error

	// ClearAll purges all entries. Used in tests only.
	ClearAll(ctx context.Context) error
}
