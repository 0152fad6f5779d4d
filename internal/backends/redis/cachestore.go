package redis

import (
	"context"
	"errors"
	"fmt"
	"inboxlens/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	entryKeyNameTemplate = "_inboxlens_thread_%s"
)

// CacheStore implements ports.CacheStore with one Redis key per entry.
// No server-side expiry is set: freshness is decided read-side, so a stale
// entry stays until the next write replaces it.
type CacheStore struct {
	cli *redis.Client
}

func NewCacheStore(cli *redis.Client) *CacheStore {
	return &CacheStore{cli: cli}
}

func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	out := s.cli.Get(ctx, getEntryKeyName(key))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return nil, types.ErrNotFound
		}
		return nil, types.Err(types.ErrCacheStoreAccess, out.Err(), "")
	}
	return []byte(out.Val()), nil
}

func (s *CacheStore) Put(ctx context.Context, key string, entry []byte) error {
	out := s.cli.Set(ctx, getEntryKeyName(key), entry, 0)
	if out.Err() != nil {
		return types.Err(types.ErrCacheStoreAccess, out.Err(), "")
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key string) error {
	out := s.cli.Del(ctx, getEntryKeyName(key))
	return out.Err()
}

func (s *CacheStore) ClearAll(ctx context.Context) error {
	out := s.cli.Keys(ctx, getEntryKeyName("*"))
	if out.Err() != nil {
		return out.Err()
	}
	keys := out.Val()
	if len(keys) == 0 {
		return nil
	}
	outDel := s.cli.Del(ctx, keys...)
	return outDel.Err()
}

func getEntryKeyName(key string) string {
	return fmt.Sprintf(entryKeyNameTemplate, key)
}
