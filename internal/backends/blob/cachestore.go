package blob

import (
	"context"
	"inboxlens/internal/types"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// CacheStore is the whole-blob compatibility backend: the entire cache map
// lives under one file, zstd-compressed, and every Put rewrites it in full.
// This matches the original single-blob storage contract; the per-key redis
// and ddb backends are preferred since a write here costs O(total cache
// size).
type CacheStore struct {
	mu      sync.Mutex
	path    string
	entries map[string][]byte
}

// NewCacheStore loads the blob at path, or starts empty when the file does
// not exist yet.
func NewCacheStore(path string) (*CacheStore, error) {
	s := &CacheStore{path: path, entries: make(map[string][]byte)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, types.Err(types.ErrCacheStoreAccess, err, "")
	}
	plain, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, types.Err(types.ErrCacheStoreAccess, err, "corrupt cache blob %s", path)
	}
	if err := json.Unmarshal(plain, &s.entries); err != nil {
		return nil, types.Err(types.ErrCacheStoreAccess, err, "corrupt cache blob %s", path)
	}
	return s, nil
}

func (s *CacheStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	out := make([]byte, len(entry))
	copy(out, entry)
	return out, nil
}

func (s *CacheStore) Put(_ context.Context, key string, entry []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), entry...)
	return s.saveLocked()
}

func (s *CacheStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return s.saveLocked()
}

func (s *CacheStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]byte)
	return s.saveLocked()
}

// saveLocked rewrites the full blob atomically via a temp file rename.
// Caller holds the mutex.
func (s *CacheStore) saveLocked() error {
	plain, err := json.Marshal(s.entries)
	if err != nil {
		return types.Err(types.ErrCacheStoreAccess, err, "")
	}
	compressed := enc.EncodeAll(plain, nil)
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.Err(types.ErrCacheStoreAccess, err, "")
	}
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return types.Err(types.ErrCacheStoreAccess, err, "")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return types.Err(types.ErrCacheStoreAccess, err, "")
	}
	return nil
}
