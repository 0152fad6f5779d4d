package cache

import (
	"context"
	"errors"
	"inboxlens/internal/ports"
	"inboxlens/internal/types"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL is the freshness window applied when the caller passes 0.
const DefaultTTL = 15 * time.Minute

// envelope is the raw entry shape written to the store: the value plus the
// timestamp of the last write.
type envelope struct {
	Value      types.ThreadData `json:"v"`
	InsertedAt int64            `json:"at"`
}

// Timed is a TTL wrapper over a persistent CacheStore. Expiry is lazy, on
// read: a stale entry is reported absent but left in storage until the next
// write replaces it. Store faults never surface to callers -- a failed read
// degrades to a miss and a failed write is logged and swallowed.
type Timed struct {
	store ports.CacheStore
	ttl   time.Duration
}

func NewTimed(store ports.CacheStore, ttl time.Duration) *Timed {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Timed{store: store, ttl: ttl}
}

// Get returns the value and true if an entry exists and is within the TTL.
func (t *Timed) Get(ctx context.Context, key string) (types.ThreadData, bool) {
	env, ok := t.getRaw(ctx, key)
	if !ok {
		return types.ThreadData{}, false
	}
	if EpochTime()-env.InsertedAt > int64(t.ttl.Seconds()) {
		return types.ThreadData{}, false
	}
	return env.Value, true
}

// Set fully replaces the entry and resets its insertion time to now.
func (t *Timed) Set(ctx context.Context, key string, value types.ThreadData) {
	env := envelope{Value: value, InsertedAt: EpochTime()}
	raw, err := json.Marshal(env)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("failed to encode cache entry")
		return
	}
	if err := t.store.Put(ctx, key, raw); err != nil {
		log.WithError(err).WithField("key", key).Error("failed to write cache entry")
	}
}

// Merge reads the current raw entry ignoring TTL (a merge is an authoritative
// update, not a refresh check), applies fn against the existing value -- the
// zero value when absent -- and writes the result back via Set.
func (t *Timed) Merge(ctx context.Context, key string, fn func(types.ThreadData) types.ThreadData) {
	cur := types.ThreadData{}
	if env, ok := t.getRaw(ctx, key); ok {
		cur = env.Value
	}
	t.Set(ctx, key, fn(cur))
}

func (t *Timed) getRaw(ctx context.Context, key string) (envelope, bool) {
	raw, err := t.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			log.WithError(err).WithField("key", key).Warn("cache store read failed; treating as miss")
		}
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.WithError(err).WithField("key", key).Warn("corrupt cache entry; treating as miss")
		return envelope{}, false
	}
	return env, true
}
