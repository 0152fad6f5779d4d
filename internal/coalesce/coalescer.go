package coalesce

import (
	"context"
	"inboxlens/internal/types"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultWindow is the quiescence window applied when the caller passes 0.
	DefaultWindow = 150 * time.Millisecond

	// flushTimeout bounds one downstream flush call.
	flushTimeout = 30 * time.Second
)

// Consumer receives the resolved data for a key it registered interest in.
type Consumer func(key string, data types.ThreadData)

// FlushFunc resolves a snapshot of keys in one downstream call. Keys that
// could not be resolved are simply absent from the returned map.
type FlushFunc func(ctx context.Context, keys []string) (map[string]types.ThreadData, error)

// Coalescer converts a high-frequency stream of per-item discovery signals
// into infrequent batched downstream calls. Every Register restarts a single
// debounce timer; when the timer fires the pending map is snapshotted and
// cleared, so arrivals during an in-flight flush accumulate into the next,
// independent flush cycle. No arrival is dropped; at worst it waits for the
// next quiescence window.
type Coalescer struct {
	mu         sync.Mutex
	window     time.Duration
	maxPending int
	flush      FlushFunc
	pending    map[string]Consumer
	timer      *time.Timer
	stopped    bool
}

// New builds a Coalescer. maxPending, when positive, force-flushes as soon as
// that many distinct keys accumulate, capping the latency a continuous
// arrival stream could otherwise impose; 0 disables the cap.
func New(window time.Duration, maxPending int, flush FlushFunc) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coalescer{
		window:     window,
		maxPending: maxPending,
		flush:      flush,
		pending:    make(map[string]Consumer),
	}
}

// Register records that consumer wants the eventual result for key and
// restarts the quiescence timer. Repeated registrations for one key keep only
// the most recent consumer, which is the one bound to whatever UI element is
// currently live for that key.
func (c *Coalescer) Register(key string, consumer Consumer) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.pending[key] = consumer
	if c.maxPending > 0 && len(c.pending) >= c.maxPending {
		snap := c.takeLocked()
		c.mu.Unlock()
		go c.dispatch(snap)
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.onTimer)
	c.mu.Unlock()
}

// Flush forces an immediate synchronous flush of whatever is pending.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	snap := c.takeLocked()
	c.mu.Unlock()
	c.dispatch(snap)
}

// Stop halts the timer; subsequent Register calls are ignored. Anything still
// pending is not flushed.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Pending reports the number of keys awaiting the next flush.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coalescer) onTimer() {
	c.mu.Lock()
	snap := c.takeLocked()
	c.mu.Unlock()
	c.dispatch(snap)
}

// takeLocked snapshots and clears the pending map. Caller holds the mutex.
func (c *Coalescer) takeLocked() map[string]Consumer {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	snap := c.pending
	c.pending = make(map[string]Consumer)
	return snap
}

// dispatch runs one flush cycle for a snapshot and fans results out. A
// flush-wide failure produces no notifications and no retry: the host
// environment re-raises discovery naturally.
func (c *Coalescer) dispatch(snap map[string]Consumer) {
	if len(snap) == 0 {
		return
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	results, err := c.flush(ctx, keys)
	if err != nil {
		log.WithError(err).WithField("keys", len(keys)).Error("batch flush failed")
		return
	}
	for k, consumer := range snap {
		data, ok := results[k]
		if !ok || consumer == nil {
			continue
		}
		consumer(k, data)
	}
}
