package corrections

import (
	"context"
	"fmt"
	"inboxlens/internal/ports"
	"inboxlens/internal/types"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

var timeNow = time.Now

// seq disambiguates corrections created within one clock tick.
var seq atomic.Uint64

// Batcher accumulates field-edit corrections and delivers them in one batch,
// at most once. A single `sent` guard covers both delivery paths so a normal
// in-flight send and a teardown-triggered fallback can never double-submit
// the same pending set. The guard is cleared only on confirmed failure: after
// a successful send this batcher is done, matching the lifetime of the
// hosting context.
type Batcher struct {
	mu       sync.Mutex
	api      ports.AnalysisAPI
	collapse bool
	pending  map[string]types.Correction
	sent     bool
}

// NewBatcher builds a Batcher. With collapse set, rapid repeated edits to one
// field fold to last-value-wins before transmission; otherwise every accepted
// edit stays a distinct correction record.
func NewBatcher(api ports.AnalysisAPI, collapse bool) *Batcher {
	return &Batcher{
		api:      api,
		collapse: collapse,
		pending:  make(map[string]types.Correction),
	}
}

// AddCorrection appends a new correction under a freshly synthesized key.
func (b *Batcher) AddCorrection(subjectID, subjectType, fieldName, newValue string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[b.correctionKey(subjectID, fieldName)] = types.Correction{
		SubjectID:   subjectID,
		SubjectType: subjectType,
		FieldName:   fieldName,
		NewValue:    newValue,
	}
}

// SendBatch serializes all pending corrections into one request and awaits
// delivery. It is a no-op while a send is in flight or already confirmed, and
// when nothing is pending. On failure the guard is released and the
// corrections stay pending for a later attempt on either delivery path.
func (b *Batcher) SendBatch(ctx context.Context) error {
	batch, ok := b.claim()
	if !ok {
		return nil
	}
	err := b.api.SubmitCorrections(ctx, batch)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.sent = false
		log.WithError(err).WithField("edits", len(batch)).Error("failed to deliver corrections")
		return err
	}
	b.pending = make(map[string]types.Correction)
	log.WithField("edits", len(batch)).Info("corrections delivered")
	return nil
}

// SendBeaconBatch is the teardown path: it hands the batch to the upstream
// client's fire-and-forget sender and does not wait for a response. An
// accepted enqueue optimistically clears the pending set; a refused enqueue
// releases the guard. Returns whether the enqueue was accepted.
func (b *Batcher) SendBeaconBatch() bool {
	batch, ok := b.claim()
	if !ok {
		return false
	}
	accepted := b.api.EnqueueCorrections(batch)

	b.mu.Lock()
	defer b.mu.Unlock()
	if !accepted {
		b.sent = false
		log.WithField("edits", len(batch)).Warn("beacon enqueue refused; corrections remain pending")
		return false
	}
	b.pending = make(map[string]types.Correction)
	log.WithField("edits", len(batch)).Info("corrections enqueued for teardown delivery")
	return true
}

// HasPendingCorrections reports whether a teardown-time fallback send is
// needed at all.
func (b *Batcher) HasPendingCorrections() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) > 0
}

// PendingCount reports the number of corrections awaiting delivery.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// claim sets the single-flight guard and snapshots the pending set. It fails
// when the guard is already held or nothing is pending.
func (b *Batcher) claim() ([]types.Correction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent || len(b.pending) == 0 {
		return nil, false
	}
	b.sent = true
	batch := make([]types.Correction, 0, len(b.pending))
	for _, c := range b.pending {
		batch = append(batch, c)
	}
	return batch, true
}

func (b *Batcher) correctionKey(subjectID, fieldName string) string {
	if b.collapse {
		return fmt.Sprintf("%s|%s", subjectID, fieldName)
	}
	return fmt.Sprintf("%s|%s|%d.%d", subjectID, fieldName, timeNow().UnixNano(), seq.Add(1))
}
