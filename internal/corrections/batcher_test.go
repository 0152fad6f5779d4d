package corrections

import (
	"context"
	"errors"
	"inboxlens/internal/types"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDelivery implements ports.AnalysisAPI for the two corrections paths.
type fakeDelivery struct {
	mu            sync.Mutex
	submitted     [][]types.Correction
	submitErr     error
	block         chan struct{} // when non-nil, SubmitCorrections waits until closed
	enqueued      [][]types.Correction
	refuseEnqueue bool
}

func (f *fakeDelivery) AnalyzeBatch(context.Context, []string) ([]types.AnalysisResult, error) {
	return nil, nil
}

func (f *fakeDelivery) ListRecords(context.Context) ([]map[string]any, error) {
	return nil, nil
}

func (f *fakeDelivery) SubmitCorrections(_ context.Context, edits []types.Correction) error {
	f.mu.Lock()
	f.submitted = append(f.submitted, edits)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.submitErr
}

func (f *fakeDelivery) EnqueueCorrections(edits []types.Correction) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuseEnqueue {
		return false
	}
	f.enqueued = append(f.enqueued, edits)
	return true
}

func (f *fakeDelivery) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func TestDistinctEditsToSameFieldAccumulate(t *testing.T) {
	b := NewBatcher(&fakeDelivery{}, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")
	b.AddCorrection("inv-1", "invoice", "total", "12.00")

	assert.Equal(t, 2, b.PendingCount())
}

func TestCollapseModeFoldsToLastValue(t *testing.T) {
	api := &fakeDelivery{}
	b := NewBatcher(api, true)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")
	b.AddCorrection("inv-1", "invoice", "total", "12.00")
	require.Equal(t, 1, b.PendingCount())

	require.NoError(t, b.SendBatch(context.Background()))
	require.Len(t, api.submitted, 1)
	assert.Equal(t, "12.00", api.submitted[0][0].NewValue)
}

func TestSendBatchDeliversAllPendingInOneCall(t *testing.T) {
	api := &fakeDelivery{}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")
	b.AddCorrection("rcpt-2", "receipt", "vendor", "ACME")

	require.NoError(t, b.SendBatch(context.Background()))
	require.Equal(t, 1, api.submitCount())
	assert.Len(t, api.submitted[0], 2)
	assert.False(t, b.HasPendingCorrections())
}

func TestSendBatchNoopWhenNothingPending(t *testing.T) {
	api := &fakeDelivery{}
	b := NewBatcher(api, false)

	require.NoError(t, b.SendBatch(context.Background()))
	assert.Equal(t, 0, api.submitCount())
}

func TestConcurrentSendsAreSingleFlight(t *testing.T) {
	api := &fakeDelivery{block: make(chan struct{})}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.SendBatch(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return api.submitCount() == 1 }, time.Second, 5*time.Millisecond)
	close(api.block)
	wg.Wait()
	assert.Equal(t, 1, api.submitCount())
}

func TestFailureReleasesGuardAndKeepsPending(t *testing.T) {
	api := &fakeDelivery{submitErr: errors.New("upstream down")}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")

	require.Error(t, b.SendBatch(context.Background()))
	assert.True(t, b.HasPendingCorrections())

	// The same pending set goes out on the retry.
	api.submitErr = nil
	require.NoError(t, b.SendBatch(context.Background()))
	require.Equal(t, 2, api.submitCount())
	assert.Equal(t, "total", api.submitted[1][0].FieldName)
	assert.False(t, b.HasPendingCorrections())
}

func TestRepeatSendAfterSuccessIsNoop(t *testing.T) {
	api := &fakeDelivery{}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")

	require.NoError(t, b.SendBatch(context.Background()))
	require.NoError(t, b.SendBatch(context.Background()))
	assert.Equal(t, 1, api.submitCount())
}

func TestBeaconSharesGuardWithNormalSend(t *testing.T) {
	api := &fakeDelivery{block: make(chan struct{})}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.SendBatch(context.Background())
	}()
	require.Eventually(t, func() bool { return api.submitCount() == 1 }, time.Second, 5*time.Millisecond)

	// A teardown fallback while the normal send is in flight must not
	// double-submit.
	assert.False(t, b.SendBeaconBatch())
	assert.Empty(t, api.enqueued)

	close(api.block)
	wg.Wait()
}

func TestBeaconSuccessOptimisticallyClearsPending(t *testing.T) {
	api := &fakeDelivery{}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")

	require.True(t, b.SendBeaconBatch())
	require.Len(t, api.enqueued, 1)
	assert.False(t, b.HasPendingCorrections())
}

func TestBeaconRefusalReleasesGuard(t *testing.T) {
	api := &fakeDelivery{refuseEnqueue: true}
	b := NewBatcher(api, false)
	b.AddCorrection("inv-1", "invoice", "total", "10.00")

	require.False(t, b.SendBeaconBatch())
	assert.True(t, b.HasPendingCorrections())

	// The guard was released, so a later normal send can retry.
	require.NoError(t, b.SendBatch(context.Background()))
	assert.Equal(t, 1, api.submitCount())
	assert.False(t, b.HasPendingCorrections())
}

func TestBeaconNoopWhenNothingPending(t *testing.T) {
	api := &fakeDelivery{}
	b := NewBatcher(api, false)
	assert.False(t, b.SendBeaconBatch())
	assert.Empty(t, api.enqueued)
}
