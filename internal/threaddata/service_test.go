package threaddata

import (
	"context"
	"errors"
	"inboxlens/internal/backends/blob"
	"inboxlens/internal/cache"
	"inboxlens/internal/types"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a scriptable AnalysisAPI.
type fakeAPI struct {
	mu            sync.Mutex
	batches       [][]string
	results       map[string]types.AnalysisResult
	analyzeErr    error
	records       []map[string]any
	recordsErr    error
	listCalls     int
	submitted     [][]types.Correction
	submitErr     error
	enqueued      [][]types.Correction
	refuseEnqueue bool
}

func (f *fakeAPI) AnalyzeBatch(_ context.Context, ids []string) ([]types.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	f.batches = append(f.batches, sorted)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	out := make([]types.AnalysisResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := f.results[id]; ok {
			out = append(out, r)
		} else {
			out = append(out, types.AnalysisResult{ID: id, Status: types.StatusFailure})
		}
	}
	return out, nil
}

func (f *fakeAPI) ListRecords(_ context.Context) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	return f.records, nil
}

func (f *fakeAPI) SubmitCorrections(_ context.Context, edits []types.Correction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, edits)
	return nil
}

func (f *fakeAPI) EnqueueCorrections(edits []types.Correction) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refuseEnqueue {
		return false
	}
	f.enqueued = append(f.enqueued, edits)
	return true
}

func (f *fakeAPI) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func success(id string, labels ...string) types.AnalysisResult {
	return types.AnalysisResult{
		ID:     id,
		Status: types.StatusSuccess,
		Data:   &types.ThreadData{Labels: labels},
	}
}

func newTestService(t *testing.T, api *fakeAPI, filter string) *Service {
	t.Helper()
	store, err := blob.NewCacheStore(filepath.Join(t.TempDir(), "cache.zst"))
	require.NoError(t, err)
	return NewService(cache.NewTimed(store, time.Minute), api, filter)
}

func TestGetDataFetchesOnceWithinTTL(t *testing.T) {
	api := &fakeAPI{results: map[string]types.AnalysisResult{"k": success("k", "invoice")}}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	out, err := svc.GetData(ctx, []string{"k"})
	require.NoError(t, err)
	require.Equal(t, []string{"invoice"}, out["k"].Labels)

	out, err = svc.GetData(ctx, []string{"k"})
	require.NoError(t, err)
	require.Equal(t, []string{"invoice"}, out["k"].Labels)

	assert.Equal(t, 1, api.batchCount())
}

func TestGetDataBatchesOnlyStaleKeys(t *testing.T) {
	api := &fakeAPI{results: map[string]types.AnalysisResult{
		"a": success("a", "X"),
		"b": success("b", "Y"),
	}}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	_, err := svc.GetData(ctx, []string{"a"})
	require.NoError(t, err)

	out, err := svc.GetData(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.Equal(t, 2, api.batchCount())
	// Second call must only carry the miss.
	assert.Equal(t, []string{"b"}, api.batches[1])
}

func TestPartialFailureIsolation(t *testing.T) {
	api := &fakeAPI{results: map[string]types.AnalysisResult{
		"k1": success("k1", "X"),
		"k2": {ID: "k2", Status: types.StatusFailure},
	}}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	out, err := svc.GetData(ctx, []string{"k1", "k2"})
	require.NoError(t, err)
	require.Contains(t, out, "k1")
	require.NotContains(t, out, "k2")

	// k2 was not cached, so asking again re-issues a request for it alone.
	_, err = svc.GetData(ctx, []string{"k1", "k2"})
	require.NoError(t, err)
	require.Equal(t, 2, api.batchCount())
	assert.Equal(t, []string{"k2"}, api.batches[1])
}

func TestUpstreamFaultStillServesFreshSubset(t *testing.T) {
	api := &fakeAPI{results: map[string]types.AnalysisResult{"a": success("a", "X")}}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	_, err := svc.GetData(ctx, []string{"a"})
	require.NoError(t, err)

	api.analyzeErr = errors.New("upstream down")
	out, err := svc.GetData(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Contains(t, out, "a")
	assert.NotContains(t, out, "b")
}

func TestAddLabelsIsUnionNotOverwrite(t *testing.T) {
	api := &fakeAPI{results: map[string]types.AnalysisResult{
		"k": {
			ID:     "k",
			Status: types.StatusSuccess,
			Data: &types.ThreadData{
				Labels:   []string{"A", "B"},
				Entities: []map[string]any{{"kind": "total", "value": "9.99"}},
			},
		},
	}}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	_, err := svc.GetData(ctx, []string{"k"})
	require.NoError(t, err)

	svc.AddLabels(ctx, "k", []string{"B", "C"})

	out, err := svc.GetData(ctx, []string{"k"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, out["k"].Labels)
	assert.Len(t, out["k"].Entities, 1)
	// Served from cache; the merge did not trigger a refetch.
	assert.Equal(t, 1, api.batchCount())
}

func TestAddLabelsCreatesMinimalEntry(t *testing.T) {
	api := &fakeAPI{}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	svc.AddLabels(ctx, "unseen", []string{"X"})

	out, err := svc.GetData(ctx, []string{"unseen"})
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, out["unseen"].Labels)
	assert.Equal(t, 0, api.batchCount())
}

func TestGetAllRecordsAlwaysGoesUpstream(t *testing.T) {
	api := &fakeAPI{records: []map[string]any{{"id": "r1"}}}
	svc := newTestService(t, api, "")
	ctx := context.Background()

	_ = svc.GetAllRecords(ctx)
	_ = svc.GetAllRecords(ctx)
	assert.Equal(t, 2, api.listCalls)
}

func TestGetAllRecordsFailureDegradesToEmpty(t *testing.T) {
	api := &fakeAPI{recordsErr: errors.New("boom")}
	svc := newTestService(t, api, "")

	records := svc.GetAllRecords(context.Background())
	require.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetAllRecordsAppliesFilter(t *testing.T) {
	api := &fakeAPI{records: []map[string]any{
		{"id": "r1", "kind": "invoice"},
		{"id": "r2", "kind": "receipt"},
	}}
	svc := newTestService(t, api, "kind == 'invoice'")

	records := svc.GetAllRecords(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0]["id"])
}
