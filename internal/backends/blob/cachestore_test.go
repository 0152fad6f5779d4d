package blob

import (
	"context"
	"errors"
	"inboxlens/internal/types"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundtrip(t *testing.T) {
	store, err := NewCacheStore(filepath.Join(t.TempDir(), "cache.zst"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "t1", []byte(`{"v":1}`)))
	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store, err := NewCacheStore(filepath.Join(t.TempDir(), "cache.zst"))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestBlobSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.zst")
	ctx := context.Background()

	store, err := NewCacheStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "t1", []byte(`{"labels":["invoice"]}`)))
	require.NoError(t, store.Put(ctx, "t2", []byte(`{"labels":["receipt"]}`)))

	reopened, err := NewCacheStore(path)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":["invoice"]}`, string(got))
}

func TestDeleteAndClearAll(t *testing.T) {
	store, err := NewCacheStore(filepath.Join(t.TempDir(), "cache.zst"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "t1", []byte("1")))
	require.NoError(t, store.Put(ctx, "t2", []byte("2")))

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Get(ctx, "t1")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	require.NoError(t, store.ClearAll(ctx))
	_, err = store.Get(ctx, "t2")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}
