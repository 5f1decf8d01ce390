package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelroom/modelroom/internal/engine"
	pkgerrors "github.com/modelroom/modelroom/pkg/errors"
)

func newFSProvider(t *testing.T) *FSProvider {
	t.Helper()

	provider, err := NewFSProvider(t.TempDir())
	require.NoError(t, err)
	return provider
}

func TestFSStorePutGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := newFSProvider(t).ForModel("model-1")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state.json", []byte(`{"mean": 42}`)))

	data, err := store.Get(ctx, "state.json")
	require.NoError(t, err)
	assert.Equal(t, `{"mean": 42}`, string(data))

	// Overwrites replace the previous content.
	require.NoError(t, store.Put(ctx, "state.json", []byte(`{"mean": 7}`)))
	data, err = store.Get(ctx, "state.json")
	require.NoError(t, err)
	assert.Equal(t, `{"mean": 7}`, string(data))
}

func TestFSStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := newFSProvider(t).ForModel("model-1")

	_, err := store.Get(context.Background(), "absent.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrArtifactNotFound)

	var storeErr *pkgerrors.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "get", storeErr.Op)
	assert.Equal(t, "absent.json", storeErr.Key)
}

func TestFSStoreDelete(t *testing.T) {
	t.Parallel()

	store := newFSProvider(t).ForModel("model-1")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state.json", []byte("x")))
	require.NoError(t, store.Delete(ctx, "state.json"))

	_, err := store.Get(ctx, "state.json")
	assert.ErrorIs(t, err, engine.ErrArtifactNotFound)

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete(ctx, "state.json"))
}

func TestFSStoreList(t *testing.T) {
	t.Parallel()

	store := newFSProvider(t).ForModel("model-1")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "training/data.parquet", []byte("p")))
	require.NoError(t, store.Put(ctx, "training/columns.json", []byte("c")))
	require.NoError(t, store.Put(ctx, "state.json", []byte("s")))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"state.json", "training/columns.json", "training/data.parquet"}, all)

	training, err := store.List(ctx, "training/")
	require.NoError(t, err)
	assert.Equal(t, []string{"training/columns.json", "training/data.parquet"}, training)

	none, err := store.List(ctx, "missing/")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFSStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()

	store := newFSProvider(t).ForModel("model-1")
	ctx := context.Background()

	badKeys := []string{
		"",
		"/absolute.json",
		"../escape.json",
		"nested/../../escape.json",
		"double//slash.json",
		".",
		"back\\slash.json",
	}

	for _, key := range badKeys {
		assert.Error(t, store.Put(ctx, key, []byte("x")), "key %q", key)

		_, err := store.Get(ctx, key)
		assert.Error(t, err, "key %q", key)
		assert.False(t, errors.Is(err, engine.ErrArtifactNotFound), "key %q must fail validation, not lookup", key)
	}
}

func TestFSProviderIsolatesModels(t *testing.T) {
	t.Parallel()

	provider := newFSProvider(t)
	ctx := context.Background()

	first := provider.ForModel("model-1")
	second := provider.ForModel("model-2")

	require.NoError(t, first.Put(ctx, "state.json", []byte("first")))
	require.NoError(t, second.Put(ctx, "state.json", []byte("second")))

	data, err := first.Get(ctx, "state.json")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	keys, err := second.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"state.json"}, keys)
}

func TestFSProviderDrop(t *testing.T) {
	t.Parallel()

	provider := newFSProvider(t)
	ctx := context.Background()

	doomed := provider.ForModel("model-1")
	survivor := provider.ForModel("model-2")
	require.NoError(t, doomed.Put(ctx, "state.json", []byte("x")))
	require.NoError(t, survivor.Put(ctx, "state.json", []byte("y")))

	require.NoError(t, provider.Drop(ctx, "model-1"))

	_, err := doomed.Get(ctx, "state.json")
	assert.ErrorIs(t, err, engine.ErrArtifactNotFound)

	_, err = survivor.Get(ctx, "state.json")
	assert.NoError(t, err)

	// Dropping an unknown model is not an error.
	require.NoError(t, provider.Drop(ctx, "model-3"))
}

func TestFSProviderPing(t *testing.T) {
	t.Parallel()

	provider := newFSProvider(t)
	require.NoError(t, provider.Ping(context.Background()))
}

func TestNewFSProviderRequiresRoot(t *testing.T) {
	t.Parallel()

	_, err := NewFSProvider("")
	require.Error(t, err)
}
