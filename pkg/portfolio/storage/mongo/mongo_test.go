package mongo

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeoYoonHo/yiseoyoon/pkg/portfolio"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, uri, "portfolio_test", "registry_"+uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.collection.Drop(ctx)
		_ = store.Close(ctx)
	})
	return store
}

func TestStore_ConditionalWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "collections/drawings/metadata.json"

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, portfolio.ErrNotFound)

	v1, err := store.Put(ctx, key, []byte(`{"items":[]}`), portfolio.PutOptions{IfAbsent: true})
	require.NoError(t, err)
	_, err = store.Put(ctx, key, []byte(`{"items":[]}`), portfolio.PutOptions{IfAbsent: true})
	assert.ErrorIs(t, err, portfolio.ErrConditionFailed)

	v2, err := store.Put(ctx, key, []byte(`{"items":[{"id":"a"}]}`), portfolio.PutOptions{IfMatch: v1})
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)

	_, err = store.Put(ctx, key, []byte(`{}`), portfolio.PutOptions{IfMatch: v1})
	assert.ErrorIs(t, err, portfolio.ErrConditionFailed)

	obj, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, v2, obj.Version)
	assert.Equal(t, `{"items":[{"id":"a"}]}`, string(obj.Data))

	_, err = store.Put(ctx, "collections/drawings.bak/metadata.json", []byte(`{}`), portfolio.PutOptions{})
	require.NoError(t, err)

	metas, err := store.List(ctx, "collections/drawings/")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, key, metas[0].Key)
	assert.Equal(t, int64(len(`{"items":[{"id":"a"}]}`)), metas[0].Size)

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, portfolio.ErrNotFound)
}
