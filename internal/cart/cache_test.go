package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	snap := CachedSnapshot{Cart: Cart{ID: "c-1", Status: enums.CartStatusOpen, Items: []Item{}}, FetchedAt: now}
	require.NoError(t, c.Set(ctx, snap))

	got, ok, err := c.Get(ctx, "c-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, c.Set(ctx, CachedSnapshot{}))
}

type fakeJSONStore struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeJSONStore() *fakeJSONStore {
	return &fakeJSONStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeJSONStore) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeJSONStore) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	f.ttls[key] = ttl
	return nil
}

func (f *fakeJSONStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeJSONStore) CartSnapshotKey(cartID string) string  { return "sf:cart:snapshot:" + cartID }
func (f *fakeJSONStore) CheckoutDraftKey(cartID string) string { return "sf:checkout:draft:" + cartID }

func TestRedisCacheStoresUnderSnapshotKey(t *testing.T) {
	ctx := context.Background()
	store := newFakeJSONStore()
	c, err := NewRedisCache(store, 10*time.Minute)
	require.NoError(t, err)

	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	snap := CachedSnapshot{Cart: Cart{ID: "c-1", Status: enums.CartStatusOpen, Items: []Item{{ID: "i", ProductID: "p", Quantity: 2, Price: price("3.5")}}, Total: price("7")}, FetchedAt: fetched}
	require.NoError(t, c.Set(ctx, snap))
	assert.Equal(t, 10*time.Minute, store.ttls["sf:cart:snapshot:c-1"])

	got, ok, err := c.Get(ctx, "c-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c-1", got.Cart.ID)
	assert.True(t, got.Cart.Total.Equal(price("7")))
	assert.True(t, got.FetchedAt.Equal(fetched))

	require.NoError(t, c.Delete(ctx, "c-1"))
	_, ok, err = c.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewRedisCache(nil, 0)
	assert.Error(t, err)
}
