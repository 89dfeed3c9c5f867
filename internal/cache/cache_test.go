// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/torii/internal/cache"
)

/*
TestMemoryStore_Expiry verifies lazy expiry against an injected clock.
*/
func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "counter", "3", 10*time.Second))

	exists, err := store.Has(ctx, "counter")
	require.NoError(t, err)
	assert.True(t, exists)

	value, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "3", value)

	ttl, err := store.GetTTL(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, ttl)

	// Past the deadline the key is gone on every access path.
	now = now.Add(11 * time.Second)

	exists, err = store.Has(ctx, "counter")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, "counter")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	_, err = store.GetTTL(ctx, "counter")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

/*
TestMemoryStore_NoExpiry stores without a TTL and expects a zero duration
from GetTTL, mirroring the Redis "no associated expire" report.
*/
func TestMemoryStore_NoExpiry(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "pinned", "v", 0))

	ttl, err := store.GetTTL(ctx, "pinned")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}

/*
TestMemoryStore_Del covers deletion and its idempotence.
*/
func TestMemoryStore_Del(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	require.NoError(t, store.Del(ctx, "k"))

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	// Deleting an absent key is a no-op.
	assert.NoError(t, store.Del(ctx, "k"))
}

/*
TestRedisStore exercises the full [cache.Store] contract against miniredis,
including the TTL sentinel mapping and key namespacing.
*/
func TestRedisStore(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := cache.NewRedisStore(client, "gate")
	ctx := context.Background()

	t.Run("missing_key", func(t *testing.T) {
		exists, err := store.Has(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = store.Get(ctx, "nope")
		assert.ErrorIs(t, err, cache.ErrNotFound)

		_, err = store.GetTTL(ctx, "nope")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("roundtrip_with_ttl", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "counter", "2", 10*time.Second))

		// The prefix is applied on the wire.
		assert.True(t, server.Exists("gate:counter"))

		value, err := store.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, "2", value)

		ttl, err := store.GetTTL(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, ttl)

		server.FastForward(11 * time.Second)

		_, err = store.Get(ctx, "counter")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("no_expiry_reports_zero", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "pinned", "v", 0))

		ttl, err := store.GetTTL(ctx, "pinned")
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), ttl)
	})

	t.Run("del", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", "v", 0))
		require.NoError(t, store.Del(ctx, "gone"))

		_, err := store.Get(ctx, "gone")
		assert.ErrorIs(t, err, cache.ErrNotFound)
	})
}
