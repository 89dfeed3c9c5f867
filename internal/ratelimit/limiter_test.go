// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/torii/internal/cache"
	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/ratelimit"
)

// testClock steps through limiter windows without sleeping.
type testClock struct {
	now time.Time
}

func (clock *testClock) Now() time.Time { return clock.now }

func (clock *testClock) Advance(d time.Duration) { clock.now = clock.now.Add(d) }

func newTestLimiter() (*ratelimit.Limiter, *cache.MemoryStore, *testClock) {
	clock := &testClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStoreWithClock(clock.Now)
	return ratelimit.NewLimiter(store), store, clock
}

func assertDenied(t *testing.T, err error) *apperr.AppError {
	t.Helper()
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "TOO_MANY_REQUESTS", ae.Code)
	return ae
}

/*
TestLimiter_EscalationWalk drives one key through a full window, the first
penalty round, and the second-level escalation with a 10-second, 3-request
budget.
*/
func TestLimiter_EscalationWalk(t *testing.T) {
	limiter, store, clock := newTestLimiter()
	ctx := context.Background()
	policy := ratelimit.Policy{Window: 10 * time.Second, Max: 3}
	const key = "/data/article:203.0.113.9"

	// Requests 1-3 spend the budget.
	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Check(ctx, key, policy), "request %d", i+1)
	}

	// Request 4 opens the penalty ledger: escalation 1, remaining 2*3-1.
	assertDenied(t, limiter.Check(ctx, key, policy))
	raw, err := store.Get(ctx, key+":penalty")
	require.NoError(t, err)
	assert.JSONEq(t, `{"escalation":1,"remaining":5}`, raw)

	// Requests 5-9 burn the penalty budget without escalating.
	for i := 0; i < 5; i++ {
		assertDenied(t, limiter.Check(ctx, key, policy))
	}
	raw, err = store.Get(ctx, key+":penalty")
	require.NoError(t, err)
	assert.JSONEq(t, `{"escalation":1,"remaining":0}`, raw)

	// Request 10 escalates: the counter's window is stretched to 20s and
	// the penalty budget resets.
	assertDenied(t, limiter.Check(ctx, key, policy))
	raw, err = store.Get(ctx, key+":penalty")
	require.NoError(t, err)
	assert.JSONEq(t, `{"escalation":2,"remaining":5}`, raw)

	timeLeft, err := store.GetTTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, timeLeft)

	// The stretched window holds past the original boundary.
	clock.Advance(15 * time.Second)
	assertDenied(t, limiter.Check(ctx, key, policy))

	// Once it lapses, the budget and the penalty ledger start fresh.
	clock.Advance(6 * time.Second)
	assert.NoError(t, limiter.Check(ctx, key, policy))
	_, err = store.Get(ctx, key+":penalty")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

/*
TestLimiter_DecrementPreservesWindow verifies that spending budget mid-window
never moves the window boundary.
*/
func TestLimiter_DecrementPreservesWindow(t *testing.T) {
	limiter, store, clock := newTestLimiter()
	ctx := context.Background()
	policy := ratelimit.Policy{Window: 10 * time.Second, Max: 3}
	const key = "/data/article:198.51.100.7"

	require.NoError(t, limiter.Check(ctx, key, policy))

	clock.Advance(4 * time.Second)
	require.NoError(t, limiter.Check(ctx, key, policy))

	// 10s window opened at t0; after 4s the decrement must leave 6s, not 10.
	timeLeft, err := store.GetTTL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, timeLeft)
}

/*
TestLimiter_WindowExpiryResets checks that a lapsed window grants a full
fresh budget.
*/
func TestLimiter_WindowExpiryResets(t *testing.T) {
	limiter, _, clock := newTestLimiter()
	ctx := context.Background()
	policy := ratelimit.Policy{Window: 10 * time.Second, Max: 2}
	const key = "/data/article:192.0.2.4"

	require.NoError(t, limiter.Check(ctx, key, policy))
	require.NoError(t, limiter.Check(ctx, key, policy))
	assertDenied(t, limiter.Check(ctx, key, policy))

	clock.Advance(11 * time.Second)

	require.NoError(t, limiter.Check(ctx, key, policy))
	require.NoError(t, limiter.Check(ctx, key, policy))
	assertDenied(t, limiter.Check(ctx, key, policy))
}

/*
TestLimiter_KeysAreIndependent verifies that one client's exhaustion never
spends another client's budget.
*/
func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _, _ := newTestLimiter()
	ctx := context.Background()
	policy := ratelimit.Policy{Window: 10 * time.Second, Max: 1}

	require.NoError(t, limiter.Check(ctx, "/data/article:10.0.0.1", policy))
	assertDenied(t, limiter.Check(ctx, "/data/article:10.0.0.1", policy))

	assert.NoError(t, limiter.Check(ctx, "/data/article:10.0.0.2", policy))
	assert.NoError(t, limiter.Check(ctx, "/data/comment:10.0.0.1", policy))
}

/*
TestLimiter_InvalidPolicy rejects non-positive budgets as configuration
errors rather than open or closed gates.
*/
func TestLimiter_InvalidPolicy(t *testing.T) {
	limiter, _, _ := newTestLimiter()
	ctx := context.Background()

	tests := []struct {
		name   string
		policy ratelimit.Policy
	}{
		{"zero_max", ratelimit.Policy{Window: 10 * time.Second, Max: 0}},
		{"zero_window", ratelimit.Policy{Window: 0, Max: 3}},
		{"negative_max", ratelimit.Policy{Window: 10 * time.Second, Max: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := limiter.Check(ctx, "key", tt.policy)
			require.Error(t, err)
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "CONFIGURATION", ae.Code)
		})
	}
}

/*
TestLimiter_RedisStore runs the budget walk against a real Redis protocol
server (miniredis) through the production [cache.RedisStore].
*/
func TestLimiter_RedisStore(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.NewLimiter(cache.NewRedisStore(client, "gate"))
	ctx := context.Background()
	policy := ratelimit.Policy{Window: 10 * time.Second, Max: 2}
	const key = "/data/article:redis-client"

	require.NoError(t, limiter.Check(ctx, key, policy))
	require.NoError(t, limiter.Check(ctx, key, policy))

	ae := assertDenied(t, limiter.Check(ctx, key, policy))
	assert.Equal(t, 429, ae.HTTPStatus)

	// Redis-side expiry opens a fresh window.
	server.FastForward(11 * time.Second)
	assert.NoError(t, limiter.Check(ctx, key, policy))
}
