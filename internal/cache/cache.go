// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cache defines the shared key-value store capability used by the
gate pipeline.

It is the only cross-request shared resource in the system: the rate limiter
keeps its per-client counters and penalty entries here. The capability is
injected into consumers explicitly, never reached as ambient global state.

Core Responsibilities:

  - Volatility: Every entry carries a TTL (Time-To-Live).
  - Portability: Redis-backed in production, in-memory for tests and
    single-node deployments.
  - Precision: Remaining TTL is observable so that counters can be re-set
    without refilling their window early.
*/
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and GetTTL when the key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the shared cache capability consumed by the rate limiter.
//
// # Concurrency
//
// Implementations must be safe for concurrent use. Store itself does NOT
// promise atomic read-modify-write across calls; callers that need it
// (the rate limiter) must serialize per key.
type Store interface {
	// Has reports whether the key exists and has not expired.
	Has(ctx context.Context, key string) (bool, error)

	// Get returns the value for the key, or [ErrNotFound].
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value under the key with the given TTL.
	// A zero TTL stores the value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes the key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// GetTTL returns the remaining time-to-live for the key, or
	// [ErrNotFound] when the key is absent or expired.
	GetTTL(ctx context.Context, key string) (time.Duration, error)
}
