// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit implements the per-endpoint sliding-window rate limiter
with escalating penalties for repeat abuse.

It is distinct from the global token-bucket IP limiter in the middleware
chain: this limiter is driven by per-endpoint policy (window seconds, max
count) declared in the endpoint descriptor, and its counters live in the
shared [cache.Store] so that the budget holds across server restarts.

Algorithm (per check, window w, max m):

  1. No counter: create with value m-1 and TTL w. Allow.
  2. Counter > 0: decrement, re-set with the REMAINING TTL. Allow.
  3. Counter == 0: consult the penalty entry.
     No penalty: create {escalation 1, remaining 2m-1}, TTL w. Deny.
     Penalty remaining > 0: decrement, TTL w. Deny.
     Penalty remaining == 0: escalate and stretch the primary counter's
     window to w * escalation. Deny.

The TTL bookkeeping in step 2 is what makes the window slide correctly:
re-setting with the full window on every hit would let a steady trickle of
requests hold the window open forever.
*/
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/taibuivan/torii/internal/cache"
	"github.com/taibuivan/torii/internal/platform/apperr"
)

// penaltySuffix is appended to the counter key to address its penalty entry.
const penaltySuffix = ":penalty"

// stripeCount sizes the mutex stripe table. Must be a power of two.
const stripeCount = 64

// Policy is the per-endpoint rate-limit budget.
type Policy struct {
	// Window is the length of one counting window.
	Window time.Duration
	// Max is the number of allowed requests per window.
	Max int
}

// penaltyEntry tracks repeat exhaustion for one counter key.
type penaltyEntry struct {
	// Escalation counts full exhaustion events; the primary window is
	// stretched to Window * Escalation on each second-level exhaustion.
	Escalation int `json:"escalation"`
	// Remaining is the number of penalty-exempt denials left before the
	// next escalation.
	Remaining int `json:"remaining"`
}

// Limiter checks request budgets against a shared [cache.Store].
//
// # Concurrency
//
// The cache only offers plain get/set, so the read-compute-write sequence
// for one key is serialized through a striped mutex table. Without it two
// in-flight requests on the same key could both read the same counter and
// admit more than Max requests per window.
type Limiter struct {
	store   cache.Store
	stripes [stripeCount]sync.Mutex
}

// NewLimiter creates a [Limiter] over the given store.
func NewLimiter(store cache.Store) *Limiter {
	return &Limiter{store: store}
}

// stripe returns the mutex guarding the given key.
func (limiter *Limiter) stripe(key string) *sync.Mutex {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key))
	return &limiter.stripes[hasher.Sum32()&(stripeCount-1)]
}

/*
Check spends one request from the budget identified by key.

Description: The key is conventionally "path:clientAddress". Check never
resets a live window early: decrements preserve the counter's remaining TTL.

Parameters:
  - context: context.Context
  - key: string (budget identity)
  - policy: Policy (window length and max count)

Returns:
  - error: apperr 429 when the budget is exhausted; storage errors otherwise
*/
func (limiter *Limiter) Check(context context.Context, key string, policy Policy) error {
	if policy.Max <= 0 || policy.Window <= 0 {
		return apperr.Configuration("Rate limit policy requires a positive window and max count")
	}

	mutex := limiter.stripe(key)
	mutex.Lock()
	defer mutex.Unlock()

	exists, err := limiter.store.Has(context, key)
	if err != nil {
		return fmt.Errorf("ratelimit: counter lookup failed: %w", err)
	}

	// ── 1. Fresh window ───────────────────────────────────────────────────
	if !exists {
		// A penalty left over from a previous window must not outlive it.
		if err := limiter.store.Del(context, key+penaltySuffix); err != nil {
			return fmt.Errorf("ratelimit: stale penalty cleanup failed: %w", err)
		}
		if err := limiter.store.Set(context, key, strconv.Itoa(policy.Max-1), policy.Window); err != nil {
			return fmt.Errorf("ratelimit: counter create failed: %w", err)
		}
		return nil
	}

	remaining, err := limiter.counterValue(context, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			// The counter expired between Has and Get; treat as a fresh window.
			if err := limiter.store.Del(context, key+penaltySuffix); err != nil {
				return fmt.Errorf("ratelimit: stale penalty cleanup failed: %w", err)
			}
			if err := limiter.store.Set(context, key, strconv.Itoa(policy.Max-1), policy.Window); err != nil {
				return fmt.Errorf("ratelimit: counter create failed: %w", err)
			}
			return nil
		}
		return err
	}

	// ── 2. Live window with budget left ───────────────────────────────────
	if remaining > 0 {
		timeLeft, err := limiter.store.GetTTL(context, key)
		if err != nil && !errors.Is(err, cache.ErrNotFound) {
			return fmt.Errorf("ratelimit: counter ttl lookup failed: %w", err)
		}
		if timeLeft <= 0 {
			timeLeft = policy.Window
		}

		// Re-set with the REMAINING ttl so the window boundary stays put.
		if err := limiter.store.Set(context, key, strconv.Itoa(remaining-1), timeLeft); err != nil {
			return fmt.Errorf("ratelimit: counter decrement failed: %w", err)
		}
		return nil
	}

	// ── 3. Exhausted window: penalty bookkeeping ──────────────────────────
	return limiter.punish(context, key, policy)
}

// punish records one denial against the penalty entry and escalates the
// lockout when the penalty budget itself is exhausted. It always returns
// a 429 error.
func (limiter *Limiter) punish(context context.Context, key string, policy Policy) error {
	penaltyKey := key + penaltySuffix

	raw, err := limiter.store.Get(context, penaltyKey)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("ratelimit: penalty lookup failed: %w", err)
	}

	// First exhaustion event: open the penalty ledger.
	if errors.Is(err, cache.ErrNotFound) {
		entry := penaltyEntry{Escalation: 1, Remaining: 2*policy.Max - 1}
		if err := limiter.writePenalty(context, penaltyKey, entry, policy.Window); err != nil {
			return err
		}
		return limiter.deny(context, key)
	}

	var entry penaltyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("ratelimit: corrupt penalty entry for %q: %w", key, err)
	}

	// Denials within the current penalty budget do not escalate.
	if entry.Remaining > 0 {
		entry.Remaining--
		if err := limiter.writePenalty(context, penaltyKey, entry, policy.Window); err != nil {
			return err
		}
		return limiter.deny(context, key)
	}

	// Second-level exhaustion: compound the lockout. The primary counter's
	// window is stretched multiplicatively so repeat offenders wait longer
	// each round.
	entry.Escalation++
	entry.Remaining = 2*policy.Max - 1
	if err := limiter.writePenalty(context, penaltyKey, entry, policy.Window); err != nil {
		return err
	}

	extended := policy.Window * time.Duration(entry.Escalation)
	if err := limiter.store.Set(context, key, "0", extended); err != nil {
		return fmt.Errorf("ratelimit: window extension failed: %w", err)
	}
	return limiter.deny(context, key)
}

// counterValue reads and parses the primary counter.
func (limiter *Limiter) counterValue(context context.Context, key string) (int, error) {
	raw, err := limiter.store.Get(context, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("ratelimit: counter read failed: %w", err)
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: corrupt counter for %q: %w", key, err)
	}
	return value, nil
}

// writePenalty marshals and stores a penalty entry.
func (limiter *Limiter) writePenalty(context context.Context, penaltyKey string, entry penaltyEntry, ttl time.Duration) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ratelimit: penalty marshal failed: %w", err)
	}
	if err := limiter.store.Set(context, penaltyKey, string(encoded), ttl); err != nil {
		return fmt.Errorf("ratelimit: penalty write failed: %w", err)
	}
	return nil
}

// deny builds the client-facing 429, attaching the primary counter's
// remaining TTL as a retry hint when it is available.
func (limiter *Limiter) deny(context context.Context, key string) error {
	timeLeft, err := limiter.store.GetTTL(context, key)
	if err != nil || timeLeft <= 0 {
		return apperr.TooManyRequests("Rate limit exceeded")
	}
	return apperr.RateLimited(int(timeLeft.Seconds() + 0.5))
}
