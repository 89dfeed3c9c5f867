// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a single stored value with its absolute expiry deadline.
type memoryEntry struct {
	value string
	// expiresAt is the zero time for entries without expiry.
	expiresAt time.Time
}

// MemoryStore implements [Store] with a mutex-guarded map.
//
// # Usage
//
// It exists for unit tests (with an injected clock) and for single-node
// deployments where Redis is not configured. Expired entries are reaped
// lazily on access, so memory is only reclaimed for keys that are touched
// again.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory [Store] using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock creates an in-memory [Store] with an injected
// clock. Tests use this to step through rate-limit windows without sleeping.
func NewMemoryStoreWithClock(clock func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     clock,
	}
}

// live returns the entry for key if it exists and has not expired.
// Expired entries are deleted on the spot. Caller must hold mu.
func (store *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := store.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !store.now().Before(entry.expiresAt) {
		delete(store.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// Has reports whether the key exists and has not expired.
func (store *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	_, ok := store.live(key)
	return ok, nil
}

// Get returns the value for the key, or [ErrNotFound].
func (store *MemoryStore) Get(_ context.Context, key string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.live(key)
	if !ok {
		return "", ErrNotFound
	}
	return entry.value, nil
}

// Set stores the value under the key. A zero TTL stores without expiry.
func (store *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = store.now().Add(ttl)
	}
	store.entries[key] = entry
	return nil
}

// Del removes the key. Deleting an absent key is a no-op.
func (store *MemoryStore) Del(_ context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.entries, key)
	return nil
}

// GetTTL returns the remaining time-to-live for the key.
func (store *MemoryStore) GetTTL(_ context.Context, key string) (time.Duration, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.live(key)
	if !ok {
		return 0, ErrNotFound
	}
	if entry.expiresAt.IsZero() {
		return 0, nil
	}
	return entry.expiresAt.Sub(store.now()), nil
}
