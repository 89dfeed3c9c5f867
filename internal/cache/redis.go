// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements [Store] on top of a Redis client.
//
// All keys are namespaced under a configurable prefix so that multiple
// Torii instances can share one Redis database without collisions.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed [Store].
//
// # Parameters
//   - client: A connected go-redis client.
//   - prefix: Key namespace (e.g. "torii:gate"). May be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// key applies the configured namespace prefix.
func (store *RedisStore) key(key string) string {
	if store.prefix == "" {
		return key
	}
	return store.prefix + ":" + key
}

/*
Has reports whether the key exists.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - bool: True when the key is present and not expired
  - error: Connectivity errors
*/
func (store *RedisStore) Has(context context.Context, key string) (bool, error) {
	count, err := store.client.Exists(context, store.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis_cache_exists_failed: %w", err)
	}
	return count > 0, nil
}

/*
Get retrieves the value for a key.

Description: Returns [ErrNotFound] if the key is absent or expired.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value
  - error: [ErrNotFound] or connectivity errors
*/
func (store *RedisStore) Get(context context.Context, key string) (string, error) {
	value, err := store.client.Get(context, store.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis_cache_get_failed: %w", err)
	}
	return value, nil
}

/*
Set stores a value with the given TTL.

Parameters:
  - context: context.Context
  - key: string
  - value: string
  - ttl: time.Duration (zero means no expiry)

Returns:
  - error: Storage failures
*/
func (store *RedisStore) Set(context context.Context, key, value string, ttl time.Duration) error {
	if err := store.client.Set(context, store.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache_set_failed: %w", err)
	}
	return nil
}

/*
Del removes a key. Deleting an absent key is a no-op.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: Deletion failures
*/
func (store *RedisStore) Del(context context.Context, key string) error {
	if err := store.client.Del(context, store.key(key)).Err(); err != nil {
		return fmt.Errorf("redis_cache_del_failed: %w", err)
	}
	return nil
}

/*
GetTTL returns the remaining time-to-live for a key.

Description: Returns [ErrNotFound] when the key is absent. A key stored
without expiry reports a zero duration.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - time.Duration: Remaining TTL
  - error: [ErrNotFound] or connectivity errors
*/
func (store *RedisStore) GetTTL(context context.Context, key string) (time.Duration, error) {
	ttl, err := store.client.TTL(context, store.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis_cache_ttl_failed: %w", err)
	}

	// go-redis reports the raw Redis sentinels for TTL: -2 when the key is
	// missing, -1 when the key has no expiry.
	switch {
	case ttl == time.Duration(-2):
		return 0, ErrNotFound
	case ttl == time.Duration(-1):
		return 0, nil
	}
	return ttl, nil
}
