// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package merge composes final filters and documents from user-supplied data
and endpoint-declared defaults.

Core Responsibilities:

  - Substitution: Replacing the reserved identity sentinel with the current
    principal's identity, deep in nested payloads.
  - Merging: Opt-in deep merge of declared defaults with a configurable
    collision priority.
  - Isolation: Inputs are immutable snapshots; every operation returns a
    deep clone and never mutates its arguments.

The sentinel values are a stringly-typed convention shared with endpoint
configuration data, which is versioned independently of this codebase. The
comparison is therefore isolated behind [IsUserSentinel]/[IsModelSentinel]
so the literal can change in exactly one place.
*/
package merge

import (
	"fmt"
	"strings"
)

const (
	// SentinelCurrentUser marks a value to be replaced with the current
	// principal's identity.
	SentinelCurrentUser = "*current_user*"

	// SentinelCurrentModel marks a value to be replaced with the model name
	// the operation targets. Used in upload target directories.
	SentinelCurrentModel = "*current_model*"
)

// IsUserSentinel reports whether the value is the current-user placeholder.
func IsUserSentinel(value any) bool {
	s, ok := value.(string)
	return ok && s == SentinelCurrentUser
}

// IsModelSentinel reports whether the value is the current-model placeholder.
func IsModelSentinel(value any) bool {
	s, ok := value.(string)
	return ok && s == SentinelCurrentModel
}

// Observer is invoked for every key/value pair visited during
// [SubstituteIdentity], before any substitution happens. The upload layer
// uses it to detect file-carrying fields without a second traversal.
type Observer func(key string, value any)

// Clone returns a deep copy of the data map.
//
// Nested maps and slices are copied recursively; scalars are shared (they
// are immutable in decoded JSON).
func Clone(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	clone := make(map[string]any, len(data))
	for key, value := range data {
		clone[key] = cloneValue(value)
	}
	return clone
}

// cloneValue deep-copies one decoded-JSON value.
func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return Clone(typed)
	case []any:
		copied := make([]any, len(typed))
		for i, element := range typed {
			copied[i] = cloneValue(element)
		}
		return copied
	default:
		return value
	}
}

/*
SubstituteIdentity deep-clones data, replacing every scalar equal to the
current-user sentinel with the principal's identity.

Parameters:
  - data: map[string]any (never mutated)
  - identity: any (the principal's identity value)
  - stringify: bool (substitute the identity as a string when true, raw otherwise)
  - observe: Observer (optional per-key callback, may be nil)

Returns:
  - map[string]any: A new map with substitutions applied
*/
func SubstituteIdentity(data map[string]any, identity any, stringify bool, observe Observer) map[string]any {
	if data == nil {
		return nil
	}

	substituted := identity
	if stringify {
		substituted = fmt.Sprint(identity)
	}

	result := make(map[string]any, len(data))
	for key, value := range data {
		if observe != nil {
			observe(key, value)
		}
		result[key] = substituteValue(key, value, substituted, observe)
	}
	return result
}

// substituteValue recursively applies the sentinel substitution to one value.
func substituteValue(key string, value any, identity any, observe Observer) any {
	switch typed := value.(type) {
	case map[string]any:
		nested := make(map[string]any, len(typed))
		for nestedKey, nestedValue := range typed {
			if observe != nil {
				observe(nestedKey, nestedValue)
			}
			nested[nestedKey] = substituteValue(nestedKey, nestedValue, identity, observe)
		}
		return nested
	case []any:
		copied := make([]any, len(typed))
		for i, element := range typed {
			copied[i] = substituteValue(key, element, identity, observe)
		}
		return copied
	default:
		if IsUserSentinel(typed) {
			return identity
		}
		return typed
	}
}

/*
Merge combines a user-supplied filter with an endpoint-declared default.

Description: Merging is opt-in per endpoint. When shouldMerge is false the
default is ignored entirely and a clone of the user filter passes through.
On key collision, userPriority decides which side wins; nested maps on both
sides are merged recursively.

Parameters:
  - user: map[string]any (never mutated)
  - defaults: map[string]any (never mutated)
  - shouldMerge: bool (endpoint merge flag)
  - userPriority: bool (user values win collisions when true)

Returns:
  - map[string]any: The composed filter
*/
func Merge(user, defaults map[string]any, shouldMerge, userPriority bool) map[string]any {
	if !shouldMerge || defaults == nil {
		return Clone(user)
	}

	result := Clone(user)
	if result == nil {
		result = make(map[string]any, len(defaults))
	}

	for key, defaultValue := range defaults {
		existing, present := result[key]
		if !present {
			result[key] = cloneValue(defaultValue)
			continue
		}

		existingMap, existingIsMap := existing.(map[string]any)
		defaultMap, defaultIsMap := defaultValue.(map[string]any)
		if existingIsMap && defaultIsMap {
			result[key] = Merge(existingMap, defaultMap, true, userPriority)
			continue
		}

		if !userPriority {
			result[key] = cloneValue(defaultValue)
		}
	}
	return result
}

// ResolveDirectory replaces both sentinels inside an upload target
// directory string with the principal identity and model name.
func ResolveDirectory(directory, identity, model string) string {
	resolved := strings.ReplaceAll(directory, SentinelCurrentUser, identity)
	return strings.ReplaceAll(resolved, SentinelCurrentModel, model)
}
