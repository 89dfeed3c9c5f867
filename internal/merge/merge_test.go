// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/torii/internal/merge"
)

/*
TestSubstituteIdentity_ReplacesSentinel covers the canonical case: an
endpoint default of {"owner": "*current_user*"} resolves to the principal's
identity, and the input map is left untouched.
*/
func TestSubstituteIdentity_ReplacesSentinel(t *testing.T) {
	input := map[string]any{
		"owner": "*current_user*",
		"title": "hello",
	}

	result := merge.SubstituteIdentity(input, "user-42", false, nil)

	assert.Equal(t, map[string]any{
		"owner": "user-42",
		"title": "hello",
	}, result)

	// The input is an immutable snapshot.
	assert.Equal(t, "*current_user*", input["owner"])
}

/*
TestSubstituteIdentity_Nested checks substitution through nested maps and
slices.
*/
func TestSubstituteIdentity_Nested(t *testing.T) {
	input := map[string]any{
		"meta": map[string]any{
			"created_by": "*current_user*",
		},
		"reviewers": []any{"*current_user*", "someone-else"},
	}

	result := merge.SubstituteIdentity(input, "user-42", false, nil)

	assert.Equal(t, map[string]any{
		"meta": map[string]any{
			"created_by": "user-42",
		},
		"reviewers": []any{"user-42", "someone-else"},
	}, result)
}

/*
TestSubstituteIdentity_Stringify verifies the stringify flag renders the
identity as text even for non-string identities.
*/
func TestSubstituteIdentity_Stringify(t *testing.T) {
	input := map[string]any{"owner": "*current_user*"}

	raw := merge.SubstituteIdentity(input, 42, false, nil)
	assert.Equal(t, 42, raw["owner"])

	stringified := merge.SubstituteIdentity(input, 42, true, nil)
	assert.Equal(t, "42", stringified["owner"])
}

/*
TestSubstituteIdentity_Observer confirms the observer sees every key/value
pair before substitution.
*/
func TestSubstituteIdentity_Observer(t *testing.T) {
	input := map[string]any{
		"cover": "photo.png",
		"meta":  map[string]any{"icon": "icon.png"},
	}

	seen := map[string]any{}
	merge.SubstituteIdentity(input, "user-42", false, func(key string, value any) {
		seen[key] = value
	})

	assert.Equal(t, "photo.png", seen["cover"])
	assert.Equal(t, "icon.png", seen["icon"])
	assert.Contains(t, seen, "meta")
}

/*
TestMerge covers the merge flag, collision priority, and recursion.
*/
func TestMerge(t *testing.T) {
	tests := []struct {
		name         string
		user         map[string]any
		defaults     map[string]any
		shouldMerge  bool
		userPriority bool
		expected     map[string]any
	}{
		{
			name:        "merge_disabled_ignores_defaults",
			user:        map[string]any{"status": "draft"},
			defaults:    map[string]any{"owner": "me"},
			shouldMerge: false,
			expected:    map[string]any{"status": "draft"},
		},
		{
			name:        "defaults_fill_missing_keys",
			user:        map[string]any{"status": "draft"},
			defaults:    map[string]any{"owner": "me"},
			shouldMerge: true,
			expected:    map[string]any{"status": "draft", "owner": "me"},
		},
		{
			name:         "collision_default_wins",
			user:         map[string]any{"status": "published"},
			defaults:     map[string]any{"status": "draft"},
			shouldMerge:  true,
			userPriority: false,
			expected:     map[string]any{"status": "draft"},
		},
		{
			name:         "collision_user_wins",
			user:         map[string]any{"status": "published"},
			defaults:     map[string]any{"status": "draft"},
			shouldMerge:  true,
			userPriority: true,
			expected:     map[string]any{"status": "published"},
		},
		{
			name:        "nested_maps_merge_recursively",
			user:        map[string]any{"meta": map[string]any{"a": 1}},
			defaults:    map[string]any{"meta": map[string]any{"b": 2}},
			shouldMerge: true,
			expected:    map[string]any{"meta": map[string]any{"a": 1, "b": 2}},
		},
		{
			name:        "nil_user_takes_defaults",
			user:        nil,
			defaults:    map[string]any{"owner": "me"},
			shouldMerge: true,
			expected:    map[string]any{"owner": "me"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := merge.Merge(tt.user, tt.defaults, tt.shouldMerge, tt.userPriority)
			assert.Equal(t, tt.expected, result)
		})
	}
}

/*
TestMerge_DoesNotMutateInputs pins the isolation guarantee: neither side
of the merge is ever written to.
*/
func TestMerge_DoesNotMutateInputs(t *testing.T) {
	user := map[string]any{"meta": map[string]any{"a": 1}}
	defaults := map[string]any{"meta": map[string]any{"b": 2}}

	result := merge.Merge(user, defaults, true, false)
	require.NotNil(t, result)

	result["meta"].(map[string]any)["a"] = 99

	assert.Equal(t, 1, user["meta"].(map[string]any)["a"])
	assert.Equal(t, map[string]any{"b": 2}, defaults["meta"])
}

/*
TestClone pins deep-copy behavior for nested structures.
*/
func TestClone(t *testing.T) {
	original := map[string]any{
		"list": []any{map[string]any{"x": 1}},
	}

	clone := merge.Clone(original)
	clone["list"].([]any)[0].(map[string]any)["x"] = 2

	assert.Equal(t, 1, original["list"].([]any)[0].(map[string]any)["x"])
	assert.Nil(t, merge.Clone(nil))
}

/*
TestResolveDirectory covers both sentinels inside upload target paths.
*/
func TestResolveDirectory(t *testing.T) {
	resolved := merge.ResolveDirectory("uploads/*current_model*/*current_user*", "user-42", "article")
	assert.Equal(t, "uploads/article/user-42", resolved)
}

/*
TestSentinelPredicates pins the sentinel comparisons to string values only.
*/
func TestSentinelPredicates(t *testing.T) {
	assert.True(t, merge.IsUserSentinel("*current_user*"))
	assert.False(t, merge.IsUserSentinel("current_user"))
	assert.False(t, merge.IsUserSentinel(42))

	assert.True(t, merge.IsModelSentinel("*current_model*"))
	assert.False(t, merge.IsModelSentinel(nil))
}
