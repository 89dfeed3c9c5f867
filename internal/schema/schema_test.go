// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/torii/internal/schema"
)

// stringDoc requires a "kind" property with the given constant value.
func stringDoc(kind string) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"kind"},
		"properties": map[string]any{
			"kind": map[string]any{"const": kind},
		},
	}
}

func compile(t *testing.T, set *schema.Set) {
	t.Helper()
	require.NoError(t, set.Compile(schema.NewEngineCompiler()))
}

/*
TestSet_SingleMode covers single-schema validation and default resolution.
*/
func TestSet_SingleMode(t *testing.T) {
	set := &schema.Set{
		Single: &schema.Decl{
			Schema:  stringDoc("article"),
			Default: map[string]any{"status": "draft"},
		},
	}
	compile(t, set)

	t.Run("valid_data_wins_branch_default", func(t *testing.T) {
		result := set.Match(map[string]any{"kind": "article"}, map[string]any{"status": "fallback"}, nil)
		assert.True(t, result.Valid)
		assert.Equal(t, -1, result.Branch)
		assert.Equal(t, map[string]any{"status": "draft"}, result.DefaultValue)
	})

	t.Run("fallback_used_when_branch_has_no_default", func(t *testing.T) {
		bare := &schema.Set{Single: &schema.Decl{Schema: stringDoc("article")}}
		compile(t, bare)

		result := bare.Match(map[string]any{"kind": "article"}, map[string]any{"status": "fallback"}, nil)
		assert.True(t, result.Valid)
		assert.Equal(t, map[string]any{"status": "fallback"}, result.DefaultValue)
	})

	t.Run("invalid_data_reports_errors", func(t *testing.T) {
		result := set.Match(map[string]any{"kind": "comment"}, nil, nil)
		assert.False(t, result.Valid)
		assert.NotEmpty(t, result.Errors)
		assert.Equal(t, -1, result.Branch)
	})
}

/*
TestSet_AnyOfMode covers ordered branch selection: the first branch that
validates wins, ties resolved by declaration order alone.
*/
func TestSet_AnyOfMode(t *testing.T) {
	set := &schema.Set{
		AnyOf: []schema.Decl{
			{Schema: stringDoc("article"), Default: map[string]any{"from": "branch0"}},
			{Schema: stringDoc("comment"), Default: map[string]any{"from": "branch1"}},
			// A catch-all object schema that accepts anything.
			{Schema: map[string]any{"type": "object"}},
		},
	}
	compile(t, set)

	t.Run("first_matching_branch_wins", func(t *testing.T) {
		result := set.Match(map[string]any{"kind": "comment"}, nil, nil)
		assert.True(t, result.Valid)
		assert.Equal(t, 1, result.Branch)
		assert.Equal(t, map[string]any{"from": "branch1"}, result.DefaultValue)
	})

	t.Run("declaration_order_breaks_ties", func(t *testing.T) {
		// "article" matches both branch 0 and the catch-all branch 2;
		// branch 0 wins because it is declared first.
		result := set.Match(map[string]any{"kind": "article"}, nil, nil)
		assert.True(t, result.Valid)
		assert.Equal(t, 0, result.Branch)
	})

	t.Run("parallel_array_fallback_indexed_by_branch", func(t *testing.T) {
		fallbacks := []map[string]any{
			{"pos": "zero"},
			{"pos": "one"},
			{"pos": "two"},
		}

		// Branch 2 (the catch-all without its own default) takes fallbacks[2].
		result := set.Match(map[string]any{"kind": "unknown"}, fallbacks, nil)
		assert.True(t, result.Valid)
		assert.Equal(t, 2, result.Branch)
		assert.Equal(t, map[string]any{"pos": "two"}, result.DefaultValue)
	})
}

/*
TestSet_AnyOfNoMatch verifies that a total mismatch keeps only the LAST
attempted branch's errors.
*/
func TestSet_AnyOfNoMatch(t *testing.T) {
	set := &schema.Set{
		AnyOf: []schema.Decl{
			{Schema: stringDoc("article")},
			{Schema: map[string]any{
				"type":     "object",
				"required": []any{"last_branch_marker"},
			}},
		},
	}
	compile(t, set)

	result := set.Match(map[string]any{"kind": "neither"}, nil, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, -1, result.Branch)
	require.NotEmpty(t, result.Errors)

	// The surviving error comes from branch 1 (missing last_branch_marker),
	// not from branch 0's const mismatch.
	assert.Contains(t, result.Errors[0].Message, "last_branch_marker")
}

/*
TestSet_ExcludeKeys verifies non-semantic keys are stripped before an
any-of branch is tested, and that the caller's map survives untouched.
*/
func TestSet_ExcludeKeys(t *testing.T) {
	set := &schema.Set{
		AnyOf: []schema.Decl{
			{
				Schema: map[string]any{
					"type":                 "object",
					"required":             []any{"kind"},
					"additionalProperties": false,
					"properties": map[string]any{
						"kind": map[string]any{"const": "article"},
					},
				},
				Exclude: []string{"sort_hint"},
			},
		},
	}
	compile(t, set)

	data := map[string]any{"kind": "article", "sort_hint": "-created"}
	result := set.Match(data, nil, nil)

	assert.True(t, result.Valid)
	assert.Equal(t, "-created", data["sort_hint"])
}

/*
TestSet_Compile_BadSchema ensures a malformed declaration fails at compile
time, not per request.
*/
func TestSet_Compile_BadSchema(t *testing.T) {
	set := &schema.Set{
		Single: &schema.Decl{
			Schema: map[string]any{"type": 12345},
		},
	}
	assert.Error(t, set.Compile(schema.NewEngineCompiler()))
}

/*
TestEngineCompiler_Violations checks that engine failures surface as field
violations with instance locations.
*/
func TestEngineCompiler_Violations(t *testing.T) {
	compiler := schema.NewEngineCompiler()
	validator, err := compiler.Compile(map[string]any{
		"type":     "object",
		"required": []any{"title"},
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "minLength": 1},
			"tags":  map[string]any{"type": "array"},
		},
	})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		assert.Nil(t, validator.Validate(map[string]any{"title": "hello"}))
	})

	t.Run("missing_required", func(t *testing.T) {
		violations := validator.Validate(map[string]any{})
		assert.NotEmpty(t, violations)
	})

	t.Run("wrong_type_reports_location", func(t *testing.T) {
		violations := validator.Validate(map[string]any{"title": "x", "tags": "not-an-array"})
		require.NotEmpty(t, violations)

		located := false
		for _, violation := range violations {
			if violation.Field != "" {
				located = true
			}
		}
		assert.True(t, located)
	})
}
