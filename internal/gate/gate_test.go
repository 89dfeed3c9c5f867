// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/torii/internal/cache"
	"github.com/taibuivan/torii/internal/endpoint"
	"github.com/taibuivan/torii/internal/gate"
	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/principal"
	"github.com/taibuivan/torii/internal/ratelimit"
	"github.com/taibuivan/torii/internal/schema"
)

func member(actions ...string) *principal.Principal {
	return &principal.Principal{
		ID:      "user-1",
		Type:    "member",
		Actions: actions,
	}
}

func articleEndpoint() *endpoint.Descriptor {
	return &endpoint.Descriptor{
		Path:   "/data/article",
		Action: "Article",
	}
}

// compiledSet compiles a single-schema set so matching works without the
// registry load path.
func compiledSet(t *testing.T, document map[string]any) *schema.Set {
	t.Helper()
	set := &schema.Set{Single: &schema.Decl{Schema: document}}
	require.NoError(t, set.Compile(schema.NewEngineCompiler()))
	return set
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appError := apperr.As(err)
	require.NotNil(t, appError, "expected an application error, got %v", err)
	assert.Equal(t, code, appError.Code)
}

/*
TestNewChain_ConstructionChecks covers the eager checks run at construction
and their fixed order.
*/
func TestNewChain_ConstructionChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("missing_principal_is_configuration", func(t *testing.T) {
		_, err := gate.NewRead(ctx, gate.Request{Endpoint: articleEndpoint()}, gate.Deps{})
		requireCode(t, err, "CONFIGURATION")
	})

	t.Run("missing_endpoint_is_configuration", func(t *testing.T) {
		_, err := gate.NewRead(ctx, gate.Request{Principal: member()}, gate.Deps{})
		requireCode(t, err, "CONFIGURATION")
	})

	t.Run("empty_base_action_is_configuration", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.Action = ""
		_, err := gate.NewRead(ctx, gate.Request{
			Principal: member("Read:Article"),
			Endpoint:  descriptor,
		}, gate.Deps{})
		requireCode(t, err, "CONFIGURATION")
	})

	t.Run("ungranted_action_is_denied", func(t *testing.T) {
		_, err := gate.NewRead(ctx, gate.Request{
			Principal: member("Create:Article"),
			Endpoint:  articleEndpoint(),
		}, gate.Deps{})
		requireCode(t, err, "PERMISSION_DENIED")
	})

	t.Run("disallowed_user_type_is_denied", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.UserTypes = []string{"admin"}
		_, err := gate.NewRead(ctx, gate.Request{
			Principal: member("Read:Article"),
			Endpoint:  descriptor,
		}, gate.Deps{})
		requireCode(t, err, "PERMISSION_DENIED")
	})

	t.Run("visitor_needs_can_visit", func(t *testing.T) {
		_, err := gate.NewRead(ctx, gate.Request{
			Principal: principal.Visitor(),
			Endpoint:  articleEndpoint(),
		}, gate.Deps{})
		requireCode(t, err, "UNAUTHORIZED")
	})

	t.Run("success_reaches_rate_checked", func(t *testing.T) {
		chain, err := gate.NewRead(ctx, gate.Request{
			Principal: member("Read:Article"),
			Endpoint:  articleEndpoint(),
		}, gate.Deps{})
		require.NoError(t, err)
		assert.Equal(t, gate.StateRateChecked, chain.State())
		assert.Equal(t, gate.KindRead, chain.Kind())
	})

	// An exhausted budget rejects before the action check runs: the second
	// construction yields the limiter error, not the permission one.
	t.Run("rate_limit_rejects_before_authorization", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.RateLimit = &endpoint.RatePolicy{WindowSeconds: 60, MaxCount: 1}
		deps := gate.Deps{Limiter: ratelimit.NewLimiter(cache.NewMemoryStore())}
		request := gate.Request{
			Principal:  member(), // no grants at all
			Endpoint:   descriptor,
			Path:       "/data/article",
			ClientAddr: "10.0.0.9",
		}

		_, err := gate.NewRead(ctx, request, deps)
		requireCode(t, err, "PERMISSION_DENIED")

		_, err = gate.NewRead(ctx, request, deps)
		requireCode(t, err, "TOO_MANY_REQUESTS")
	})
}

/*
TestChain_ActionComposition verifies the verb prefix per kind, the
descriptor prefix override, and the call-site base-action override.
*/
func TestChain_ActionComposition(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		construct func(context.Context, gate.Request, gate.Deps) (*gate.Chain, error)
		granted   string
	}{
		{"create", gate.NewCreate, "Create:Article"},
		{"read", gate.NewRead, "Read:Article"},
		{"update", gate.NewUpdate, "Update:Article"},
		{"delete", gate.NewDelete, "Delete:Article"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.construct(ctx, gate.Request{
				Principal: member(tt.granted),
				Endpoint:  articleEndpoint(),
			}, gate.Deps{})
			assert.NoError(t, err)

			// The verb from another kind must not satisfy this one.
			_, err = tt.construct(ctx, gate.Request{
				Principal: member("Manage:Article"),
				Endpoint:  articleEndpoint(),
			}, gate.Deps{})
			requireCode(t, err, "PERMISSION_DENIED")
		})
	}

	t.Run("descriptor_prefix_override", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.ActionPrefix = "Manage:"
		_, err := gate.NewUpdate(context.Background(), gate.Request{
			Principal: member("Manage:Article"),
			Endpoint:  descriptor,
		}, gate.Deps{})
		assert.NoError(t, err)
	})

	t.Run("call_site_base_override", func(t *testing.T) {
		_, err := gate.NewRead(context.Background(), gate.Request{
			Principal:  member("Read:Draft"),
			Endpoint:   articleEndpoint(),
			BaseAction: "Draft",
		}, gate.Deps{})
		assert.NoError(t, err)
	})
}

/*
TestPerform_ReadStripsDeniedKeys checks deletion-mode scanning: reads drop
denied keys and denied key/value pairs instead of rejecting, and the
caller's filter map is left untouched.
*/
func TestPerform_ReadStripsDeniedKeys(t *testing.T) {
	descriptor := articleEndpoint()
	descriptor.Query = &endpoint.Surface{
		DeniedKeys:   []string{"secret_note"},
		DeniedValues: map[string]any{"status": "archived"},
	}

	filter := map[string]any{
		"topic":       "go",
		"secret_note": "internal",
		"status":      "archived",
	}

	chain, err := gate.NewRead(context.Background(), gate.Request{
		Model:     "article",
		Principal: member("Read:Article"),
		Endpoint:  descriptor,
		Filter:    filter,
	}, gate.Deps{})
	require.NoError(t, err)

	result, err := chain.Perform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, gate.StateCompleted, chain.State())

	assert.Equal(t, map[string]any{"topic": "go"}, result.Filter)
	assert.Equal(t, "internal", filter["secret_note"], "caller's filter must not be mutated")

	// A non-denied value under a denied-value key survives the strip.
	chain, err = gate.NewRead(context.Background(), gate.Request{
		Model:     "article",
		Principal: member("Read:Article"),
		Endpoint:  descriptor,
		Filter:    map[string]any{"status": "published"},
	}, gate.Deps{})
	require.NoError(t, err)

	result, err = chain.Perform(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "published"}, result.Filter)
}

/*
TestPerform_WritesRejectDeniedKeys checks rejection-mode scanning on the
write kinds: a denied key or pair fails the request instead of being
stripped.
*/
func TestPerform_WritesRejectDeniedKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("create_denied_key", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.Body = &endpoint.Surface{DeniedKeys: []string{"id"}}

		chain, err := gate.NewCreate(ctx, gate.Request{
			Principal: member("Create:Article"),
			Endpoint:  descriptor,
			Document:  map[string]any{"id": "forged", "title": "hi"},
		}, gate.Deps{})
		require.NoError(t, err)

		result, err := chain.Perform(ctx)
		requireCode(t, err, "RESTRICTED_BODY")
		assert.Nil(t, result)
		assert.Equal(t, gate.StateRejected, chain.State())
	})

	t.Run("delete_denied_key_on_filter", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.Query = &endpoint.Surface{DeniedKeys: []string{"owner"}}

		chain, err := gate.NewDelete(ctx, gate.Request{
			Principal: member("Delete:Article"),
			Endpoint:  descriptor,
			Filter:    map[string]any{"owner": "someone-else"},
		}, gate.Deps{})
		require.NoError(t, err)

		_, err = chain.Perform(ctx)
		requireCode(t, err, "RESTRICTED_QUERY")
	})

	t.Run("update_denied_value_on_body", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.Body = &endpoint.Surface{DeniedValues: map[string]any{"status": "archived"}}

		chain, err := gate.NewUpdate(ctx, gate.Request{
			Principal: member("Update:Article"),
			Endpoint:  descriptor,
			Filter:    map[string]any{"id": "7"},
			Document:  map[string]any{"status": "archived"},
		}, gate.Deps{})
		require.NoError(t, err)

		_, err = chain.Perform(ctx)
		requireCode(t, err, "RESTRICTED_BODY")
	})

	t.Run("matching_key_with_other_value_passes", func(t *testing.T) {
		descriptor := articleEndpoint()
		descriptor.Body = &endpoint.Surface{DeniedValues: map[string]any{"status": "archived"}}

		chain, err := gate.NewCreate(ctx, gate.Request{
			Model:     "article",
			Principal: member("Create:Article"),
			Endpoint:  descriptor,
			Document:  map[string]any{"status": "draft"},
		}, gate.Deps{})
		require.NoError(t, err)

		result, err := chain.Perform(ctx)
		require.NoError(t, err)
		assert.Equal(t, "draft", result.Document["status"])
	})
}

/*
TestPerform_SchemaRejection: a body failing its declared schema rejects the
chain with field details and no descriptor, and a rejected chain refuses a
second Perform.
*/
func TestPerform_SchemaRejection(t *testing.T) {
	ctx := context.Background()

	descriptor := articleEndpoint()
	descriptor.Body = &endpoint.Surface{
		Schemas: compiledSet(t, map[string]any{
			"type":     "object",
			"required": []any{"title"},
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
			},
		}),
	}

	chain, err := gate.NewCreate(ctx, gate.Request{
		Principal: member("Create:Article"),
		Endpoint:  descriptor,
		Document:  map[string]any{"body": "no title here"},
	}, gate.Deps{})
	require.NoError(t, err)

	result, err := chain.Perform(ctx)
	requireCode(t, err, "RESTRICTED_DATA")
	assert.Nil(t, result)
	assert.NotEmpty(t, apperr.As(err).Details)
	assert.Equal(t, gate.StateRejected, chain.State())

	_, err = chain.Perform(ctx)
	requireCode(t, err, "CONFIGURATION")
}

/*
TestPerform_FilterSchemaRejection maps a filter mismatch to the query
restriction, not the data one.
*/
func TestPerform_FilterSchemaRejection(t *testing.T) {
	descriptor := articleEndpoint()
	descriptor.Query = &endpoint.Surface{
		Schemas: compiledSet(t, map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"topic": map[string]any{"type": "string"}},
			"additionalProperties": false,
		}),
	}

	chain, err := gate.NewDelete(context.Background(), gate.Request{
		Principal: member("Delete:Article"),
		Endpoint:  descriptor,
		Filter:    map[string]any{"rogue": true},
	}, gate.Deps{})
	require.NoError(t, err)

	_, err = chain.Perform(context.Background())
	requireCode(t, err, "RESTRICTED_QUERY")
}

/*
TestPerform_ComposeCreate: declared defaults merge into the document and
the identity sentinel resolves to the principal.
*/
func TestPerform_ComposeCreate(t *testing.T) {
	descriptor := articleEndpoint()
	descriptor.Body = &endpoint.Surface{
		Merge: true,
		Schemas: &schema.Set{Single: &schema.Decl{
			Schema:  map[string]any{"type": "object"},
			Default: map[string]any{"author": "*current_user*", "status": "draft"},
		}},
	}
	require.NoError(t, descriptor.Body.Schemas.Compile(schema.NewEngineCompiler()))

	chain, err := gate.NewCreate(context.Background(), gate.Request{
		Model:     "article",
		Principal: member("Create:Article"),
		Endpoint:  descriptor,
		Document:  map[string]any{"title": "hello"},
	}, gate.Deps{})
	require.NoError(t, err)

	result, err := chain.Perform(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "article", result.Model)
	assert.Equal(t, map[string]any{
		"title":  "hello",
		"author": "user-1",
		"status": "draft",
	}, result.Document)
}

/*
TestPerform_MergePriority: declared defaults win key collisions unless the
surface opts user values in.
*/
func TestPerform_MergePriority(t *testing.T) {
	build := func(userPriority bool) *endpoint.Descriptor {
		descriptor := articleEndpoint()
		descriptor.Body = &endpoint.Surface{
			Merge:        true,
			UserPriority: userPriority,
			Default:      map[string]any{"status": "draft"},
		}
		return descriptor
	}

	tests := []struct {
		name         string
		userPriority bool
		want         string
	}{
		{"defaults_win", false, "draft"},
		{"user_wins", true, "published"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := gate.NewCreate(context.Background(), gate.Request{
				Model:     "article",
				Principal: member("Create:Article"),
				Endpoint:  build(tt.userPriority),
				Document:  map[string]any{"status": "published"},
			}, gate.Deps{})
			require.NoError(t, err)

			result, err := chain.Perform(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Document["status"])
		})
	}
}

/*
TestPerform_UpdateComposesBothSurfaces: Update merges filter and body
defaults independently and combines their options, body over query.
*/
func TestPerform_UpdateComposesBothSurfaces(t *testing.T) {
	descriptor := articleEndpoint()
	descriptor.Query = &endpoint.Surface{
		Merge:          true,
		Default:        map[string]any{"author": "*current_user*"},
		DefaultOptions: map[string]any{"limit": 1, "dry_run": true},
	}
	descriptor.Body = &endpoint.Surface{
		Merge:          true,
		Default:        map[string]any{"edited": true},
		DefaultOptions: map[string]any{"dry_run": false},
	}

	chain, err := gate.NewUpdate(context.Background(), gate.Request{
		Model:     "article",
		Principal: member("Update:Article"),
		Endpoint:  descriptor,
		Filter:    map[string]any{"id": "7"},
		Document:  map[string]any{"title": "new title"},
	}, gate.Deps{})
	require.NoError(t, err)

	result, err := chain.Perform(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": "7", "author": "user-1"}, result.Filter)
	assert.Equal(t, map[string]any{"title": "new title", "edited": true}, result.Update)
	assert.Equal(t, map[string]any{"limit": 1, "dry_run": false}, result.Options)
}

/*
TestChain_FluentModifiers covers the modifiers applied during Perform.
*/
func TestChain_FluentModifiers(t *testing.T) {
	ctx := context.Background()

	newCreate := func(t *testing.T, document map[string]any, deps gate.Deps) *gate.Chain {
		t.Helper()
		chain, err := gate.NewCreate(ctx, gate.Request{
			Model:      "article",
			Path:       "/data/article",
			ClientAddr: "10.0.0.9",
			Principal:  member("Create:Article"),
			Endpoint:   articleEndpoint(),
			Document:   document,
		}, deps)
		require.NoError(t, err)
		return chain
	}

	t.Run("extra_denied_keys", func(t *testing.T) {
		chain := newCreate(t, map[string]any{"internal": 1}, gate.Deps{})
		_, err := chain.CheckIfKeysExist("internal").Perform(ctx)
		requireCode(t, err, "RESTRICTED_BODY")
	})

	t.Run("extra_denied_values", func(t *testing.T) {
		chain := newCreate(t, map[string]any{"tier": "free"}, gate.Deps{})
		_, err := chain.CheckIfKeysValueExist(map[string]any{"tier": "free"}).Perform(ctx)
		requireCode(t, err, "RESTRICTED_BODY")
	})

	t.Run("predicate_failure", func(t *testing.T) {
		chain := newCreate(t, map[string]any{"title": "x"}, gate.Deps{})
		_, err := chain.Predicate(func(gate.Request) bool { return false }, "Quota exceeded").Perform(ctx)
		requireCode(t, err, "PREDICATE_NOT_SUCCEEDED")
		assert.Equal(t, "Quota exceeded", apperr.As(err).Message)
	})

	t.Run("predicate_receives_request", func(t *testing.T) {
		chain := newCreate(t, map[string]any{"title": "x"}, gate.Deps{})
		var sawModel string
		_, err := chain.Predicate(func(request gate.Request) bool {
			sawModel = request.Model
			return true
		}, "").Perform(ctx)
		require.NoError(t, err)
		assert.Equal(t, "article", sawModel)
	})

	t.Run("extra_rate_limit", func(t *testing.T) {
		deps := gate.Deps{Limiter: ratelimit.NewLimiter(cache.NewMemoryStore())}
		policy := ratelimit.Policy{Window: time.Minute, Max: 1}

		_, err := newCreate(t, map[string]any{"title": "x"}, deps).
			CheckRateLimit(policy).Perform(ctx)
		require.NoError(t, err)

		_, err = newCreate(t, map[string]any{"title": "x"}, deps).
			CheckRateLimit(policy).Perform(ctx)
		requireCode(t, err, "TOO_MANY_REQUESTS")
	})

	t.Run("post_perform_sees_descriptor", func(t *testing.T) {
		chain := newCreate(t, map[string]any{"title": "x"}, gate.Deps{})
		var seen *gate.Descriptor
		result, err := chain.PostPerform(func(_ context.Context, descriptor *gate.Descriptor) error {
			seen = descriptor
			return nil
		}).Perform(ctx)
		require.NoError(t, err)
		assert.Same(t, result, seen)
	})

	t.Run("post_perform_failure_rejects", func(t *testing.T) {
		chain := newCreate(t, map[string]any{"title": "x"}, gate.Deps{})
		result, err := chain.PostPerform(func(context.Context, *gate.Descriptor) error {
			return apperr.Conflict("Duplicate slug")
		}).Perform(ctx)
		requireCode(t, err, "CONFLICT")
		assert.Nil(t, result)
		assert.Equal(t, gate.StateRejected, chain.State())
	})
}
