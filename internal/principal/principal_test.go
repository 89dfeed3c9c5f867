// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package principal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/principal"
)

/*
TestComposeAction covers the permission token composition rules.
*/
func TestComposeAction(t *testing.T) {
	tests := []struct {
		name         string
		prefix       string
		base         string
		field        string
		prefixAction string
		expected     string
	}{
		{"bare_base", "", "Create:User", "", "", "Create:User"},
		{"verb_prefix", "Create:", "Article", "", "", "Create:Article"},
		{"with_field", "Update:", "User", "Email", "", "Update:User:Email"},
		{"with_prefix_action", "", "User", "", "Invite", "User:Invite"},
		{"all_parts", "Update:", "User", "Email", "Primary", "Update:User:Email:Primary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composed := principal.ComposeAction(tt.prefix, tt.base, tt.field, tt.prefixAction)
			assert.Equal(t, tt.expected, composed)
		})
	}
}

/*
TestCheckAction verifies exact membership against the granted set, including
the two failure classes: permission (403) and configuration (500).
*/
func TestCheckAction(t *testing.T) {
	actor := &principal.Principal{
		ID:      "user-42",
		Type:    "member",
		Actions: []string{"Create:Article", "Read:Article"},
	}

	t.Run("granted_action_passes", func(t *testing.T) {
		assert.NoError(t, actor.CheckAction("Article", "Create:", "", ""))
	})

	t.Run("ungranted_action_denied", func(t *testing.T) {
		err := actor.CheckAction("Article", "Delete:", "", "")
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "PERMISSION_DENIED", ae.Code)
		assert.Equal(t, 403, ae.HTTPStatus)
	})

	t.Run("no_partial_matching", func(t *testing.T) {
		// "Read:Article" is granted; the bare base "Article" is not.
		err := actor.CheckAction("Article", "", "", "")
		require.Error(t, err)
		assert.Equal(t, "PERMISSION_DENIED", apperr.As(err).Code)
	})

	t.Run("empty_base_is_configuration_error", func(t *testing.T) {
		err := actor.CheckAction("", "Create:", "", "")
		require.Error(t, err)
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, "CONFIGURATION", ae.Code)
		assert.Equal(t, 500, ae.HTTPStatus)
	})

	t.Run("empty_granted_set_never_allows", func(t *testing.T) {
		nobody := &principal.Principal{ID: "user-7", Type: "member"}
		err := nobody.CheckAction("Article", "Read:", "", "")
		require.Error(t, err)
		assert.Equal(t, "PERMISSION_DENIED", apperr.As(err).Code)
	})
}

/*
TestCheckIfUserIs covers user-type membership, where an empty allowed set
admits every type.
*/
func TestCheckIfUserIs(t *testing.T) {
	actor := &principal.Principal{ID: "user-42", Type: "member"}

	assert.NoError(t, actor.CheckIfUserIs(nil))
	assert.NoError(t, actor.CheckIfUserIs([]string{}))
	assert.NoError(t, actor.CheckIfUserIs([]string{"member", "admin"}))

	err := actor.CheckIfUserIs([]string{"admin"})
	require.Error(t, err)
	assert.Equal(t, "PERMISSION_DENIED", apperr.As(err).Code)
}

/*
TestVisitorVisit verifies the single authentication-class failure in the
pipeline: a visitor reaching an endpoint that does not admit visitors.
*/
func TestVisitorVisit(t *testing.T) {
	visitor := principal.Visitor()
	member := &principal.Principal{ID: "user-42", Type: "member"}

	assert.NoError(t, visitor.VisitorVisit(true))
	assert.NoError(t, member.VisitorVisit(false))

	err := visitor.VisitorVisit(false)
	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "UNAUTHORIZED", ae.Code)
	assert.Equal(t, 401, ae.HTTPStatus)
}

/*
TestVisitor pins the shape of the distinguished visitor principal.
*/
func TestVisitor(t *testing.T) {
	visitor := principal.Visitor()
	assert.True(t, visitor.IsVisitor())
	assert.Equal(t, principal.TypeVisitor, visitor.Type)
	assert.Empty(t, visitor.Actions)
}
