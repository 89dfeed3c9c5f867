// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package principal models the authenticated actor behind a gated request and
the authorization checks performed against it.

A Principal is an immutable snapshot for the lifetime of one request: its
identity, user type, and granted action set come from the verified token
claims and are never refreshed mid-request.

Action strings are composed permission tokens of the form

	{prefix}{baseAction}{:Field}{:PrefixAction}

e.g. "Create:User" or "Update:User:Email". Authorization is a pure
membership test against the granted set; ordering and duplicates inside the
set carry no meaning.
*/
package principal

import (
	"slices"
	"strings"

	"github.com/taibuivan/torii/internal/platform/apperr"
)

// TypeVisitor is the distinguished user type for unauthenticated actors.
const TypeVisitor = "visitor"

// Principal is the authenticated actor issuing the request.
type Principal struct {
	// ID is the principal's identity, substituted for the identity sentinel
	// during default merging.
	ID string

	// Username is carried for logging only; no check reads it.
	Username string

	// Type is the principal's user type (role), e.g. "admin" or "visitor".
	Type string

	// Actions is the granted action set. Membership is the only operation
	// performed on it.
	Actions []string
}

// Visitor returns the principal used for unauthenticated requests.
func Visitor() *Principal {
	return &Principal{ID: TypeVisitor, Type: TypeVisitor}
}

// IsVisitor reports whether the principal is the distinguished visitor type.
func (p *Principal) IsVisitor() bool {
	return p.Type == TypeVisitor
}

// ComposeAction builds the permission token checked against the granted set.
//
// Empty parts contribute nothing; the result is trimmed so a bare base
// action composes to itself.
func ComposeAction(prefix, base, field, prefixAction string) string {
	var builder strings.Builder
	builder.WriteString(prefix)
	builder.WriteString(base)
	if field != "" {
		builder.WriteString(":")
		builder.WriteString(field)
	}
	if prefixAction != "" {
		builder.WriteString(":")
		builder.WriteString(prefixAction)
	}
	return strings.TrimSpace(builder.String())
}

/*
CheckAction verifies that the composed action is in the granted set.

Description: base must be resolvable from either the call site or the
endpoint descriptor; an empty base is a broken configuration, not a
permission problem, and maps to a 500 so operators notice it.

Parameters:
  - base: string (base action name, e.g. "Create:User")
  - prefix: string (optional leading prefix)
  - field: string (optional field suffix)
  - prefixAction: string (optional trailing action suffix)

Returns:
  - error: apperr.Configuration when base is empty; apperr.PermissionDenied
    when the composed action is not granted; nil otherwise
*/
func (p *Principal) CheckAction(base, prefix, field, prefixAction string) error {
	if strings.TrimSpace(base) == "" {
		return apperr.Configuration("No base action resolvable for this endpoint")
	}

	composed := ComposeAction(prefix, base, field, prefixAction)
	if !slices.Contains(p.Actions, composed) {
		return apperr.PermissionDenied("Action " + composed + " is not permitted")
	}
	return nil
}

// CheckIfUserIs fails with PermissionDenied when the principal's type is
// absent from the allowed set. An empty allowed set admits every type.
func (p *Principal) CheckIfUserIs(allowed []string) error {
	return CheckUser(p.Type, allowed)
}

// CheckUser is the type-membership check shared by [Principal.CheckIfUserIs]
// and call sites that hold a bare type string.
func CheckUser(actual string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}
	if !slices.Contains(allowed, actual) {
		return apperr.PermissionDenied("User type " + actual + " is not permitted here")
	}
	return nil
}

// VisitorVisit fails with Unauthorized when the endpoint does not admit
// visitors and the principal is one. This is the only authentication-class
// (vs authorization-class) failure in the pipeline.
func (p *Principal) VisitorVisit(canVisit bool) error {
	if !canVisit && p.IsVisitor() {
		return apperr.Unauthorized("Authentication required")
	}
	return nil
}
