// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package endpoint holds the per-route gate configuration and its registry.

An endpoint descriptor is resolved by (principal role, request path) and
drives every decision the operation chain makes: allowed user types, the
base action name, the rate-limit budget, denied keys and values per request
surface, schema declarations with their defaults, merge/priority flags, and
upload field declarations.

Descriptors are read-only inputs to the chain. The chain never mutates
them; anything it needs to rewrite is deep-copied first.
*/
package endpoint

import (
	"time"

	"github.com/taibuivan/torii/internal/schema"
)

// RatePolicy is the per-endpoint rate-limit budget.
type RatePolicy struct {
	// WindowSeconds is the counting window length.
	WindowSeconds int `json:"window_seconds"`
	// MaxCount is the number of allowed requests per window.
	MaxCount int `json:"max_count"`
}

// Window returns the policy window as a duration.
func (p *RatePolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// Surface is the per-verb policy for one request surface (the query filter
// or the request body).
type Surface struct {
	// DeniedKeys lists keys that must never appear on this surface.
	// Read operations strip them silently; writes reject the request.
	DeniedKeys []string `json:"denied_keys,omitempty"`

	// DeniedValues maps keys to the single value that is denied for them.
	// A key carrying exactly that value is treated like a denied key.
	DeniedValues map[string]any `json:"denied_values,omitempty"`

	// Schemas is the schema set the surface must satisfy, if declared.
	Schemas *schema.Set `json:"schemas,omitempty"`

	// Default is the fallback default payload: a map, or a sequence of
	// maps addressed by the winning any-of branch position.
	Default any `json:"default,omitempty"`

	// DefaultOptions is the fallback operation options payload, with the
	// same addressing rules as Default.
	DefaultOptions any `json:"default_options,omitempty"`

	// Merge opts this surface into default merging.
	Merge bool `json:"merge"`

	// UserPriority makes user-supplied values win key collisions during
	// default merging. When false, declared defaults win.
	UserPriority bool `json:"user_priority"`
}

// UploadField declares one file-carrying field and its relocation target.
type UploadField struct {
	// Field is the data key carrying the upload.
	Field string `json:"field"`

	// AccessPolicy names the visibility applied to the relocated file
	// (e.g. "public-read", "private").
	AccessPolicy string `json:"access_policy"`

	// Directory is the target directory template. It may contain the
	// identity sentinels, resolved per request before relocation.
	Directory string `json:"directory"`
}

// Descriptor is the complete gate configuration for one endpoint as seen
// by one principal role.
type Descriptor struct {
	// Path identifies the endpoint; also the rate-limit key prefix.
	Path string `json:"path"`

	// UserTypes restricts which principal types may use the endpoint.
	// Empty admits every type.
	UserTypes []string `json:"user_types,omitempty"`

	// Action is the base action name checked against the granted set.
	// A call-site override takes precedence when present.
	Action string `json:"action"`

	// ActionPrefix is prepended when composing the action string.
	ActionPrefix string `json:"action_prefix,omitempty"`

	// CanVisit admits unauthenticated visitors when true.
	CanVisit bool `json:"can_visit"`

	// StringifyIdentity substitutes the principal identity as a string
	// during default merging; raw substitution otherwise.
	StringifyIdentity bool `json:"stringify_identity"`

	// RateLimit is the endpoint budget; nil disables the endpoint limiter.
	RateLimit *RatePolicy `json:"rate_limit,omitempty"`

	// Query is the policy for the filter surface (Read/Update/Delete).
	Query *Surface `json:"query,omitempty"`

	// Body is the policy for the document surface (Create/Update).
	Body *Surface `json:"body,omitempty"`

	// Uploads declares file-carrying fields relocated on Create/Update.
	Uploads []UploadField `json:"uploads,omitempty"`
}
