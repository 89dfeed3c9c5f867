// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package schema matches candidate data against endpoint-declared schemas.

A schema declaration is an opaque JSON Schema document; this package never
interprets the constraint language itself. Compilation and validation are
delegated to the [Compiler] capability, injected at registry load time, so
the pipeline stays decoupled from any specific engine.

Matching modes:

  - Single: one schema, validated as-is.
  - AnyOf: an ordered list of alternative schemas. Branches are tried in
    declaration order and the FIRST branch that validates wins; there is no
    scoring or most-specific selection.

Each branch may carry its own default payload and default options, applied
only when that branch wins.
*/
package schema

// FieldViolation is one validation failure reported by the engine.
type FieldViolation struct {
	// Field is the instance location of the failing value ("" for the root).
	Field string `json:"field"`
	// Message is the engine's human-readable description.
	Message string `json:"message"`
}

// Validator checks one compiled schema against candidate data.
//
// Validate returns nil when the data is valid, otherwise the engine's
// violation list.
type Validator interface {
	Validate(data any) []FieldViolation
}

// Compiler turns a raw schema document into a [Validator].
//
// It is the capability boundary to the concrete schema engine; see
// [NewEngineCompiler] for the shipped implementation.
type Compiler interface {
	Compile(document map[string]any) (Validator, error)
}

// Decl is one schema declaration from an endpoint descriptor.
type Decl struct {
	// Schema is the raw JSON Schema document.
	Schema map[string]any `json:"schema"`

	// Default is this branch's default payload, merged into the final
	// filter/document when the branch wins. Overrides the fallback default.
	Default map[string]any `json:"default,omitempty"`

	// DefaultOptions is this branch's operation options payload.
	DefaultOptions map[string]any `json:"default_options,omitempty"`

	// Exclude lists non-semantic keys (sort hints, locale hints) removed
	// from the candidate data before this branch is tested. Only honored
	// in any-of mode.
	Exclude []string `json:"exclude,omitempty"`

	compiled Validator
}

// Set is either a single schema declaration or an ordered any-of list.
type Set struct {
	Single *Decl  `json:"single,omitempty"`
	AnyOf  []Decl `json:"any_of,omitempty"`
}

// Result is the outcome of matching data against a [Set].
type Result struct {
	// Valid reports whether any schema accepted the data.
	Valid bool

	// Errors holds the engine's violations when Valid is false. In any-of
	// mode only the LAST attempted branch's errors are kept; earlier branch
	// errors are discarded. Callers relying on full diagnostics must
	// document this.
	Errors []FieldViolation

	// DefaultValue is the winning branch's default, or the (possibly
	// branch-indexed) fallback.
	DefaultValue map[string]any

	// DefaultOptions is resolved the same way as DefaultValue.
	DefaultOptions map[string]any

	// Branch is the index of the winning any-of branch, or -1 in single
	// mode and on mismatch.
	Branch int
}

// declarations returns the ordered list of declarations to try.
func (set *Set) declarations() []*Decl {
	if set.Single != nil {
		return []*Decl{set.Single}
	}
	declarations := make([]*Decl, len(set.AnyOf))
	for i := range set.AnyOf {
		declarations[i] = &set.AnyOf[i]
	}
	return declarations
}

// Compile compiles every declaration in the set with the given compiler.
//
// It is called once at endpoint-registry load so that a broken schema
// surfaces as a startup configuration error, not a per-request failure.
func (set *Set) Compile(compiler Compiler) error {
	for _, decl := range set.declarations() {
		validator, err := compiler.Compile(decl.Schema)
		if err != nil {
			return err
		}
		decl.compiled = validator
	}
	return nil
}

/*
Match validates data against the set and resolves the winning defaults.

Description: In any-of mode each branch first strips its excluded keys from
the candidate data, then branches are tried in declaration order; ties are
resolved by that order alone. A winning branch's own default/options take
precedence; otherwise the fallback is used, indexed by the winning branch
position when the fallback is itself a sequence (parallel-array addressing).

Parameters:
  - data: map[string]any (never mutated)
  - fallbackDefault: any (map, or sequence of maps for parallel addressing)
  - fallbackOptions: any (same addressing rules)

Returns:
  - Result: Match outcome with resolved defaults
*/
func (set *Set) Match(data map[string]any, fallbackDefault, fallbackOptions any) Result {
	// Single-schema mode validates the data as-is.
	if set.Single != nil {
		violations := validate(set.Single, data)
		if violations != nil {
			return Result{Valid: false, Errors: violations, Branch: -1}
		}
		return Result{
			Valid:          true,
			DefaultValue:   firstNonNil(set.Single.Default, fallbackMap(fallbackDefault)),
			DefaultOptions: firstNonNil(set.Single.DefaultOptions, fallbackMap(fallbackOptions)),
			Branch:         -1,
		}
	}

	var lastViolations []FieldViolation
	for i := range set.AnyOf {
		branch := &set.AnyOf[i]
		candidate := withoutKeys(data, branch.Exclude)

		violations := validate(branch, candidate)
		if violations != nil {
			// Only the last branch's errors survive a total mismatch.
			lastViolations = violations
			continue
		}

		return Result{
			Valid:          true,
			DefaultValue:   firstNonNil(branch.Default, indexedFallback(fallbackDefault, i)),
			DefaultOptions: firstNonNil(branch.DefaultOptions, indexedFallback(fallbackOptions, i)),
			Branch:         i,
		}
	}

	return Result{Valid: false, Errors: lastViolations, Branch: -1}
}

// validate runs one declaration's compiled validator. An uncompiled
// declaration counts as a configuration failure on that declaration.
func validate(decl *Decl, data any) []FieldViolation {
	if decl.compiled == nil {
		return []FieldViolation{{Message: "schema declaration was not compiled"}}
	}
	return decl.compiled.Validate(data)
}

// withoutKeys returns a shallow copy of data with the given keys removed.
// A nil or empty exclusion list returns the data unchanged.
func withoutKeys(data map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		return data
	}
	filtered := make(map[string]any, len(data))
	for key, value := range data {
		filtered[key] = value
	}
	for _, key := range keys {
		delete(filtered, key)
	}
	return filtered
}

// firstNonNil returns the branch value when set, else the fallback.
func firstNonNil(branch, fallback map[string]any) map[string]any {
	if branch != nil {
		return branch
	}
	return fallback
}

// fallbackMap coerces a scalar fallback into a map, ignoring sequences.
func fallbackMap(fallback any) map[string]any {
	m, _ := fallback.(map[string]any)
	return m
}

// indexedFallback resolves a fallback for the winning branch: sequences are
// addressed by branch position (parallel arrays), scalars pass through.
func indexedFallback(fallback any, branch int) map[string]any {
	switch typed := fallback.(type) {
	case nil:
		return nil
	case []map[string]any:
		if branch < len(typed) {
			return typed[branch]
		}
		return nil
	case []any:
		if branch < len(typed) {
			m, _ := typed[branch].(map[string]any)
			return m
		}
		return nil
	case map[string]any:
		return typed
	default:
		return nil
	}
}
