// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/taibuivan/torii/internal/endpoint"
	"github.com/taibuivan/torii/internal/merge"
	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/ratelimit"
	"github.com/taibuivan/torii/internal/schema"
	"github.com/taibuivan/torii/internal/upload"
	"github.com/taibuivan/torii/pkg/slice"
)

// surfaceMatch is the resolved schema outcome for one request surface.
type surfaceMatch struct {
	defaultValue   map[string]any
	defaultOptions map[string]any
}

/*
Perform runs the pre-operation scan and composes the operation descriptor.

Description: The scan order is fixed: custom predicate, then denied-key and
denied-value scanning, then schema matching. Denied keys are scanned before
schema validation and before default merging so stale denied values can
never leak into either. Any failure is terminal for the chain and no
partial descriptor is produced. Perform does not retry anything; retrying,
if any, belongs to the persistence layer.

Parameters:
  - context: context.Context (passed to the limiter and upload relocator)

Returns:
  - *Descriptor: The normalized operation for the persistence layer
  - error: apperr failure from any scan step
*/
func (chain *Chain) Perform(context context.Context) (*Descriptor, error) {
	if chain.state != StateRateChecked {
		return nil, apperr.Configuration("Operation chain is not in a performable state")
	}

	if err := chain.prePerform(context); err != nil {
		return nil, chain.reject(err)
	}
	chain.state = StatePrePerformed

	descriptor, err := chain.compose(context)
	if err != nil {
		return nil, chain.reject(err)
	}
	chain.state = StateCompleted

	if chain.postPerform != nil {
		if err := chain.postPerform(context, descriptor); err != nil {
			return nil, chain.reject(err)
		}
	}

	chain.logger().Debug("gate_chain_completed",
		slog.String("kind", chain.kind.String()),
		slog.String("model", chain.request.Model),
		slog.String("path", chain.request.Path),
	)
	return descriptor, nil
}

// prePerform runs predicate, denied scanning, and schema matching for the
// chain's kind. Match results are kept on the chain for compose.
func (chain *Chain) prePerform(ctx context.Context) error {
	// Additional budget registered via the fluent modifier.
	if chain.extraRate != nil && chain.deps.Limiter != nil {
		key := rateKey(chain.request) + ":custom"
		if err := chain.deps.Limiter.Check(ctx, key, ratelimit.Policy{
			Window: chain.extraRate.Window,
			Max:    chain.extraRate.Max,
		}); err != nil {
			return err
		}
	}

	if chain.predicate != nil && !chain.predicate(chain.request) {
		message := chain.predicateMessage
		if message == "" {
			message = "Predicate check did not succeed"
		}
		return apperr.PredicateNotSucceeded(message)
	}

	descriptor := chain.request.Endpoint

	switch chain.kind {
	case KindRead:
		// Reads tolerate best-effort filtering: denied keys are silently
		// dropped instead of rejecting the request. Running the strip twice
		// is a no-op, the keys are already absent.
		chain.request.Filter = chain.strip(descriptor.Query, chain.request.Filter)
		return chain.matchQuery(descriptor.Query, chain.request.Filter)

	case KindDelete:
		if err := chain.scan(descriptor.Query, chain.request.Filter, apperr.RestrictedQuery); err != nil {
			return err
		}
		return chain.matchQuery(descriptor.Query, chain.request.Filter)

	case KindCreate:
		if err := chain.scan(descriptor.Body, chain.request.Document, apperr.RestrictedBody); err != nil {
			return err
		}
		return chain.matchBody(descriptor.Body, chain.request.Document)

	case KindUpdate:
		if err := chain.scan(descriptor.Query, chain.request.Filter, apperr.RestrictedQuery); err != nil {
			return err
		}
		if err := chain.scan(descriptor.Body, chain.request.Document, apperr.RestrictedBody); err != nil {
			return err
		}
		if err := chain.matchQuery(descriptor.Query, chain.request.Filter); err != nil {
			return err
		}
		return chain.matchBody(descriptor.Body, chain.request.Document)

	default:
		return apperr.Configuration("Unknown operation kind")
	}
}

// compose builds the final descriptor for the chain's kind.
func (chain *Chain) compose(ctx context.Context) (*Descriptor, error) {
	request := chain.request

	switch chain.kind {
	case KindRead, KindDelete:
		filter := chain.composeSurface(request.Endpoint.Query, request.Filter, chain.queryMatch, nil)
		return &Descriptor{
			Model:   request.Model,
			Filter:  filter,
			Options: chain.queryMatch.defaultOptions,
		}, nil

	case KindCreate:
		seen := make(map[string]bool)
		document := chain.composeSurface(request.Endpoint.Body, request.Document, chain.bodyMatch, seen)
		if err := chain.resolveUploads(ctx, document, seen); err != nil {
			return nil, err
		}
		return &Descriptor{
			Model:    request.Model,
			Document: document,
			Options:  chain.bodyMatch.defaultOptions,
		}, nil

	case KindUpdate:
		filter := chain.composeSurface(request.Endpoint.Query, request.Filter, chain.queryMatch, nil)
		seen := make(map[string]bool)
		update := chain.composeSurface(request.Endpoint.Body, request.Document, chain.bodyMatch, seen)
		if err := chain.resolveUploads(ctx, update, seen); err != nil {
			return nil, err
		}
		return &Descriptor{
			Model:   request.Model,
			Filter:  filter,
			Update:  update,
			Options: mergeOptions(chain.queryMatch.defaultOptions, chain.bodyMatch.defaultOptions),
		}, nil

	default:
		return nil, apperr.Configuration("Unknown operation kind")
	}
}

// # Denied Key Scanning

// deniedKeys combines the surface's denied keys with the fluent extras.
func (chain *Chain) deniedKeys(surface *endpoint.Surface) []string {
	if surface == nil {
		return chain.extraDeniedKeys
	}
	if len(chain.extraDeniedKeys) == 0 {
		return surface.DeniedKeys
	}
	combined := make([]string, 0, len(surface.DeniedKeys)+len(chain.extraDeniedKeys))
	combined = append(combined, surface.DeniedKeys...)
	combined = append(combined, chain.extraDeniedKeys...)
	return combined
}

// deniedValues combines the surface's denied values with the fluent extras.
func (chain *Chain) deniedValues(surface *endpoint.Surface) map[string]any {
	var declared map[string]any
	if surface != nil {
		declared = surface.DeniedValues
	}
	if len(chain.extraDeniedValues) == 0 {
		return declared
	}
	combined := make(map[string]any, len(declared)+len(chain.extraDeniedValues))
	for key, value := range declared {
		combined[key] = value
	}
	for key, value := range chain.extraDeniedValues {
		combined[key] = value
	}
	return combined
}

// strip returns a clone of data with every denied key removed
// (deletion-mode scanning). Stripping an already-stripped map is a no-op.
func (chain *Chain) strip(surface *endpoint.Surface, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	stripped := merge.Clone(data)
	for _, key := range chain.deniedKeys(surface) {
		delete(stripped, key)
	}
	for key, denied := range chain.deniedValues(surface) {
		if value, present := stripped[key]; present && reflect.DeepEqual(value, denied) {
			delete(stripped, key)
		}
	}
	return stripped
}

// scan rejects the request when data carries a denied key or a denied
// key/value pair (rejection-mode scanning). The data is left untouched.
func (chain *Chain) scan(surface *endpoint.Surface, data map[string]any, restricted func(string) *apperr.AppError) error {
	if data == nil {
		return nil
	}
	for _, key := range chain.deniedKeys(surface) {
		if _, present := data[key]; present {
			return restricted("Key " + key + " is not allowed here")
		}
	}
	for key, denied := range chain.deniedValues(surface) {
		if value, present := data[key]; present && reflect.DeepEqual(value, denied) {
			return restricted("Value of key " + key + " is not allowed here")
		}
	}
	return nil
}

// # Schema Matching

// matchQuery validates the filter surface; mismatches map to RestrictedQuery.
func (chain *Chain) matchQuery(surface *endpoint.Surface, filter map[string]any) error {
	match, violations := matchSurface(surface, filter)
	if violations != nil {
		appError := apperr.RestrictedQuery("Filter does not match any declared schema")
		appError.Details = toDetails(violations)
		return appError
	}
	chain.queryMatch = match
	return nil
}

// matchBody validates the body surface; mismatches map to RestrictedData.
func (chain *Chain) matchBody(surface *endpoint.Surface, document map[string]any) error {
	match, violations := matchSurface(surface, document)
	if violations != nil {
		return apperr.RestrictedData("Data does not match any declared schema", toDetails(violations)...)
	}
	chain.bodyMatch = match
	return nil
}

// matchSurface runs the surface's schema set against the data, resolving
// the default payloads. Surfaces without schemas pass and expose only the
// declared fallback defaults.
func matchSurface(surface *endpoint.Surface, data map[string]any) (surfaceMatch, []schema.FieldViolation) {
	if surface == nil {
		return surfaceMatch{}, nil
	}
	if surface.Schemas == nil {
		return surfaceMatch{
			defaultValue:   scalarDefault(surface.Default),
			defaultOptions: scalarDefault(surface.DefaultOptions),
		}, nil
	}

	result := surface.Schemas.Match(data, surface.Default, surface.DefaultOptions)
	if !result.Valid {
		violations := result.Errors
		if violations == nil {
			violations = []schema.FieldViolation{{Message: "no schema matched"}}
		}
		return surfaceMatch{}, violations
	}
	return surfaceMatch{
		defaultValue:   result.DefaultValue,
		defaultOptions: result.DefaultOptions,
	}, nil
}

// scalarDefault coerces a declared fallback into a map. Sequence fallbacks
// only make sense with any-of branch addressing and are ignored here.
func scalarDefault(fallback any) map[string]any {
	m, _ := fallback.(map[string]any)
	return m
}

// toDetails converts engine violations to client-facing field errors.
func toDetails(violations []schema.FieldViolation) []apperr.FieldError {
	return slice.Map(violations, func(violation schema.FieldViolation) apperr.FieldError {
		return apperr.FieldError{Field: violation.Field, Message: violation.Message}
	})
}

// # Composition

// composeSurface merges matched defaults into the user data and applies the
// identity substitution. The observer records keys for upload detection.
func (chain *Chain) composeSurface(surface *endpoint.Surface, data map[string]any, match surfaceMatch, seen map[string]bool) map[string]any {
	shouldMerge := surface != nil && surface.Merge
	userPriority := surface != nil && surface.UserPriority

	composed := merge.Merge(data, match.defaultValue, shouldMerge, userPriority)
	if composed == nil {
		composed = map[string]any{}
	}

	var observer merge.Observer
	if seen != nil {
		observer = func(key string, _ any) { seen[key] = true }
	}

	return merge.SubstituteIdentity(
		composed,
		chain.request.Principal.ID,
		chain.request.Endpoint.StringifyIdentity,
		observer,
	)
}

// mergeOptions overlays body options onto query options.
func mergeOptions(query, body map[string]any) map[string]any {
	if query == nil {
		return body
	}
	if body == nil {
		return query
	}
	combined := make(map[string]any, len(query)+len(body))
	for key, value := range query {
		combined[key] = value
	}
	for key, value := range body {
		combined[key] = value
	}
	return combined
}

// # Upload Resolution

// resolveUploads relocates declared upload fields present in the composed
// document and rewrites them to their final URLs. It is awaited before the
// descriptor is returned.
func (chain *Chain) resolveUploads(ctx context.Context, document map[string]any, seen map[string]bool) error {
	declared := chain.request.Endpoint.Uploads
	if chain.deps.Relocator == nil || len(declared) == 0 {
		return nil
	}

	var declarations []upload.Declaration
	for _, field := range declared {
		if !seen[field.Field] {
			continue
		}
		declarations = append(declarations, upload.Declaration{
			Field:        field.Field,
			AccessPolicy: field.AccessPolicy,
			Directory: merge.ResolveDirectory(
				field.Directory,
				chain.request.Principal.ID,
				chain.request.Model,
			),
		})
	}
	if len(declarations) == 0 {
		return nil
	}

	located, err := chain.deps.Relocator.Relocate(ctx, declarations, document)
	if err != nil {
		return apperr.Internal(err)
	}
	for field, finalURL := range located {
		document[field] = finalURL
	}
	return nil
}
