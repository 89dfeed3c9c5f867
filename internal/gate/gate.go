// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gate implements the per-request operation chain that authorizes and
validates CRUD-style data operations before they reach the persistence layer.

One chain instance serves exactly one request. Its lifecycle is a strict
state machine:

	Constructed -> Authorized -> RateChecked -> PrePerformed -> Completed

Any failed check moves the chain to the terminal Rejected state and no
further checks run. Construction performs the eager checks (rate limit,
visitor admission, base-action authorization, allowed user types) in that
fixed order — rate limiting first because it is the cheapest rejection and
shields the authorization logic from abuse. [Chain.Perform] then runs the
per-kind pre-operation scan (predicate, denied keys and values, schema
matching) and composes the final operation [Descriptor].

The four operation kinds share this one pipeline struct; the kind tag picks
the divergent prePerform/perform behavior. A failed chain never emits a
partial descriptor.
*/
package gate

import (
	"context"
	"log/slog"

	"github.com/taibuivan/torii/internal/endpoint"
	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/principal"
	"github.com/taibuivan/torii/internal/ratelimit"
	"github.com/taibuivan/torii/internal/upload"
)

// Kind tags the operation variant a chain performs.
type Kind int

const (
	KindCreate Kind = iota
	KindRead
	KindUpdate
	KindDelete
)

// String returns the verb used when composing action strings.
func (kind Kind) String() string {
	switch kind {
	case KindCreate:
		return "Create"
	case KindRead:
		return "Read"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// State is the chain's lifecycle position.
type State int

const (
	StateConstructed State = iota
	StateAuthorized
	StateRateChecked
	StatePrePerformed
	StateCompleted
	// StateRejected is terminal; a rejected chain refuses further work.
	StateRejected
)

// Descriptor is the chain's output: the normalized operation handed to the
// persistence layer. The chain never retains it.
type Descriptor struct {
	// Model is the target model identity.
	Model string `json:"model"`
	// Filter is the composed query filter (Read/Update/Delete).
	Filter map[string]any `json:"filter,omitempty"`
	// Document is the composed new document (Create).
	Document map[string]any `json:"document,omitempty"`
	// Update is the composed update payload (Update).
	Update map[string]any `json:"update,omitempty"`
	// Options carries operation options (limits, sorts, projections).
	Options map[string]any `json:"options,omitempty"`
}

// Request is the per-request input supplied by the routing layer.
type Request struct {
	// Model is the target model identity.
	Model string

	// Path is the endpoint path, also the rate-limit key prefix.
	Path string

	// Principal is the authenticated actor (or the visitor principal).
	Principal *principal.Principal

	// Endpoint is the descriptor resolved for (principal role, path).
	Endpoint *endpoint.Descriptor

	// ClientAddr is the client network address for rate-limit keying.
	ClientAddr string

	// BaseAction overrides the descriptor's action name when non-empty.
	BaseAction string

	// Filter is the raw user-supplied query filter (Read/Update/Delete).
	Filter map[string]any

	// Document is the raw user-supplied body (Create: new document;
	// Update: update payload).
	Document map[string]any
}

// Deps are the chain's injected collaborators.
type Deps struct {
	// Limiter enforces the endpoint rate-limit policy. Nil disables both
	// the declared policy and the fluent CheckRateLimit modifier.
	Limiter *ratelimit.Limiter

	// Relocator moves uploaded files to their final location on
	// Create/Update. Nil skips upload resolution.
	Relocator upload.Relocator

	// Logger receives chain-level diagnostics. Nil falls back to
	// slog.Default.
	Logger *slog.Logger
}

// Predicate is a caller-supplied admission check run at the start of
// prePerform.
type Predicate func(request Request) bool

// PostPerform is invoked with the finished descriptor before Perform
// returns it.
type PostPerform func(ctx context.Context, descriptor *Descriptor) error

// Chain is the shared pipeline for all four operation kinds.
//
// # Concurrency
//
// A Chain is bound to one request and must not be shared across goroutines.
type Chain struct {
	kind    Kind
	state   State
	request Request
	deps    Deps

	// Fluent-modifier state, applied during Perform.
	extraDeniedKeys   []string
	extraDeniedValues map[string]any
	predicate         Predicate
	predicateMessage  string
	extraRate         *ratelimit.Policy
	postPerform       PostPerform

	// Schema-match outcomes kept between prePerform and compose.
	queryMatch surfaceMatch
	bodyMatch  surfaceMatch
}

// NewCreate constructs the Create chain, running the eager checks.
func NewCreate(ctx context.Context, request Request, deps Deps) (*Chain, error) {
	return newChain(ctx, KindCreate, request, deps)
}

// NewRead constructs the Read chain, running the eager checks.
func NewRead(ctx context.Context, request Request, deps Deps) (*Chain, error) {
	return newChain(ctx, KindRead, request, deps)
}

// NewUpdate constructs the Update chain, running the eager checks.
func NewUpdate(ctx context.Context, request Request, deps Deps) (*Chain, error) {
	return newChain(ctx, KindUpdate, request, deps)
}

// NewDelete constructs the Delete chain, running the eager checks.
func NewDelete(ctx context.Context, request Request, deps Deps) (*Chain, error) {
	return newChain(ctx, KindDelete, request, deps)
}

// newChain runs the eager construction checks in their fixed order.
func newChain(ctx context.Context, kind Kind, request Request, deps Deps) (*Chain, error) {
	chain := &Chain{
		kind:    kind,
		state:   StateConstructed,
		request: request,
		deps:    deps,
	}

	if request.Principal == nil {
		return nil, chain.reject(apperr.Configuration("Chain constructed without a principal"))
	}
	if request.Endpoint == nil {
		return nil, chain.reject(apperr.Configuration("Chain constructed without an endpoint descriptor"))
	}

	// ── 1. Rate limit (cheapest rejection first) ──────────────────────────
	if policy := request.Endpoint.RateLimit; policy != nil && deps.Limiter != nil {
		err := deps.Limiter.Check(ctx, rateKey(request), ratelimit.Policy{
			Window: policy.Window(),
			Max:    policy.MaxCount,
		})
		if err != nil {
			return nil, chain.reject(err)
		}
	}

	// ── 2. Visitor admission ──────────────────────────────────────────────
	if err := request.Principal.VisitorVisit(request.Endpoint.CanVisit); err != nil {
		return nil, chain.reject(err)
	}

	// ── 3. Base-action authorization ──────────────────────────────────────
	if err := request.Principal.CheckAction(chain.baseAction(), chain.actionPrefix(), "", ""); err != nil {
		return nil, chain.reject(err)
	}

	// ── 4. Allowed user types ─────────────────────────────────────────────
	if err := request.Principal.CheckIfUserIs(request.Endpoint.UserTypes); err != nil {
		return nil, chain.reject(err)
	}

	chain.state = StateAuthorized
	chain.state = StateRateChecked
	return chain, nil
}

// baseAction resolves the action name: call-site override first, then the
// endpoint descriptor.
func (chain *Chain) baseAction() string {
	if chain.request.BaseAction != "" {
		return chain.request.BaseAction
	}
	return chain.request.Endpoint.Action
}

// actionPrefix resolves the composed-action prefix: the descriptor may pin
// one explicitly; otherwise the operation verb is used.
func (chain *Chain) actionPrefix() string {
	if chain.request.Endpoint.ActionPrefix != "" {
		return chain.request.Endpoint.ActionPrefix
	}
	return chain.kind.String() + ":"
}

// rateKey builds the limiter key from endpoint path and client address.
func rateKey(request Request) string {
	return request.Path + ":" + request.ClientAddr
}

// reject moves the chain to its terminal state and passes the error through.
func (chain *Chain) reject(err error) error {
	chain.state = StateRejected
	return err
}

// Kind returns the chain's operation kind.
func (chain *Chain) Kind() Kind { return chain.kind }

// State returns the chain's lifecycle position.
func (chain *Chain) State() State { return chain.state }

// # Fluent Modifiers
//
// All modifiers are usable between construction and Perform and return the
// chain for chaining. Their effects run during Perform.

// CheckIfKeysExist registers additional denied keys scanned during
// prePerform, on top of the endpoint-declared ones.
func (chain *Chain) CheckIfKeysExist(keys ...string) *Chain {
	chain.extraDeniedKeys = append(chain.extraDeniedKeys, keys...)
	return chain
}

// CheckIfKeysValueExist registers additional denied key/value pairs scanned
// during prePerform.
func (chain *Chain) CheckIfKeysValueExist(pairs map[string]any) *Chain {
	if chain.extraDeniedValues == nil {
		chain.extraDeniedValues = make(map[string]any, len(pairs))
	}
	for key, value := range pairs {
		chain.extraDeniedValues[key] = value
	}
	return chain
}

// Predicate registers a caller-supplied admission check; its failure
// surfaces as a 403 with the given message.
func (chain *Chain) Predicate(predicate Predicate, message string) *Chain {
	chain.predicate = predicate
	chain.predicateMessage = message
	return chain
}

// CheckRateLimit registers an additional rate-limit budget checked at the
// start of Perform, independent of the endpoint-declared policy.
func (chain *Chain) CheckRateLimit(policy ratelimit.Policy) *Chain {
	chain.extraRate = &policy
	return chain
}

// PostPerform registers a callback invoked with the finished descriptor.
func (chain *Chain) PostPerform(callback PostPerform) *Chain {
	chain.postPerform = callback
	return chain
}

// logger returns the chain's logger.
func (chain *Chain) logger() *slog.Logger {
	if chain.deps.Logger != nil {
		return chain.deps.Logger
	}
	return slog.Default()
}
