// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package data

import (
	"context"
	"log/slog"

	"github.com/taibuivan/torii/internal/endpoint"
	"github.com/taibuivan/torii/internal/gate"
	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/principal"
)

// Service drives one operation chain per request and executes the
// resulting descriptor.
type Service struct {
	repo     Repository
	registry *endpoint.Registry
	deps     gate.Deps
	logger   *slog.Logger
}

// NewService constructs the data [Service].
func NewService(repo Repository, registry *endpoint.Registry, deps gate.Deps, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		deps:     deps,
		logger:   logger,
	}
}

// Input is the raw per-request material the HTTP layer extracts.
type Input struct {
	// Model is the target model identity from the URL.
	Model string
	// Path is the canonical endpoint path used for descriptor resolution
	// and rate-limit keying.
	Path string
	// Principal is the authenticated actor (or the visitor principal).
	Principal *principal.Principal
	// ClientAddr is the client network address.
	ClientAddr string
	// Filter is the raw user-supplied query filter.
	Filter map[string]any
	// Document is the raw user-supplied body payload.
	Document map[string]any
}

// request resolves the endpoint descriptor and assembles the chain request.
func (service *Service) request(input Input) (gate.Request, error) {
	descriptor := service.registry.Resolve(input.Principal.Type, input.Path)
	if descriptor == nil {
		return gate.Request{}, apperr.PermissionDenied("No endpoint is configured for this role and path")
	}

	return gate.Request{
		Model:      input.Model,
		Path:       input.Path,
		Principal:  input.Principal,
		Endpoint:   descriptor,
		ClientAddr: input.ClientAddr,
		Filter:     input.Filter,
		Document:   input.Document,
	}, nil
}

/*
Create gates and executes a Create operation.

Parameters:
  - context: context.Context
  - input: Input (Document carries the new record payload)

Returns:
  - *Record: The stored record
  - error: Gate rejections or storage failures
*/
func (service *Service) Create(context context.Context, input Input) (*Record, error) {
	request, err := service.request(input)
	if err != nil {
		return nil, err
	}

	chain, err := gate.NewCreate(context, request, service.deps)
	if err != nil {
		return nil, err
	}

	descriptor, err := chain.Perform(context)
	if err != nil {
		return nil, err
	}

	return service.repo.Create(context, descriptor)
}

/*
Read gates and executes a Read operation.

Returns:
  - []*Record: Records matching the composed filter
  - error: Gate rejections or storage failures
*/
func (service *Service) Read(context context.Context, input Input) ([]*Record, error) {
	request, err := service.request(input)
	if err != nil {
		return nil, err
	}

	chain, err := gate.NewRead(context, request, service.deps)
	if err != nil {
		return nil, err
	}

	descriptor, err := chain.Perform(context)
	if err != nil {
		return nil, err
	}

	return service.repo.Read(context, descriptor)
}

/*
Update gates and executes an Update operation.

Returns:
  - int64: Number of updated records
  - error: Gate rejections or storage failures
*/
func (service *Service) Update(context context.Context, input Input) (int64, error) {
	request, err := service.request(input)
	if err != nil {
		return 0, err
	}

	chain, err := gate.NewUpdate(context, request, service.deps)
	if err != nil {
		return 0, err
	}

	descriptor, err := chain.Perform(context)
	if err != nil {
		return 0, err
	}

	return service.repo.Update(context, descriptor)
}

/*
Delete gates and executes a Delete operation.

Returns:
  - int64: Number of deleted records
  - error: Gate rejections or storage failures
*/
func (service *Service) Delete(context context.Context, input Input) (int64, error) {
	request, err := service.request(input)
	if err != nil {
		return 0, err
	}

	chain, err := gate.NewDelete(context, request, service.deps)
	if err != nil {
		return 0, err
	}

	descriptor, err := chain.Perform(context)
	if err != nil {
		return 0, err
	}

	return service.repo.Delete(context, descriptor)
}
