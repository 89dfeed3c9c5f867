// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package endpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/platform/validate"
	"github.com/taibuivan/torii/internal/schema"
)

// Registry resolves endpoint descriptors by principal role and path.
//
// # Immutability
//
// The registry is built once at startup and never modified afterwards, so
// it is safe for concurrent reads without locking.
type Registry struct {
	byRole map[string]map[string]*Descriptor
}

// Config is the on-disk registry shape: role -> list of descriptors.
type Config map[string][]*Descriptor

/*
LoadFile reads, validates, and compiles an endpoint registry from a JSON file.

Parameters:
  - path: string (filesystem path to the registry JSON)
  - compiler: schema.Compiler (engine used to compile every declared schema)

Returns:
  - *Registry: The ready registry
  - error: Read, decode, validation, or schema-compile failures
*/
func LoadFile(path string, compiler schema.Compiler) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("endpoint: failed to read registry file %s: %w", path, err)
	}

	var config Config
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("endpoint: failed to decode registry file %s: %w", path, err)
	}

	return NewRegistry(config, compiler)
}

/*
NewRegistry builds a registry from an in-memory config.

Description: Every descriptor is structurally validated and every declared
schema is compiled eagerly, so a broken registry fails at startup rather
than on the first request that hits the broken route.

Parameters:
  - config: Config (role -> descriptors)
  - compiler: schema.Compiler

Returns:
  - *Registry: The ready registry
  - error: Validation or schema-compile failures
*/
func NewRegistry(config Config, compiler schema.Compiler) (*Registry, error) {
	registry := &Registry{byRole: make(map[string]map[string]*Descriptor, len(config))}

	for role, descriptors := range config {
		paths := make(map[string]*Descriptor, len(descriptors))

		for i, descriptor := range descriptors {
			if err := validateDescriptor(role, i, descriptor); err != nil {
				return nil, err
			}
			if err := compileSurfaces(role, descriptor, compiler); err != nil {
				return nil, err
			}

			if _, duplicate := paths[descriptor.Path]; duplicate {
				return nil, apperr.Configuration(
					"Duplicate endpoint path " + descriptor.Path + " for role " + role)
			}
			paths[descriptor.Path] = descriptor
		}
		registry.byRole[role] = paths
	}

	return registry, nil
}

// Resolve returns the descriptor for (role, path), or nil when the role has
// no configuration for the path.
func (registry *Registry) Resolve(role, path string) *Descriptor {
	descriptors, ok := registry.byRole[role]
	if !ok {
		return nil
	}
	return descriptors[path]
}

// validateDescriptor checks the structural invariants of one descriptor.
func validateDescriptor(role string, index int, descriptor *Descriptor) error {
	where := "role " + role + ", descriptor " + strconv.Itoa(index)
	if descriptor == nil {
		return apperr.Configuration("Missing descriptor (" + where + ")")
	}

	v := &validate.Validator{}
	v.Required("path", descriptor.Path)
	v.Required("action", descriptor.Action)

	if descriptor.RateLimit != nil {
		v.Custom("rate_limit.window_seconds", descriptor.RateLimit.WindowSeconds <= 0,
			"Must be a positive number of seconds")
		v.Custom("rate_limit.max_count", descriptor.RateLimit.MaxCount <= 0,
			"Must be a positive count")
	}

	for _, surface := range []*Surface{descriptor.Query, descriptor.Body} {
		if surface == nil || surface.Schemas == nil {
			continue
		}
		v.Custom("schemas", surface.Schemas.Single == nil && len(surface.Schemas.AnyOf) == 0,
			"Schema set must declare a single schema or an any_of list")
		v.Custom("schemas", surface.Schemas.Single != nil && len(surface.Schemas.AnyOf) > 0,
			"Schema set cannot declare both single and any_of")
	}

	for i, upload := range descriptor.Uploads {
		prefix := "uploads[" + strconv.Itoa(i) + "]."
		v.Required(prefix+"field", upload.Field)
		v.Required(prefix+"directory", upload.Directory)
	}

	if err := v.Err(); err != nil {
		appError := apperr.As(err)
		return apperr.Configuration("Invalid endpoint registry (" + where + "): " + renderDetails(appError))
	}
	return nil
}

// compileSurfaces eagerly compiles the schema sets on both surfaces.
func compileSurfaces(role string, descriptor *Descriptor, compiler schema.Compiler) error {
	for _, surface := range []*Surface{descriptor.Query, descriptor.Body} {
		if surface == nil || surface.Schemas == nil {
			continue
		}
		if err := surface.Schemas.Compile(compiler); err != nil {
			return apperr.Configuration(
				"Schema compile failed for " + descriptor.Path + " (role " + role + "): " + err.Error())
		}
	}
	return nil
}

// renderDetails flattens validation details into one startup message.
func renderDetails(appError *apperr.AppError) string {
	if appError == nil || len(appError.Details) == 0 {
		return "validation failed"
	}
	message := ""
	for i, detail := range appError.Details {
		if i > 0 {
			message += "; "
		}
		message += detail.Field + ": " + detail.Message
	}
	return message
}
