// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// EngineCompiler implements [Compiler] with the santhosh-tekuri JSON Schema
// engine (draft 2020-12 by default).
//
// One EngineCompiler may compile many documents; each compilation uses a
// fresh engine-level compiler so resource names never collide.
type EngineCompiler struct{}

// NewEngineCompiler creates the default schema compiler.
func NewEngineCompiler() *EngineCompiler {
	return &EngineCompiler{}
}

// Compile turns a raw schema document into a [Validator].
func (c *EngineCompiler) Compile(document map[string]any) (Validator, error) {
	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("schema: document marshal failed: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("inline.json", bytes.NewReader(encoded)); err != nil {
		return nil, fmt.Errorf("schema: invalid document: %w", err)
	}

	compiled, err := compiler.Compile("inline.json")
	if err != nil {
		return nil, fmt.Errorf("schema: compile failed: %w", err)
	}

	return &engineValidator{schema: compiled}, nil
}

// engineValidator adapts a compiled engine schema to the [Validator] capability.
type engineValidator struct {
	schema *jsonschema.Schema
}

// Validate runs the engine and flattens its error tree into field violations.
func (validator *engineValidator) Validate(data any) []FieldViolation {
	err := validator.schema.Validate(data)
	if err == nil {
		return nil
	}

	var validationError *jsonschema.ValidationError
	if errors.As(err, &validationError) {
		return flatten(validationError)
	}

	// Non-validation failures (e.g. data is not decoded JSON) still surface
	// as a single violation so the caller's contract stays uniform.
	return []FieldViolation{{Message: err.Error()}}
}

// flatten walks the engine's cause tree and collects leaf violations.
func flatten(validationError *jsonschema.ValidationError) []FieldViolation {
	if len(validationError.Causes) == 0 {
		return []FieldViolation{{
			Field:   validationError.InstanceLocation,
			Message: validationError.Message,
		}}
	}

	var violations []FieldViolation
	for _, cause := range validationError.Causes {
		violations = append(violations, flatten(cause)...)
	}
	return violations
}
