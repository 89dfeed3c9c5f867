// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Torii.

It provides a rich error type that bridges the gap between low-level pipeline
failures (authorization, rate limiting, schema validation) and high-level
HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Authentication (401), Authorization (403), RateLimit (429),
    Validation (400/403), Configuration (500).
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the gate pipeline should be wrapped as an [AppError]
to ensure consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the Torii API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "PERMISSION_DENIED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for validation responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Authentication Errors (401)

// Unauthorized creates a 401 [AppError].
//
// It is the only authentication-class error the gate produces: a visitor
// principal reaching an endpoint that does not admit visitors.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// # Authorization Errors (403)

// PermissionDenied creates a 403 [AppError] for a principal whose granted
// action set or user type does not admit the attempted operation.
func PermissionDenied(msg string) *AppError {
	return &AppError{
		Code:       "PERMISSION_DENIED",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// RestrictedQuery creates a 403 [AppError] for a filter carrying a denied
// key or a denied key/value pair.
func RestrictedQuery(msg string) *AppError {
	return &AppError{
		Code:       "RESTRICTED_QUERY",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// RestrictedBody creates a 403 [AppError] for a request body carrying a
// denied key or a denied key/value pair.
func RestrictedBody(msg string) *AppError {
	return &AppError{
		Code:       "RESTRICTED_BODY",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// RestrictedData creates a 403 [AppError] for data that failed schema
// validation, with the engine's error list attached as details.
func RestrictedData(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "RESTRICTED_DATA",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
		Details:    details,
	}
}

// PredicateNotSucceeded creates a 403 [AppError] for a caller-supplied
// predicate check that evaluated to false.
func PredicateNotSucceeded(msg string) *AppError {
	return &AppError{
		Code:       "PREDICATE_NOT_SUCCEEDED",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// InvalidAccount creates a 403 [AppError] for a principal whose account
// state does not admit any gated operation.
func InvalidAccount(msg string) *AppError {
	return &AppError{
		Code:       "INVALID_ACCOUNT",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// # Rate Limiting Errors (429)

// TooManyRequests creates a 429 [AppError].
func TooManyRequests(msg string) *AppError {
	return &AppError{
		Code:       "TOO_MANY_REQUESTS",
		Message:    msg,
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// RateLimited creates a 429 [AppError] with a retry hint.
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "TOO_MANY_REQUESTS",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Record") // Returns "Record not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
//
// It is used for malformed input at the transport boundary (bad JSON,
// malformed endpoint configuration). Schema mismatches inside the gate
// pipeline use [RestrictedData] instead.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Server Errors (5xx)

// Configuration creates a 500 [AppError] for unresolvable endpoint
// configuration (no base action resolvable, unknown verb).
//
// This is a configuration error, not a permission error: the endpoint
// descriptor is broken, and no amount of client-side change can fix it.
func Configuration(msg string) *AppError {
	return &AppError{
		Code:       "CONFIGURATION",
		Message:    msg,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
