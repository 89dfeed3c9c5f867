// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
)

// UserRepository defines the data access contract for accounts.
//
// # Review Process
//
// This interface is placed in a separate file from user.go so entity changes
// and storage-contract changes can be reviewed independently by the team.
type UserRepository interface {
	// FindByID returns the account with the given ID.
	//
	// Returns [apperr.NotFound] if the account does not exist.
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByEmail returns the account with the given email.
	//
	// Returns [apperr.NotFound] if no account is registered with this email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByUsername returns the account with the given username.
	//
	// Returns [apperr.NotFound] if the username is available.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// Create persists a brand-new account to the storage.
	//
	// Returns a wrapped error if a unique constraint (email/username) fails.
	Create(ctx context.Context, user *User) error

	// UpdateActions replaces the account's granted-action set.
	// This is separate from profile updates so grant changes always pass
	// through [Service.Grant], which also revokes the account's sessions.
	UpdateActions(ctx context.Context, userID string, actions []string) error
}

// SessionRepository defines the data access contract for refresh-token sessions.
//
// # Domain Ownership
//
// This is kept alongside [UserRepository] because sessions are owned entirely
// by the account domain, despite serving authentication security.
type SessionRepository interface {
	// Create persists a new tracking session for an authenticated login.
	Create(ctx context.Context, session *Session) error

	// FindByTokenHash returns the active session matching the given token hash.
	//
	// Returns [apperr.NotFound] if the session is invalid, expired, or revoked.
	FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Revoke marks a specific session as permanently invalidated.
	// Usually triggered during explicit user logout from a specific device.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeAll revokes every active session belonging to the userID.
	// Used when an account's grants change, so stale action sets cannot be
	// refreshed back into circulation.
	RevokeAll(ctx context.Context, userID string) error

	// DeleteExpired physically removes sessions whose ExpiresAt is in the past.
	// Called by the periodic cleanup goroutine started in cmd/api.
	DeleteExpired(ctx context.Context) error
}
