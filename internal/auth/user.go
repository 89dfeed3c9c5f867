// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package auth implements account management and token issuance for the
// Torii gate.
//
// # Architecture
//
// Accounts carry an explicit granted-action set. The set is embedded into
// the JWT at login, so the gate can authorize every request without a
// database round-trip. Changing an account's grants revokes its sessions,
// which forces a token refresh and picks up the new set.
package auth

import (
	"time"

	"github.com/taibuivan/torii/internal/platform/sec"
)

// DefaultGrants seeds the granted-action set for freshly registered
// accounts, keyed by role. Authorization is exact membership, so every
// grant names a concrete action. Deployments tune this to their endpoint
// configuration; admins extend individual accounts afterwards.
var DefaultGrants = map[sec.UserRole][]string{
	sec.RoleAdmin: {
		"Create:Article", "Read:Article", "Update:Article", "Delete:Article",
	},
	sec.RoleModerator: {
		"Read:Article", "Update:Article", "Delete:Article",
	},
	sec.RoleMember: {
		"Create:Article", "Read:Article",
	},
}

// VisitorGrants is the granted-action set assumed by unauthenticated
// principals. Visitors pass the same exact-membership authorization as
// accounts, so public reads must be granted here explicitly.
var VisitorGrants = []string{
	"Read:Article",
}

// User represents a registered account.
//
// # Rules
//   - Username is unique and URL-safe.
//   - Email is unique.
//   - PasswordHash is generated via bcrypt exclusively by [Service].
//   - Actions is the granted-action set checked by the gate; it is data,
//     not code, and lives in the accounts table.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name"`
	Role         sec.UserRole `json:"role"`
	Actions      []string     `json:"actions"`
	IsVerified   bool         `json:"is_verified"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Session represents an active refresh-token session.
//
// # Security Concept
//
// Access tokens (JWT) are stateless and cannot be revoked before expiry.
// Short-lived JWTs are paired with long-lived sessions stored in the
// database; when the JWT expires the client redeems the session (refresh
// token) for a new one. Revoking a session logs the account out globally,
// and is also how grant changes propagate.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // Hashed value of the refresh token. Omitted for security.
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
	CreatedAt time.Time `json:"created_at"`
}
