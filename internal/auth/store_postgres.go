// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/torii/internal/platform/apperr"
	"github.com/taibuivan/torii/internal/platform/database/schema"
	"github.com/taibuivan/torii/internal/platform/dberr"
)

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// accountColumns is the canonical select list shared by the account finders.
func accountColumns() string {
	account := schema.UserAccount
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		account.ID, account.Username, account.Email, account.PasswordHash,
		account.DisplayName, account.Role, account.Actions, account.IsVerified,
		account.CreatedAt, account.UpdatedAt)
}

// scanAccount reads one account row in accountColumns order.
func scanAccount(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Role,
		&user.Actions,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create persists a new account row.
//
// # Parameters
//   - ctx: Context for the database operation.
//   - user: The account entity to persist.
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	account := schema.UserAccount
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.Table,
		account.ID, account.Username, account.Email, account.PasswordHash,
		account.DisplayName, account.Role, account.Actions, account.IsVerified,
		account.CreatedAt, account.UpdatedAt)

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Role,
		user.Actions,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "account_create")
	}

	return nil
}

// FindByID retrieves an account by its primary key.
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	account := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NULL`,
		accountColumns(), account.Table, account.ID, account.DeletedAt)

	user, err := scanAccount(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dberr.Wrap(err, "account_find_by_id")
	}

	return user, nil
}

// FindByEmail retrieves an account by its unique email address.
//
// # Returns
//
// Returns [*User] if found, or [apperr.NotFound] if no account exists.
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	account := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NULL`,
		accountColumns(), account.Table, account.Email, account.DeletedAt)

	user, err := scanAccount(repository.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found with this email")
		}
		return nil, dberr.Wrap(err, "account_find_by_email")
	}

	return user, nil
}

// FindByUsername retrieves an account by its unique username.
//
// # Returns
//
// Returns [*User] if found, or [apperr.NotFound] if no account exists.
func (repository *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	account := schema.UserAccount
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NULL`,
		accountColumns(), account.Table, account.Username, account.DeletedAt)

	user, err := scanAccount(repository.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found with this username")
		}
		return nil, dberr.Wrap(err, "account_find_by_username")
	}

	return user, nil
}

// UpdateActions replaces the granted-action set of an account.
func (repository *PostgresUserRepository) UpdateActions(ctx context.Context, userID string, actions []string) error {
	account := schema.UserAccount
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3 WHERE %s = $1 AND %s IS NULL`,
		account.Table, account.Actions, account.UpdatedAt, account.ID, account.DeletedAt)

	tag, err := repository.pool.Exec(ctx, query, userID, actions, time.Now())
	if err != nil {
		return dberr.Wrap(err, "account_update_actions")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}

	return nil
}

// PostgresSessionRepository implements the SessionRepository interface using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of the SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// Create persists a new refresh-token session row.
func (repository *PostgresSessionRepository) Create(ctx context.Context, session *Session) error {
	sess := schema.UserSession
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sess.Table,
		sess.ID, sess.UserID, sess.TokenHash, sess.UserAgent,
		sess.IPAddress, sess.ExpiresAt, sess.IsRevoked, sess.CreatedAt)

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := repository.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.IsRevoked,
		session.CreatedAt,
	)

	if err != nil {
		return dberr.Wrap(err, "session_create")
	}

	return nil
}

// FindByTokenHash returns the live session matching the token hash.
//
// Revoked and expired sessions are filtered in the query, so callers only
// ever see redeemable sessions.
func (repository *PostgresSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	sess := schema.UserSession
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > NOW()`,
		sess.ID, sess.UserID, sess.TokenHash, sess.UserAgent,
		sess.IPAddress, sess.ExpiresAt, sess.IsRevoked, sess.CreatedAt,
		sess.Table,
		sess.TokenHash, sess.IsRevoked, sess.ExpiresAt)

	session := &Session{}
	err := repository.pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.UserID,
		&session.TokenHash,
		&session.UserAgent,
		&session.IPAddress,
		&session.ExpiresAt,
		&session.IsRevoked,
		&session.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session not found")
		}
		return nil, dberr.Wrap(err, "session_find_by_token_hash")
	}

	return session, nil
}

// Revoke marks a single session as invalidated.
func (repository *PostgresSessionRepository) Revoke(ctx context.Context, sessionID string) error {
	sess := schema.UserSession
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s = $1`,
		sess.Table, sess.IsRevoked, sess.ID)

	if _, err := repository.pool.Exec(ctx, query, sessionID); err != nil {
		return dberr.Wrap(err, "session_revoke")
	}

	return nil
}

// RevokeAll invalidates every active session of an account.
func (repository *PostgresSessionRepository) RevokeAll(ctx context.Context, userID string) error {
	sess := schema.UserSession
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE WHERE %s = $1 AND %s = FALSE`,
		sess.Table, sess.IsRevoked, sess.UserID, sess.IsRevoked)

	if _, err := repository.pool.Exec(ctx, query, userID); err != nil {
		return dberr.Wrap(err, "session_revoke_all")
	}

	return nil
}

// DeleteExpired physically removes sessions past their expiry.
func (repository *PostgresSessionRepository) DeleteExpired(ctx context.Context) error {
	sess := schema.UserSession
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s <= NOW()`,
		sess.Table, sess.ExpiresAt)

	if _, err := repository.pool.Exec(ctx, query); err != nil {
		return dberr.Wrap(err, "session_delete_expired")
	}

	return nil
}
