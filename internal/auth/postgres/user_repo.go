// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

const userColumns = `id, name, email, password_hash, avatar, email_verified_at,
	failed_attempts, locked_until, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO users (
			id, name, email, password_hash, avatar, email_verified_at,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID.String(),
		user.Name,
		auth.NormalizeEmail(user.Email),
		user.PasswordHash,
		user.Avatar,
		user.EmailVerifiedAt,
		user.FailedAttempts,
		user.LockedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("AUTH_DUPLICATE_EMAIL").
			With("email", user.Email).
			Wrap(auth.ErrDuplicateEmail)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`,
		auth.NormalizeEmail(email))

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// Update updates the name and avatar.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET name = $2, avatar = $3, updated_at = $4
		WHERE id = $1
	`,
		user.ID.String(),
		user.Name,
		user.Avatar,
		user.UpdatedAt,
	)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RecordLoginFailure increments failed_attempts in place and sets
// locked_until when the new count reaches the lockout threshold.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) (int, *time.Time, error) {
	var (
		failures    int
		lockedUntil *time.Time
	)
	err := conn(ctx, r.db).QueryRow(ctx, `
		UPDATE users SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE WHEN failed_attempts + 1 >= $3 THEN $4::timestamptz ELSE NULL END,
			updated_at = $2
		WHERE id = $1
		RETURNING failed_attempts, locked_until
	`, id.String(), now, auth.LockoutThreshold, now.Add(auth.LockoutDuration)).Scan(&failures, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, nil, oops.Code("USER_RECORD_FAILURE_FAILED").
			With("operation", "record login failure").
			With("id", id.String()).
			Wrap(err)
	}
	return failures, lockedUntil, nil
}

// ClearLoginFailures resets failed_attempts and locked_until.
func (r *UserRepository) ClearLoginFailures(ctx context.Context, id ulid.ULID, now time.Time) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`, id.String(), now)
	if err != nil {
		return oops.Code("USER_CLEAR_FAILURES_FAILED").
			With("operation", "clear login failures").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// MarkEmailVerified sets email_verified_at once. A second call leaves the
// stored timestamp untouched and reports false.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id ulid.ULID, at time.Time) (bool, error) {
	q := conn(ctx, r.db)
	result, err := q.Exec(ctx, `
		UPDATE users SET email_verified_at = $2, updated_at = $2
		WHERE id = $1 AND email_verified_at IS NULL
	`, id.String(), at)
	if err != nil {
		return false, oops.Code("USER_VERIFY_FAILED").
			With("operation", "mark email verified").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
		return false, oops.Code("USER_VERIFY_FAILED").
			With("operation", "check user exists").
			With("id", id.String()).
			Wrap(err)
	}
	if !exists {
		return false, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return false, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		user  auth.User
	)
	err := row.Scan(
		&idStr,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.EmailVerifiedAt,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
