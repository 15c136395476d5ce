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

const tokenColumns = `id, user_id, name, abilities, token_hash, expires_at, last_used_at, created_at`

// TokenRepository implements auth.TokenRepository using PostgreSQL.
type TokenRepository struct {
	db DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new access token.
func (r *TokenRepository) Create(ctx context.Context, token *auth.AccessToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO personal_access_tokens (
			id, user_id, name, abilities, token_hash, expires_at, last_used_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.Name,
		token.Abilities,
		token.TokenHash,
		token.ExpiresAt,
		token.LastUsedAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a token by ID.
func (r *TokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.AccessToken, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM personal_access_tokens WHERE id = $1`, id.String())

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_ID_FAILED").
			With("operation", "get token by id").
			With("id", id.String()).
			Wrap(err)
	}
	return token, nil
}

// ListByUser retrieves all tokens for a user, newest first.
func (r *TokenRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.AccessToken, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+tokenColumns+`
		FROM personal_access_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("operation", "list tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.AccessToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, oops.Code("TOKEN_SCAN_FAILED").
				With("operation", "scan token row").
				Wrap(err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TOKEN_ROWS_ERROR").
			With("operation", "iterate token rows").
			Wrap(err)
	}
	return tokens, nil
}

// UpdateLastUsed sets last_used_at.
func (r *TokenRepository) UpdateLastUsed(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE personal_access_tokens SET last_used_at = $2 WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("TOKEN_UPDATE_FAILED").
			With("operation", "update last_used_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a token by ID.
func (r *TokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM personal_access_tokens WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all tokens for a user.
func (r *TokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM personal_access_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_BY_USER_FAILED").
			With("operation", "delete tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens whose expiry is at or before now.
func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM personal_access_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*auth.AccessToken, error) {
	var (
		idStr     string
		userIDStr string
		token     auth.AccessToken
	)
	err := row.Scan(
		&idStr,
		&userIDStr,
		&token.Name,
		&token.Abilities,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.LastUsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("TOKEN_SCAN_FAILED").
			With("operation", "scan token").
			Wrap(err)
	}

	if token.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if token.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("TOKEN_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	return &token, nil
}

var _ auth.TokenRepository = (*TokenRepository)(nil)
