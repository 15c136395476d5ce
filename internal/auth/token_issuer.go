// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenIssuer issues, resolves, and revokes bearer tokens.
type TokenIssuer struct {
	tokens TokenRepository
	users  UserRepository
	logger *slog.Logger
	now    Clock
}

// NewTokenIssuer creates a new TokenIssuer.
func NewTokenIssuer(tokens TokenRepository, users UserRepository, opts ...Option) (*TokenIssuer, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("tokens repository is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &TokenIssuer{tokens: tokens, users: users, logger: o.logger, now: o.clock}, nil
}

// Issue creates a token for user labelled with the client name.
// The plaintext is returned exactly once and is never stored.
func (s *TokenIssuer) Issue(ctx context.Context, user *User, label string, ttl time.Duration) (*AccessToken, string, error) {
	if user == nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").Errorf("user is required")
	}
	if ttl <= 0 {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").With("ttl", ttl.String()).Errorf("ttl must be positive")
	}

	secret, hash, err := GenerateTokenSecret()
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	token, err := NewAccessToken(user.ID, label, hash, now.Add(ttl), now)
	if err != nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "new access token").
			Wrap(err)
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "persist token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return token, FormatPlaintextToken(token.ID, secret), nil
}

// Resolve maps a plaintext bearer token to its user and token record.
// Every failure mode returns ErrInvalidToken.
func (s *TokenIssuer) Resolve(ctx context.Context, plaintext string) (*User, *AccessToken, error) {
	id, secret, err := ParsePlaintextToken(plaintext)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, nil, oops.Code("TOKEN_RESOLVE_FAILED").
			With("operation", "get token by id").
			Wrap(err)
	}

	if !VerifyTokenSecret(secret, token.TokenHash) {
		return nil, nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	now := s.now()
	if token.IsExpiredAt(now) {
		return nil, nil, oops.Code("AUTH_TOKEN_INVALID").
			With("token_id", token.ID.String()).
			Wrap(ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, nil, oops.Code("TOKEN_RESOLVE_FAILED").
			With("operation", "get token owner").
			Wrap(err)
	}

	if err := s.tokens.UpdateLastUsed(ctx, token.ID, now); err != nil {
		s.logger.WarnContext(ctx, "best-effort token touch failed",
			"token_id", token.ID.String(),
			"operation", "update_last_used",
			"error", err)
	} else {
		token.LastUsedAt = &now
	}

	return user, token, nil
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (s *TokenIssuer) Revoke(ctx context.Context, tokenID ulid.ULID) error {
	if err := s.tokens.Delete(ctx, tokenID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("token_id", tokenID.String()).
			Wrap(err)
	}
	return nil
}

// ListForUser returns every token of a user.
func (s *TokenIssuer) ListForUser(ctx context.Context, userID ulid.ULID) ([]*AccessToken, error) {
	tokens, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return tokens, nil
}

// RevokeAllForUser deletes every token of a user.
func (s *TokenIssuer) RevokeAllForUser(ctx context.Context, userID ulid.ULID) error {
	if err := s.tokens.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// PruneExpired deletes all expired tokens and returns how many were removed.
func (s *TokenIssuer) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("TOKEN_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}
