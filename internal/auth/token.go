// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Access token configuration.
const (
	TokenSecretBytes   = 32 // 32 bytes = 64 hex chars
	MaxTokenNameLength = 255

	// DefaultTokenTTL applies to logins without "remember me".
	DefaultTokenTTL = 24 * time.Hour
	// RememberTokenTTL applies to logins with "remember me".
	RememberTokenTTL = 30 * 24 * time.Hour
)

// AbilityAll grants every ability.
const AbilityAll = "*"

// AccessToken is a bearer credential bound to one user and one client.
// Only the hash of the secret is ever stored.
type AccessToken struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	Name       string
	Abilities  []string
	TokenHash  string
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// NewAccessToken creates a validated AccessToken. An empty name becomes "unknown".
func NewAccessToken(userID ulid.ULID, name, tokenHash string, expiresAt, now time.Time) (*AccessToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry must be in the future")
	}

	return &AccessToken{
		ID:        ulid.Make(),
		UserID:    userID,
		Name:      TokenName(name),
		Abilities: []string{AbilityAll},
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// TokenName turns a client label into a storable token name: valid UTF-8,
// trimmed, at most MaxTokenNameLength characters, "unknown" when blank.
func TokenName(label string) string {
	name := strings.TrimSpace(strings.ToValidUTF8(label, "\uFFFD"))
	if utf8.RuneCountInString(name) > MaxTokenNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxTokenNameLength]))
	}
	if name == "" {
		return "unknown"
	}
	return name
}

// IsExpiredAt returns true if the token is expired at t.
func (t *AccessToken) IsExpiredAt(at time.Time) bool {
	return !at.Before(t.ExpiresAt)
}

// Can reports whether the token grants ability.
func (t *AccessToken) Can(ability string) bool {
	for _, a := range t.Abilities {
		if a == AbilityAll || a == ability {
			return true
		}
	}
	return false
}

// GenerateTokenSecret creates a secure random secret and its hash.
// Returns (plaintext_secret, sha256_hash, error).
func GenerateTokenSecret() (secret, hash string, err error) {
	b := make([]byte, TokenSecretBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenSecretBytes).
			Wrap(err)
	}

	secret = hex.EncodeToString(b)
	return secret, HashTokenSecret(secret), nil
}

// HashTokenSecret computes the SHA256 hash of a token secret.
func HashTokenSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifyTokenSecret checks the plaintext secret against the stored hash in constant time.
func VerifyTokenSecret(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	computed := HashTokenSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// FormatPlaintextToken joins a token ID and secret into the bearer form "<id>|<secret>".
func FormatPlaintextToken(id ulid.ULID, secret string) string {
	return id.String() + "|" + secret
}

// ParsePlaintextToken splits a bearer token into its ID and secret.
func ParsePlaintextToken(plaintext string) (ulid.ULID, string, error) {
	idPart, secret, ok := strings.Cut(plaintext, "|")
	if !ok || secret == "" {
		return ulid.ULID{}, "", oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	id, err := ulid.ParseStrict(idPart)
	if err != nil {
		return ulid.ULID{}, "", oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	return id, secret, nil
}

// TokenRepository manages access token persistence.
type TokenRepository interface {
	// Create stores a new access token.
	Create(ctx context.Context, token *AccessToken) error

	// GetByID retrieves a token by its ID.
	GetByID(ctx context.Context, id ulid.ULID) (*AccessToken, error)

	// ListByUser retrieves all tokens for a user, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*AccessToken, error)

	// UpdateLastUsed sets the LastUsedAt timestamp.
	UpdateLastUsed(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes a token by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes tokens expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
