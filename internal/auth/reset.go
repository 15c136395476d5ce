// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32        // 32 bytes = 64 hex chars
	ResetTokenExpiry = time.Hour // 60 minute window

	// ResetThrottle is the minimum interval between reset requests for one email.
	ResetThrottle = 60 * time.Second
)

// PasswordResetRecord holds the hashed reset token for one email.
// A newer record for the same email replaces the older one.
type PasswordResetRecord struct {
	Email     string
	TokenHash string
	CreatedAt time.Time
}

// NewPasswordResetRecord creates a validated record.
func NewPasswordResetRecord(email, tokenHash string, now time.Time) (*PasswordResetRecord, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, oops.Code("RESET_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	return &PasswordResetRecord{Email: email, TokenHash: tokenHash, CreatedAt: now}, nil
}

// IsExpiredAt returns true if the record is older than window at t.
func (r *PasswordResetRecord) IsExpiredAt(t time.Time, window time.Duration) bool {
	return !t.Before(r.CreatedAt.Add(window))
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the user; the hash is stored in the database.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, hashResetToken(token), nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := hashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

func hashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Upsert stores the record, replacing any existing record for the same email.
	Upsert(ctx context.Context, record *PasswordResetRecord) error

	// GetByEmail retrieves the active record for an email.
	GetByEmail(ctx context.Context, email string) (*PasswordResetRecord, error)

	// Consume deletes the record for email only if it still holds tokenHash
	// and was created after notBefore. It reports whether a record was
	// removed, so at most one caller can consume a given token.
	Consume(ctx context.Context, email, tokenHash string, notBefore time.Time) (bool, error)

	// DeleteCreatedBefore removes all records created before cutoff.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Transactor runs fn inside a single store transaction. Repositories that
// support transactions join the one carried by the context passed to fn.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
