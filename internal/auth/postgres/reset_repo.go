// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
// The table holds at most one row per email.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Upsert stores the record, replacing any existing record for the email.
func (r *PasswordResetRepository) Upsert(ctx context.Context, record *auth.PasswordResetRecord) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO password_resets (email, token_hash, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at
	`, auth.NormalizeEmail(record.Email), record.TokenHash, record.CreatedAt)
	if err != nil {
		return oops.Code("RESET_UPSERT_FAILED").
			With("operation", "upsert password_reset").
			With("email", record.Email).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves the record for an email.
func (r *PasswordResetRepository) GetByEmail(ctx context.Context, email string) (*auth.PasswordResetRecord, error) {
	var rec auth.PasswordResetRecord
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT email, token_hash, created_at FROM password_resets WHERE email = $1
	`, auth.NormalizeEmail(email)).Scan(&rec.Email, &rec.TokenHash, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get password_reset").
			With("email", email).
			Wrap(err)
	}
	return &rec, nil
}

// Consume deletes the record for email if it still matches tokenHash and is
// younger than notBefore. A concurrent consumer blocks on the row lock and
// then sees zero rows.
func (r *PasswordResetRepository) Consume(ctx context.Context, email, tokenHash string, notBefore time.Time) (bool, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets
		WHERE email = $1 AND token_hash = $2 AND created_at > $3
	`, auth.NormalizeEmail(email), tokenHash, notBefore)
	if err != nil {
		return false, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume password_reset").
			With("email", email).
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteCreatedBefore removes all records created before cutoff and returns the count.
func (r *PasswordResetRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM password_resets WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
