// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// ResetStatus is the outcome of a reset request. Callers should render
// every status the same way so responses do not reveal which emails exist.
type ResetStatus string

// Reset request outcomes.
const (
	ResetStatusSent      ResetStatus = "sent"
	ResetStatusThrottled ResetStatus = "throttled"
)

// ResetConfig controls the password reset window.
type ResetConfig struct {
	// BaseURL is the public URL the reset link points at.
	BaseURL  string
	Expiry   time.Duration
	Throttle time.Duration
}

// ResetDeps are the collaborators of a ResetService.
type ResetDeps struct {
	Users      UserRepository
	Resets     PasswordResetRepository
	Tokens     TokenRepository
	Transactor Transactor
	Hasher     PasswordHasher
	Notifier   Notifier
	Events     EventPublisher
}

// ResetService handles password reset requests and their consumption.
type ResetService struct {
	deps   ResetDeps
	cfg    ResetConfig
	logger *slog.Logger
	now    Clock
}

// NewResetService creates a new ResetService.
func NewResetService(deps ResetDeps, cfg ResetConfig, opts ...Option) (*ResetService, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("resets repository is required")
	case deps.Tokens == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("tokens repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	case deps.Notifier == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("notifier is required")
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = ResetTokenExpiry
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}

	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &ResetService{deps: deps, cfg: cfg, logger: o.logger, now: o.clock}, nil
}

// RequestReset issues a reset token for the user with the given email and hands
// the link to the notifier. Unknown emails get ResetStatusSent without any record
// being written.
func (s *ResetService) RequestReset(ctx context.Context, email string) (ResetStatus, error) {
	email = NormalizeEmail(email)

	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ResetStatusSent, nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	now := s.now()

	existing, err := s.deps.Resets.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if s.cfg.Throttle > 0 && now.Sub(existing.CreatedAt) < s.cfg.Throttle {
			return ResetStatusThrottled, nil
		}
	case !errors.Is(err, ErrNotFound):
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByEmail reset").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	record, err := NewPasswordResetRecord(email, hash, now)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "NewPasswordResetRecord").
			Wrap(err)
	}

	if err := s.deps.Resets.Upsert(ctx, record); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Upsert").
			Wrap(err)
	}

	if err := s.deps.Notifier.SendPasswordResetLink(ctx, user, s.ResetLink(email, token)); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "SendPasswordResetLink").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return ResetStatusSent, nil
}

// ResetLink builds the URL a user follows to choose a new password.
func (s *ResetService) ResetLink(email, token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/password-reset/" + url.PathEscape(token) +
		"?email=" + url.QueryEscape(email)
}

// PerformReset consumes a reset token and sets a new password. Consuming the
// record, the password update, clearing the lockout, and revoking the user's
// bearer tokens commit together. Any token problem yields ErrInvalidResetToken,
// including losing a race with another request for the same token.
func (s *ResetService) PerformReset(ctx context.Context, email, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	email = NormalizeEmail(email)
	now := s.now()

	record, err := s.deps.Resets.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken(email)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "GetByEmail reset").
			Wrap(err)
	}

	if !VerifyResetToken(token, record.TokenHash) || record.IsExpiredAt(now, s.cfg.Expiry) {
		return invalidResetToken(email)
	}

	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken(email)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	hashed, err := s.deps.Hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	err = s.deps.Transactor.InTransaction(ctx, func(ctx context.Context) error {
		consumed, err := s.deps.Resets.Consume(ctx, email, record.TokenHash, now.Add(-s.cfg.Expiry))
		if err != nil {
			return oops.With("operation", "Consume").Wrap(err)
		}
		if !consumed {
			return invalidResetToken(email)
		}
		if err := s.deps.Users.UpdatePassword(ctx, user.ID, hashed); err != nil {
			return oops.With("operation", "UpdatePassword").Wrap(err)
		}
		if err := s.deps.Users.ClearLoginFailures(ctx, user.ID, now); err != nil {
			return oops.With("operation", "ClearLoginFailures").Wrap(err)
		}
		if err := s.deps.Tokens.DeleteByUser(ctx, user.ID); err != nil {
			return oops.With("operation", "DeleteByUser").Wrap(err)
		}
		return nil
	})
	if errors.Is(err, ErrInvalidResetToken) {
		return err
	}
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	if err := s.deps.Events.Publish(ctx, Event{
		Type:       EventPasswordReset,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	}); err != nil {
		s.logger.WarnContext(ctx, "best-effort event publish failed",
			"user_id", user.ID.String(),
			"event", string(EventPasswordReset),
			"error", err)
	}

	return nil
}

// PruneExpired removes reset records older than the expiry window.
func (s *ResetService) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.deps.Resets.DeleteCreatedBefore(ctx, s.now().Add(-s.cfg.Expiry))
	if err != nil {
		return 0, oops.Code("RESET_PRUNE_FAILED").Wrap(err)
	}
	return n, nil
}

func invalidResetToken(email string) error {
	return oops.Code("RESET_TOKEN_INVALID").With("email", email).Wrap(ErrInvalidResetToken)
}
