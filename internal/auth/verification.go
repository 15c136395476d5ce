// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinVerificationKeyLength is the shortest accepted signing key.
const MinVerificationKeyLength = 32

// VerificationService builds and checks signed email verification links.
type VerificationService struct {
	users    UserRepository
	notifier Notifier
	events   EventPublisher
	key      []byte
	baseURL  string
	logger   *slog.Logger
	now      Clock
}

// NewVerificationService creates a new VerificationService. Links are signed
// with HMAC-SHA256 under key and point at baseURL.
func NewVerificationService(
	users UserRepository,
	notifier Notifier,
	events EventPublisher,
	key []byte,
	baseURL string,
	opts ...Option,
) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("notifier is required")
	}
	if len(key) < MinVerificationKeyLength {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").
			With("min", MinVerificationKeyLength).
			Errorf("signing key must be at least %d bytes", MinVerificationKeyLength)
	}
	if events == nil {
		events = NopPublisher{}
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &VerificationService{
		users:    users,
		notifier: notifier,
		events:   events,
		key:      append([]byte(nil), key...),
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   o.logger,
		now:      o.clock,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of the normalized email.
func (s *VerificationService) Sign(email string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildLink returns the verification URL for user.
func (s *VerificationService) BuildLink(user *User) string {
	return s.baseURL + "/verify/" + user.ID.String() + "/" + s.Sign(user.Email)
}

// Confirm checks a verification link and marks the email verified.
// Confirming an already verified email succeeds without changing anything.
func (s *VerificationService) Confirm(ctx context.Context, rawID, signature string) (*User, error) {
	id, err := ulid.ParseStrict(rawID)
	if err != nil {
		return nil, oops.Code("VERIFY_USER_NOT_FOUND").With("user_id", rawID).Wrap(ErrUserNotFound)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("VERIFY_USER_NOT_FOUND").With("user_id", rawID).Wrap(ErrUserNotFound)
		}
		return nil, oops.Code("VERIFY_FAILED").
			With("operation", "GetByID").
			Wrap(err)
	}

	expected := []byte(s.Sign(user.Email))
	if !hmac.Equal(expected, []byte(strings.ToLower(signature))) {
		return nil, oops.Code("VERIFY_INVALID_SIGNATURE").With("user_id", rawID).Wrap(ErrInvalidSignature)
	}

	if user.HasVerifiedEmail() {
		return user, nil
	}

	now := s.now()
	changed, err := s.users.MarkEmailVerified(ctx, user.ID, now)
	if err != nil {
		return nil, oops.Code("VERIFY_FAILED").
			With("operation", "MarkEmailVerified").
			With("user_id", rawID).
			Wrap(err)
	}
	if !changed {
		// A concurrent confirm won the race.
		fresh, err := s.users.GetByID(ctx, user.ID)
		if err != nil {
			return nil, oops.Code("VERIFY_FAILED").With("operation", "GetByID").Wrap(err)
		}
		return fresh, nil
	}

	user.EmailVerifiedAt = &now
	if err := s.events.Publish(ctx, Event{
		Type:       EventVerified,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: now,
	}); err != nil {
		s.logger.WarnContext(ctx, "best-effort event publish failed",
			"user_id", user.ID.String(),
			"event", string(EventVerified),
			"error", err)
	}

	return user, nil
}

// Send hands the verification link for user to the notifier.
func (s *VerificationService) Send(ctx context.Context, user *User) error {
	if err := s.notifier.SendVerificationLink(ctx, user, s.BuildLink(user)); err != nil {
		return oops.Code("VERIFY_SEND_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// Resend sends a fresh link to an existing, unverified user. Unknown and
// already verified emails fail with ErrVerificationUnavailable.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("VERIFY_RESEND_UNAVAILABLE").Wrap(ErrVerificationUnavailable)
		}
		return oops.Code("VERIFY_RESEND_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}
	if user.HasVerifiedEmail() {
		return oops.Code("VERIFY_RESEND_UNAVAILABLE").
			With("user_id", user.ID.String()).
			Wrap(ErrVerificationUnavailable)
	}
	return s.Send(ctx, user)
}
