// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// GatewayConfig holds the login and registration policy.
type GatewayConfig struct {
	// RequireVerification blocks token issuance until the email is verified.
	RequireVerification bool
	DefaultTTL          time.Duration
	RememberTTL         time.Duration
}

// GatewayDeps are the collaborators of a Gateway.
type GatewayDeps struct {
	Users    UserRepository
	Hasher   PasswordHasher
	Tokens   *TokenIssuer
	Resets   *ResetService
	Verifier *VerificationService
	Events   EventPublisher
}

// Gateway orchestrates the register, login, logout, password reset, and
// email verification flows. It holds no per-request state.
type Gateway struct {
	deps   GatewayDeps
	cfg    GatewayConfig
	logger *slog.Logger
	now    Clock

	// dummyHash is verified against when the email is unknown. It is made by
	// the configured hasher so both paths pay the same cost.
	dummyHash string
}

// NewGateway creates a new Gateway.
func NewGateway(deps GatewayDeps, cfg GatewayConfig, opts ...Option) (*Gateway, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("users repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("token issuer is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("reset service is required")
	case deps.Verifier == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("verification service is required")
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTokenTTL
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = RememberTokenTTL
	}

	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	dummy, err := deps.Hasher.Hash(rand.Text())
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").
			With("operation", "hash dummy password").
			Wrap(err)
	}

	return &Gateway{deps: deps, cfg: cfg, logger: o.logger, now: o.clock, dummyHash: dummy}, nil
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult reports the created user.
type RegisterResult struct {
	User            *User
	MustVerifyEmail bool
}

// Register creates a user. Email uniqueness is enforced by the store.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := g.deps.Hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := g.now()
	user, err := NewUser(in.Name, in.Email, hash, now)
	if err != nil {
		return nil, err
	}

	if err := g.deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	g.publish(ctx, Event{Type: EventRegistered, UserID: user.ID, Email: user.Email, OccurredAt: now})

	if g.cfg.RequireVerification {
		if err := g.deps.Verifier.Send(ctx, user); err != nil {
			g.logger.WarnContext(ctx, "best-effort verification dispatch failed",
				"user_id", user.ID.String(),
				"operation", "send_verification",
				"error", err)
		}
	}

	return &RegisterResult{User: user, MustVerifyEmail: g.cfg.RequireVerification}, nil
}

// LoginInput carries the credentials and client description of a login.
type LoginInput struct {
	Email       string
	Password    string
	Remember    bool
	ClientLabel string
}

// LoginResult holds the issued token. PlainTextToken is only available here.
type LoginResult struct {
	User           *User
	Token          *AccessToken
	PlainTextToken string
}

// Login authenticates a user and issues a bearer token.
// Uses constant-time operations to prevent timing-based email enumeration.
func (g *Gateway) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	user, lookupErr := g.deps.Users.GetByEmail(ctx, NormalizeEmail(in.Email))

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = g.dummyHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify so unknown emails take as long as known ones.
	valid, verifyErr := g.deps.Hasher.Verify(in.Password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	now := g.now()

	if !userExists || !valid {
		if userExists {
			failures, lockedUntil, err := g.deps.Users.RecordLoginFailure(ctx, user.ID, now)
			switch {
			case err != nil:
				g.logger.WarnContext(ctx, "best-effort failure tracking update failed",
					"user_id", user.ID.String(),
					"operation", "record_failure",
					"error", err)
			case failures == LockoutThreshold && lockedUntil != nil:
				g.logger.InfoContext(ctx, "account locked",
					"user_id", user.ID.String(),
					"locked_until", lockedUntil.UTC())
			}
		}
		return nil, invalidCredentials()
	}

	// Checked after verification to keep timing constant.
	if rl := CheckFailures(user.FailedAttempts, user.LockedUntil, now); rl.IsLockedOut {
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("user_id", user.ID.String()).
			With("retry_after", rl.LockoutRemaining).
			Wrap(ErrAccountLocked)
	}

	dirty := user.FailedAttempts > 0 || user.LockedUntil != nil

	if g.deps.Hasher.NeedsUpgrade(user.PasswordHash) {
		if newHash, err := g.deps.Hasher.Hash(in.Password); err == nil {
			user.PasswordHash = newHash
			if err := g.deps.Users.UpdatePassword(ctx, user.ID, newHash); err != nil {
				g.logger.WarnContext(ctx, "best-effort password rehash failed",
					"user_id", user.ID.String(),
					"operation", "rehash",
					"error", err)
			}
		}
	}

	if dirty {
		if err := g.deps.Users.ClearLoginFailures(ctx, user.ID, now); err != nil {
			g.logger.WarnContext(ctx, "best-effort failure tracking update failed",
				"user_id", user.ID.String(),
				"operation", "record_success",
				"error", err)
		}
		user.RecordSuccess(now)
	}

	if g.cfg.RequireVerification && !user.HasVerifiedEmail() {
		return nil, oops.Code("AUTH_EMAIL_NOT_VERIFIED").
			With("user_id", user.ID.String()).
			Wrap(ErrEmailNotVerified)
	}

	ttl := g.cfg.DefaultTTL
	if in.Remember {
		ttl = g.cfg.RememberTTL
	}

	token, plaintext, err := g.deps.Tokens.Issue(ctx, user, in.ClientLabel, ttl)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	g.publish(ctx, Event{
		Type:       EventLoggedIn,
		UserID:     user.ID,
		Email:      user.Email,
		TokenID:    token.ID.String(),
		OccurredAt: now,
	})

	return &LoginResult{User: user, Token: token, PlainTextToken: plaintext}, nil
}

// Authenticate resolves a bearer token to its user and token.
func (g *Gateway) Authenticate(ctx context.Context, bearer string) (*User, *AccessToken, error) {
	return g.deps.Tokens.Resolve(ctx, bearer)
}

// Logout revokes the presented token only. Other sessions of the user stay valid.
func (g *Gateway) Logout(ctx context.Context, user *User, token *AccessToken) error {
	if user == nil || token == nil {
		return nil
	}
	if err := g.deps.Tokens.Revoke(ctx, token.ID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke token").
			With("token_id", token.ID.String()).
			Wrap(err)
	}
	g.publish(ctx, Event{
		Type:       EventLoggedOut,
		UserID:     user.ID,
		Email:      user.Email,
		TokenID:    token.ID.String(),
		OccurredAt: g.now(),
	})
	return nil
}

// SendResetLink starts the password reset flow for email.
func (g *Gateway) SendResetLink(ctx context.Context, email string) (ResetStatus, error) {
	if err := ValidateEmail(NormalizeEmail(email)); err != nil {
		return "", err
	}
	return g.deps.Resets.RequestReset(ctx, email)
}

// ResetPassword completes the password reset flow.
func (g *Gateway) ResetPassword(ctx context.Context, email, token, password string) error {
	return g.deps.Resets.PerformReset(ctx, email, token, password)
}

// VerifyEmail confirms a verification link.
func (g *Gateway) VerifyEmail(ctx context.Context, id, signature string) (*User, error) {
	return g.deps.Verifier.Confirm(ctx, id, signature)
}

// ResendVerification sends a new verification link to an unverified user.
func (g *Gateway) ResendVerification(ctx context.Context, email string) error {
	return g.deps.Verifier.Resend(ctx, email)
}

func (g *Gateway) publish(ctx context.Context, event Event) {
	if err := g.deps.Events.Publish(ctx, event); err != nil {
		g.logger.WarnContext(ctx, "best-effort event publish failed",
			"user_id", event.UserID.String(),
			"event", string(event.Type),
			"error", err)
	}
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}
