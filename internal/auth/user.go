// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Field constraints.
const (
	MaxNameLength     = 255
	MaxEmailLength    = 255
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// User is a registered account.
type User struct {
	ID              ulid.ULID
	Name            string
	Email           string
	PasswordHash    string
	Avatar          *string
	EmailVerifiedAt *time.Time
	FailedAttempts  int
	LockedUntil     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewUser creates a validated User. The email is normalized before validation.
func NewUser(name, email, passwordHash string, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	return &User{
		ID:           ulid.Make(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// HasVerifiedEmail reports whether the user has confirmed their mailbox.
func (u *User) HasVerifiedEmail() bool {
	return u.EmailVerifiedAt != nil
}

// IsLockedAt returns true if the user is locked out at now.
func (u *User) IsLockedAt(now time.Time) bool {
	return IsLockedOutAt(u.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if threshold reached.
func (u *User) RecordFailure(now time.Time) {
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts, now)
	u.UpdatedAt = now
}

// RecordSuccess resets failure counter and lockout.
func (u *User) RecordSuccess(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalidField(code, field, message string) error {
	return oops.Code(code).
		With("field", field).
		Wrap(&ValidationError{Field: field, Message: message})
}

// ValidateName validates a display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalidField("AUTH_INVALID_NAME", "name", "The name field is required.")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return invalidField("AUTH_INVALID_NAME", "name", "The name may not be greater than 255 characters.")
	}
	return nil
}

// ValidateEmail validates an already-normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return invalidField("AUTH_INVALID_EMAIL", "email", "The email field is required.")
	}
	if len(email) > MaxEmailLength {
		return invalidField("AUTH_INVALID_EMAIL", "email", "The email may not be greater than 255 characters.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalidField("AUTH_INVALID_EMAIL", "email", "The email must be a valid email address.")
	}
	return nil
}

// ValidatePassword enforces the password policy:
// 8 to 72 characters with at least one letter and one digit.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return invalidField("AUTH_INVALID_PASSWORD", "password", "The password must be at least 8 characters.")
	}
	if n > MaxPasswordLength {
		return invalidField("AUTH_INVALID_PASSWORD", "password", "The password may not be greater than 72 characters.")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return invalidField("AUTH_INVALID_PASSWORD", "password", "The password must contain at least one letter and one number.")
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns ErrDuplicateEmail if the normalized email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update updates the profile fields (name, avatar) of an existing user.
	// Verification and lockout state are never written from a caller's copy.
	Update(ctx context.Context, user *User) error

	// RecordLoginFailure atomically increments the failure counter and arms
	// the lockout once it reaches LockoutThreshold. Returns the new state.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) (failures int, lockedUntil *time.Time, err error)

	// ClearLoginFailures resets the failure counter and lockout.
	ClearLoginFailures(ctx context.Context, id ulid.ULID, now time.Time) error

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// MarkEmailVerified sets email_verified_at if it is not already set.
	// Returns true when the row changed.
	MarkEmailVerified(ctx context.Context, id ulid.ULID, at time.Time) (bool, error)
}
