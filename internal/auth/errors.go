// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an email address is already registered.
var ErrDuplicateEmail = errors.New("email has already been taken")

// ErrInvalidCredentials is returned for any failed login. It never says
// whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("these credentials do not match our records")

// ErrAccountLocked is returned while a user is locked out after repeated failures.
var ErrAccountLocked = errors.New("too many login attempts")

// ErrEmailNotVerified is returned by login when the user must verify their email first.
var ErrEmailNotVerified = errors.New("please confirm your email address")

// ErrInvalidToken is returned when a bearer token is unknown, expired, or malformed.
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrInvalidResetToken is returned when a password reset cannot be performed.
// It never says which check failed.
var ErrInvalidResetToken = errors.New("this password reset token is invalid")

// ErrUserNotFound is returned when a verification link names an unknown user.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidSignature is returned when a verification link signature does not match.
var ErrInvalidSignature = errors.New("invalid verification link")

// ErrVerificationUnavailable is returned when a verification link cannot be resent,
// either because the email is unknown or already verified.
var ErrVerificationUnavailable = errors.New("verification link cannot be sent")
