// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrVerifyEmail is matched by the error Login returns when the account
// must verify its email before it can sign in.
var ErrVerifyEmail = errors.New("email address not verified")

// APIError is a non-2xx response, or a 200 that carries an action instead
// of a session.
type APIError struct {
	Status     int
	Message    string
	Action     string
	Errors     map[string][]string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "authgate: %d", e.Status)
	if e.Message != "" {
		b.WriteString(" ")
		b.WriteString(e.Message)
	}
	if e.Action != "" {
		b.WriteString(" (action: " + e.Action + ")")
	}
	return b.String()
}

// Is lets errors.Is match ErrVerifyEmail.
func (e *APIError) Is(target error) bool {
	return target == ErrVerifyEmail && e.Action == actionVerifyEmail
}

// FieldError returns the first message for a field, or "".
func (e *APIError) FieldError(field string) string {
	if msgs := e.Errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// IsUnauthenticated reports whether err is a 401 from the service.
func IsUnauthenticated(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsValidation reports whether err is a 422 with field errors.
func IsValidation(err error) bool {
	return hasStatus(err, http.StatusUnprocessableEntity)
}

// IsLockedOut reports whether err is a 429 lockout. RetryAfter on the
// APIError says how long to wait.
func IsLockedOut(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
