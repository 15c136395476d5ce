// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

// Response messages.
const (
	msgServerError         = "Server Error"
	msgUnauthenticated     = "Unauthenticated."
	msgInvalidCredentials  = "These credentials do not match our records."
	msgVerifyEmail         = "Please confirm your email address"
	msgEmailTaken          = "The email has already been taken."
	msgResetLinkSent       = "We have emailed your password reset link."
	msgPasswordReset       = "Your password has been reset."
	msgResetTokenInvalid   = "This password reset token is invalid."
	msgInvalidVerifyLink   = "Invalid verification link"
	msgVerificationSent    = "Verification link sent!"
	msgNotFound            = "Not Found."
	msgBadRequest          = "Bad Request."
	actionVerifyEmail      = "verify_email"
	msgTooManyAttemptsTmpl = "Too many login attempts. Please try again in %d seconds."
)

// envelope is the body of every response.
type envelope struct {
	OK              bool        `json:"ok"`
	Message         string      `json:"message,omitempty"`
	Action          string      `json:"action,omitempty"`
	Errors          fieldErrors `json:"errors,omitempty"`
	User            *userJSON   `json:"user,omitempty"`
	Token           string      `json:"token,omitempty"`
	MustVerifyEmail *bool       `json:"must_verify_email,omitempty"`
}

// userJSON is the client-facing user shape.
type userJSON struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Avatar          *string    `json:"avatar"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
}

func toUserJSON(u *auth.User) *userJSON {
	if u == nil {
		return nil
	}
	return &userJSON{
		ID:              u.ID.String(),
		Name:            u.Name,
		Email:           u.Email,
		Avatar:          u.Avatar,
		EmailVerifiedAt: u.EmailVerifiedAt,
	}
}

func success() envelope { return envelope{OK: true} }

func failure(message string) envelope { return envelope{Message: message} }

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client went away
}

// writeError maps err to its status and envelope. Unknown errors are
// logged and rendered as a bare 500.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	var fieldErr *auth.ValidationError

	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Message: reqErr.message, Errors: reqErr.fields})
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeJSON(w, http.StatusUnprocessableEntity, fieldFailure("email", msgEmailTaken))
	case errors.As(err, &fieldErr):
		writeJSON(w, http.StatusUnprocessableEntity, fieldFailure(fieldErr.Field, fieldErr.Message))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, failure(msgInvalidCredentials))
	case errors.Is(err, auth.ErrAccountLocked):
		seconds := retryAfterSeconds(err)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, failure(fmt.Sprintf(msgTooManyAttemptsTmpl, seconds)))
	case errors.Is(err, auth.ErrEmailNotVerified):
		writeJSON(w, http.StatusOK, envelope{Action: actionVerifyEmail, Message: msgVerifyEmail})
	case errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, failure(msgUnauthenticated))
	case errors.Is(err, auth.ErrInvalidResetToken):
		writeJSON(w, http.StatusUnprocessableEntity, fieldFailure("email", msgResetTokenInvalid))
	case errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, failure(msgNotFound))
	case errors.Is(err, auth.ErrInvalidSignature):
		writeJSON(w, http.StatusForbidden, failure(msgInvalidVerifyLink))
	case errors.Is(err, auth.ErrVerificationUnavailable):
		writeJSON(w, http.StatusBadRequest, failure(msgBadRequest))
	default:
		errutil.LogError(a.logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, failure(msgServerError))
	}
}

func fieldFailure(field, message string) envelope {
	return envelope{Message: message, Errors: fieldErrors{field: {message}}}
}

// retryAfterSeconds reads the lockout remainder from the error context,
// rounded up to whole seconds.
func retryAfterSeconds(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 1
	}
	d, ok := oopsErr.Context()["retry_after"].(time.Duration)
	if !ok || d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}
