// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/authgate/authgate/internal/auth"
)

const unknownClient = "unknown"

// authedHandler receives the caller resolved from the bearer token.
type authedHandler func(w http.ResponseWriter, r *http.Request, user *auth.User, token *auth.AccessToken)

// authenticated resolves the bearer token and passes the user and token to
// next. Requests without a valid token get 401.
func (a *API) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, failure(msgUnauthenticated))
			return
		}
		user, token, err := a.gw.Authenticate(r.Context(), bearer)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next(w, r, user, token)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// clientLabel names a token after the client's User-Agent.
func clientLabel(r *http.Request) string {
	if strings.TrimSpace(r.UserAgent()) == "" {
		return unknownClient
	}
	return auth.TokenName(r.UserAgent())
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.gw.Register(r.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	body := success()
	body.MustVerifyEmail = &res.MustVerifyEmail
	writeJSON(w, http.StatusCreated, body)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	res, err := a.gw.Login(r.Context(), auth.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		Remember:    req.Remember,
		ClientLabel: clientLabel(r),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	body := success()
	body.User = toUserJSON(res.User)
	body.Token = res.PlainTextToken
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request, user *auth.User, token *auth.AccessToken) {
	if err := a.gw.Logout(r.Context(), user, token); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success())
}

func (a *API) handleUser(w http.ResponseWriter, _ *http.Request, user *auth.User, _ *auth.AccessToken) {
	body := success()
	body.User = toUserJSON(user)
	writeJSON(w, http.StatusOK, body)
}

// handleForgotPassword renders sent and throttled alike so the response
// does not reveal whether the email is registered.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	status, err := a.gw.SendResetLink(r.Context(), req.Email)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if status == auth.ResetStatusThrottled {
		a.logger.DebugContext(r.Context(), "reset link throttled")
	}

	body := success()
	body.Message = msgResetLinkSent
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.gw.ResetPassword(r.Context(), req.Email, req.Token, req.Password); err != nil {
		a.writeError(w, r, err)
		return
	}

	body := success()
	body.Message = msgPasswordReset
	writeJSON(w, http.StatusOK, body)
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	_, err := a.gw.VerifyEmail(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "signature"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success())
}

func (a *API) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	if err := a.gw.ResendVerification(r.Context(), req.Email); err != nil {
		a.writeError(w, r, err)
		return
	}

	body := success()
	body.Message = msgVerificationSent
	writeJSON(w, http.StatusOK, body)
}
