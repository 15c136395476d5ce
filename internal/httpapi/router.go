// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package httpapi exposes the auth gateway as a JSON-over-HTTP API.
//
// Every response body carries an "ok" flag. Handlers decode and validate the
// request, call exactly one gateway operation, and write the envelope.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// Gateway is the set of auth operations the API serves.
type Gateway interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.RegisterResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Authenticate(ctx context.Context, bearer string) (*auth.User, *auth.AccessToken, error)
	Logout(ctx context.Context, user *auth.User, token *auth.AccessToken) error
	SendResetLink(ctx context.Context, email string) (auth.ResetStatus, error)
	ResetPassword(ctx context.Context, email, token, password string) error
	VerifyEmail(ctx context.Context, id, signature string) (*auth.User, error)
	ResendVerification(ctx context.Context, email string) error
}

// RequestObserver records per-request metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Config configures the router.
type Config struct {
	// CORSOrigins are glob patterns such as "https://*.example.com".
	CORSOrigins []string
	Logger      *slog.Logger
	// Metrics is optional.
	Metrics RequestObserver
}

// API holds the handler dependencies.
type API struct {
	gw       Gateway
	logger   *slog.Logger
	validate *validator.Validate
}

// NewRouter builds the chi router with middleware and all routes mounted.
func NewRouter(gw Gateway, cfg Config) (http.Handler, error) {
	if gw == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("gateway is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	origins, err := NewOriginMatcher(cfg.CORSOrigins)
	if err != nil {
		return nil, err
	}

	api := &API{gw: gw, logger: logger, validate: newValidator()}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  origins.Allow,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(accessLog(logger, cfg.Metrics))
	r.Use(recoverer(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, failure("Not Found."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, failure("Method Not Allowed."))
	})

	r.Post("/register", api.handleRegister)
	r.Post("/login", api.handleLogin)
	r.Post("/password/email", api.handleForgotPassword)
	r.Post("/password/reset", api.handleResetPassword)
	r.Get("/verify/{id}/{signature}", api.handleVerifyEmail)
	r.Post("/email/verification-notification", api.handleResendVerification)

	r.Post("/logout", api.authenticated(api.handleLogout))
	r.Get("/user", api.authenticated(api.handleUser))

	return r, nil
}
