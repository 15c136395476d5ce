// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memory"
	"github.com/authgate/authgate/internal/auth/postgres"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/events"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/internal/store"
)

// openBackend opens the store selected by cfg.Driver.
func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory credential store; data is lost on exit")
		s := memory.NewStore()
		return &Backend{
			Users:      s.Users(),
			Tokens:     s.Tokens(),
			Resets:     s.Resets(),
			Transactor: s.Transactor(),
			Ready:      func() bool { return true },
			Close:      func() {},
		}, nil
	case config.DriverPostgres:
		pool, err := store.Connect(ctx, store.PoolConfig{
			URL:        cfg.URL,
			MaxConns:   cfg.MaxConns,
			MaxRetries: cfg.ConnectRetries,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Users:      postgres.NewUserRepository(pool),
			Tokens:     postgres.NewTokenRepository(pool),
			Resets:     postgres.NewPasswordResetRepository(pool),
			Transactor: postgres.NewTransactor(pool),
			Ready:      store.Ready(pool),
			Close:      pool.Close,
		}, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Driver).Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newMailSender builds the transport named by cfg.Provider.
func newMailSender(cfg config.MailConfig, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.Provider {
	case config.MailLog:
		return mail.NewLogSender(logger), nil
	case config.MailResend:
		sender, err := mail.NewResendSender(cfg.Endpoint, cfg.APIKey, cfg.From)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("provider", cfg.Provider).Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// services are the auth components built over a Backend.
type services struct {
	gateway *auth.Gateway
	tokens  *auth.TokenIssuer
	resets  *auth.ResetService
}

func newServices(cfg *config.Config, b *Backend, notifier auth.Notifier, publisher auth.EventPublisher, logger *slog.Logger) (*services, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	withLogger := auth.WithLogger(logger)

	tokens, err := auth.NewTokenIssuer(b.Tokens, b.Users, withLogger)
	if err != nil {
		return nil, err
	}
	hasher := auth.NewArgon2idHasherWithParams(cfg.HasherParams())

	resets, err := auth.NewResetService(auth.ResetDeps{
		Users:      b.Users,
		Resets:     b.Resets,
		Tokens:     b.Tokens,
		Transactor: b.Transactor,
		Hasher:     hasher,
		Notifier:   notifier,
		Events:     publisher,
	}, auth.ResetConfig{
		BaseURL:  cfg.App.URL,
		Expiry:   cfg.Reset.Expiry,
		Throttle: cfg.Reset.Throttle,
	}, withLogger)
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerificationService(b.Users, notifier, publisher, key, cfg.App.URL, withLogger)
	if err != nil {
		return nil, err
	}

	gateway, err := auth.NewGateway(auth.GatewayDeps{
		Users:    b.Users,
		Hasher:   hasher,
		Tokens:   tokens,
		Resets:   resets,
		Verifier: verifier,
		Events:   publisher,
	}, auth.GatewayConfig{
		RequireVerification: cfg.Verification.Required,
		DefaultTTL:          cfg.Tokens.DefaultTTL,
		RememberTTL:         cfg.Tokens.RememberTTL,
	}, withLogger)
	if err != nil {
		return nil, err
	}

	return &services{gateway: gateway, tokens: tokens, resets: resets}, nil
}

// subscribeObservers attaches the audit log and any extra handlers to bus.
func subscribeObservers(bus *events.Bus, logger *slog.Logger, extra map[string]events.Handler) error {
	if err := bus.Subscribe("audit", events.AuditLog(logger)); err != nil {
		return err
	}
	for name, h := range extra {
		if err := bus.Subscribe(name, h); err != nil {
			return err
		}
	}
	return nil
}
