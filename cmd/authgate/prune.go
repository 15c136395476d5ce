// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/config"
)

// pruneResult counts the records one pass removed.
type pruneResult struct {
	Tokens int64
	Resets int64
}

// pruner is the part of the auth services a prune pass needs.
type pruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// prunedRecorder receives per-kind counts. *observability.Metrics satisfies it.
type prunedRecorder interface {
	RecordPruned(kind string, n int64)
}

func pruneOnce(ctx context.Context, tokens, resets pruner, rec prunedRecorder) (pruneResult, error) {
	var res pruneResult
	var err error
	if res.Tokens, err = tokens.PruneExpired(ctx); err != nil {
		return res, err
	}
	if res.Resets, err = resets.PruneExpired(ctx); err != nil {
		return res, err
	}
	if rec != nil {
		rec.RecordPruned("tokens", res.Tokens)
		rec.RecordPruned("password_resets", res.Resets)
	}
	return res, nil
}

// runPruner prunes every interval until ctx is done.
func runPruner(ctx context.Context, interval time.Duration, tokens, resets pruner, rec prunedRecorder, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := pruneOnce(ctx, tokens, resets, rec)
			if err != nil {
				logger.Warn("prune pass failed", "error", err)
				continue
			}
			if res.Tokens > 0 || res.Resets > 0 {
				logger.Info("pruned expired records", "tokens", res.Tokens, "password_resets", res.Resets)
			}
		}
	}
}

// discardNotifier drops links. Prune never sends mail.
type discardNotifier struct{}

func (discardNotifier) SendVerificationLink(context.Context, *auth.User, string) error  { return nil }
func (discardNotifier) SendPasswordResetLink(context.Context, *auth.User, string) error { return nil }

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired access tokens and stale password reset records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			return runPrune(cmd, loaded.Config, openBackend)
		},
	}
}

func runPrune(cmd *cobra.Command, cfg *config.Config, open func(context.Context, config.DatabaseConfig, *slog.Logger) (*Backend, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	backend, err := open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	svc, err := newServices(cfg, backend, discardNotifier{}, auth.NopPublisher{}, logger)
	if err != nil {
		return err
	}

	res, err := pruneOnce(ctx, svc.tokens, svc.resets, nil)
	if err != nil {
		return err
	}
	cmd.Printf("Pruned %d expired tokens and %d password reset records\n", res.Tokens, res.Resets)
	return nil
}
