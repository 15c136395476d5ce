// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/events"
	"github.com/authgate/authgate/internal/httpapi"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/internal/observability"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the observability server",
		Long: `Run the JSON API together with the metrics and health server.
SIGINT or SIGTERM drains in-flight requests and queued mail before exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(cmd, true)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), loaded.Config, cmd, nil)
		},
	}

	cmd.Flags().String("addr", ":8080", "API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().String("driver", config.DriverPostgres, "credential store driver (postgres or memory)")
	cmd.Flags().Bool("auto-migrate", false, "apply pending migrations before serving")
	cmd.Flags().String("log-format", "json", "log format (json or text)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies and
// blocks until a signal arrives, ctx is cancelled, or a server fails.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup("authgate", version, cfg.Log.Format, level, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	logger.Info("starting authgate",
		"addr", cfg.Server.Addr,
		"driver", cfg.Database.Driver,
		"verification_required", cfg.Verification.Required)

	if cfg.Database.Driver == config.DriverPostgres && cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	backend, err := deps.BackendFactory(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("SERVE_FAILED").With("operation", "open backend").Wrap(err)
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, backend.Ready, logger)
		obsErrs, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrs, "observability", logger)
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	bus := events.NewBus(logger)
	if err := subscribeObservers(bus, logger, map[string]events.Handler{"metrics": metrics.RecordAuthEvent}); err != nil {
		_ = bus.Close() //nolint:errcheck // subscribe error takes precedence
		return oops.Code("SERVE_FAILED").With("operation", "subscribe observers").Wrap(err)
	}

	sender, err := deps.SenderFactory(cfg.Mail, logger)
	if err != nil {
		_ = bus.Close() //nolint:errcheck // sender error takes precedence
		return oops.Code("SERVE_FAILED").With("operation", "create mail sender").Wrap(err)
	}
	dispatcher, err := mail.NewDispatcher(sender, mail.DispatcherConfig{
		AppName:     cfg.App.Name,
		From:        cfg.Mail.From,
		ResetExpiry: cfg.Reset.Expiry,
	}, logger)
	if err != nil {
		_ = bus.Close() //nolint:errcheck // dispatcher error takes precedence
		return oops.Code("SERVE_FAILED").With("operation", "create mail dispatcher").Wrap(err)
	}

	svc, err := newServices(cfg, backend, metrics.InstrumentNotifier(dispatcher), bus, logger)
	if err != nil {
		shutdown(logger, cfg.Server.ShutdownTimeout, nil, dispatcher, bus, obsServer)
		return oops.Code("SERVE_FAILED").With("operation", "build services").Wrap(err)
	}

	router, err := httpapi.NewRouter(svc.gateway, httpapi.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		shutdown(logger, cfg.Server.ShutdownTimeout, nil, dispatcher, bus, obsServer)
		return oops.Code("SERVE_FAILED").With("operation", "build router").Wrap(err)
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Server.Addr)
	if err != nil {
		shutdown(logger, cfg.Server.ShutdownTimeout, nil, dispatcher, bus, obsServer)
		return oops.Code("SERVE_FAILED").With("operation", "listen").With("addr", cfg.Server.Addr).Wrap(err)
	}
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	apiErrs := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErrs <- err
		}
		close(apiErrs)
	}()

	if cfg.Tokens.PruneInterval > 0 {
		go runPruner(ctx, cfg.Tokens.PruneInterval, svc.tokens, svc.resets, metrics, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("AuthGate listening on " + listener.Addr().String())
	logger.Info("authgate ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-apiErrs:
		if err != nil {
			runErr = oops.Code("SERVE_FAILED").With("operation", "serve api").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	shutdown(logger, cfg.Server.ShutdownTimeout, server, dispatcher, bus, obsServer)
	return runErr
}

// shutdown stops components in dependency order: stop taking requests,
// drain queued mail, stop the bus, then the observability server.
func shutdown(logger *slog.Logger, timeout time.Duration, server *http.Server, dispatcher *mail.Dispatcher, bus *events.Bus, obs ObservabilityServer) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down...")
	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("error stopping API server", "error", err)
		}
	}
	if dispatcher != nil {
		if err := dispatcher.Close(ctx); err != nil {
			logger.Warn("error draining mail queue", "error", err)
		}
	}
	if bus != nil {
		if err := bus.Close(); err != nil {
			logger.Warn("error closing event bus", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(ctx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

// autoMigrate applies pending migrations before the store is opened.
func autoMigrate(url string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	migrator, err := factory(url)
	if err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	logger.Info("running database migrations")
	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	logger.Info("database migrations complete")
	return nil
}

// monitorServerErrors cancels ctx when errCh reports a failure. It exits when
// an error arrives, the channel closes, or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
