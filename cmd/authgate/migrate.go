// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/store"
)

// migrator is the subset of store.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// migratorFactory opens a migrator. Tests replace it.
var migratorFactory = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Apply, roll back, or inspect the embedded PostgreSQL migrations.
Running migrate with no subcommand applies all pending migrations.`,
		Args: cobra.NoArgs,
		RunE: runMigrateUp,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	})

	down := &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back the last N migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMigrateDown,
	}
	down.Flags().Bool("all", false, "roll back every migration (drops all auth data)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE:  runMigrateVersion,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty schema recovery)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateForce,
	})

	return cmd
}

// databaseURL returns the PostgreSQL URL migrations run against.
func databaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.Driver == config.DriverMemory {
		return "", oops.Code("CONFIG_INVALID").Errorf("migrations require the postgres driver")
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database.url or DATABASE_URL is required")
	}
	return cfg.Database.URL, nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("invalid version %q: %w", s, err)
	}
	return version, nil
}

// withMigrator opens a migrator for the configured database, runs fn, and
// closes it.
func withMigrator(cmd *cobra.Command, fn func(migrator) error) (err error) {
	loaded, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	url, err := databaseURL(loaded.Config)
	if err != nil {
		return err
	}
	m, err := migratorFactory(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		version, _, err := m.Version()
		if err != nil {
			return err
		}
		cmd.Printf("Migrations complete (version %d)\n", version)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}
	steps := 1
	if len(args) == 1 {
		if all {
			return oops.Code("INVALID_ARGS").Errorf("--all cannot be combined with a step count")
		}
		if steps, err = parseForceVersion(args[0]); err != nil {
			return err
		}
		if steps < 1 {
			return oops.Code("INVALID_ARGS").With("steps", steps).Errorf("step count must be at least 1")
		}
	}

	return withMigrator(cmd, func(m migrator) error {
		if all {
			cmd.Println("Rolling back all migrations...")
			if err := m.Down(); err != nil {
				return err
			}
		} else {
			cmd.Printf("Rolling back %d migration(s)...\n", steps)
			if err := m.Steps(-steps); err != nil {
				return err
			}
		}
		version, _, err := m.Version()
		if err != nil {
			return err
		}
		cmd.Printf("Rollback complete (version %d)\n", version)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		st, err := m.Status()
		if err != nil {
			return err
		}
		cmd.Printf("Current version: %d\n", st.Version)
		if st.Dirty {
			cmd.Println("Schema is DIRTY: fix the failed migration, then run 'authgate migrate force VERSION'")
		}
		if len(st.Pending) == 0 {
			cmd.Println("No pending migrations")
			return nil
		}
		cmd.Printf("Pending migrations (%d):\n", len(st.Pending))
		for _, v := range st.Pending {
			name, err := store.MigrationName(v)
			if err != nil {
				return err
			}
			if name == "" {
				name = fmt.Sprintf("%06d", v)
			}
			cmd.Println("  " + name)
		}
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m migrator) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if dirty {
			cmd.Printf("%d (dirty)\n", version)
			return nil
		}
		cmd.Printf("%d\n", version)
		return nil
	})
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := parseForceVersion(args[0])
	if err != nil {
		return err
	}
	return withMigrator(cmd, func(m migrator) error {
		if err := m.Force(version); err != nil {
			return err
		}
		cmd.Printf("Forced schema version to %d\n", version)
		return nil
	})
}
