// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/xdg"
)

// Global flags available to all subcommands.
var (
	configFile string
	envFile    string
)

// NewRootCmd creates the root command for the AuthGate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "AuthGate - credential and token lifecycle service",
		Long: `AuthGate handles registration, login, bearer tokens, password reset,
and email verification behind a JSON API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: first authgate.yaml in the XDG config dirs)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the AuthGate version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := cmd.Root().Version
			if v == "" {
				v = version
			}
			cmd.Println("authgate " + v)
			return nil
		},
	}
}

// configPath returns --config, or the first authgate.yaml found in the XDG
// config directories.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return xdg.FindConfig()
}

// loadConfig resolves configuration for cmd from the config file, the
// environment, and any of cmd's flags listed in config.FlagKeys.
func loadConfig(cmd *cobra.Command, validate bool) (*config.Loaded, error) {
	return config.Load(config.LoadOptions{
		File:           configPath(),
		EnvFile:        envFile,
		Flags:          cmd.Flags(),
		SkipValidation: !validate,
	})
}
