// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authgate/authgate/internal/config"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a config file against the schema and the semantic rules",
		Long: `Check FILE (or the file --config names or discovery finds) for unknown keys and wrong
types, then resolve it with the environment and report every semantic problem.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigValidate,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for config files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	})

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	loaded, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	out, err := loaded.Redacted()
	if err != nil {
		return err
	}
	cmd.Print(string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return oops.Code("CONFIG_INVALID").Errorf("no config file given or found: pass FILE or --config")
	}

	//nolint:gosec // path is operator-supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	if err := config.ValidateFile(data); err != nil {
		cmd.PrintErrln(path + ": " + config.SchemaErrorMessage(err))
		return err
	}

	if _, err := config.Load(config.LoadOptions{File: path, EnvFile: envFile}); err != nil {
		cmd.PrintErrln(path + ": " + err.Error())
		return err
	}
	cmd.Println(path + ": OK")
	return nil
}
