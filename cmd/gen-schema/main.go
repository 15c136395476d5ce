// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Command gen-schema writes the JSON Schema for AuthGate config files.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/authgate/authgate/internal/config"
)

func main() {
	out := pflag.StringP("output", "o", filepath.Join("schemas", "config.schema.json"), "schema output path")
	pflag.Parse()

	schema, err := config.GenerateSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, append(schema, '\n'), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", *out)
}
