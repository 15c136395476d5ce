// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

//go:build tools

// Package main pins tool and test dependencies to go.mod.
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "github.com/stretchr/testify/mock"
)
