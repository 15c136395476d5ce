// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

// GatewayDummyHash exposes the hash Login verifies unknown emails against.
func GatewayDummyHash(g *Gateway) string { return g.dummyHash }
