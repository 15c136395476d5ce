// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package auth implements the credential and token lifecycle of AuthGate.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a validated name and normalized email
//   - NewAccessToken - creates an AccessToken with validated owner and expiry
//   - NewPasswordResetRecord - creates a reset record keyed by email
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - TokenIssuer - bearer token issue, resolve, and revoke
//   - ResetService - password reset request and consumption
//   - VerificationService - signed email verification links
//   - Gateway - the register, login, logout, reset, and verify flows
//
// Services are created with New* constructors that validate dependencies and
// accept WithLogger and WithClock options.
package auth
