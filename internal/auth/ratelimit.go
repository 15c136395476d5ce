// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"time"
)

// Login throttling configuration.
const (
	// LockoutDuration is the time a user is locked out after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers a lockout.
	LockoutThreshold = 7
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	// IsLockedOut indicates the account is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the lockout state at now.
// lockedUntil is the current lockout timestamp (nil if not locked).
func CheckFailures(failures int, lockedUntil *time.Time, now time.Time) RateLimitResult {
	if IsLockedOutAt(lockedUntil, now) {
		return RateLimitResult{
			IsLockedOut:      true,
			LockoutRemaining: lockedUntil.Sub(now),
		}
	}
	if failures >= LockoutThreshold && lockedUntil == nil {
		return RateLimitResult{IsLockedOut: true, LockoutRemaining: LockoutDuration}
	}
	return RateLimitResult{}
}

// IsLockedOut returns true if the lockout time is in the future.
func IsLockedOut(lockedUntil *time.Time) bool {
	return IsLockedOutAt(lockedUntil, time.Now())
}

// IsLockedOutAt returns true if the lockout time is after now.
func IsLockedOutAt(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lockout timestamp for the given failure count.
// Returns nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration)
	return &lockout
}
