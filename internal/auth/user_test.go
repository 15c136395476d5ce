// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", auth.NormalizeEmail("  A@X.Com "))
	assert.Equal(t, "", auth.NormalizeEmail("   "))
}

func TestNewUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("normalizes email and trims name", func(t *testing.T) {
		u, err := auth.NewUser("  Ada  ", "Ada@Example.COM", "hash", now)
		require.NoError(t, err)
		assert.Equal(t, "Ada", u.Name)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.False(t, u.ID.IsZero())
		assert.Equal(t, now, u.CreatedAt)
		assert.False(t, u.HasVerifiedEmail())
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewUser("Ada", "ada@example.com", "", now)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_HASH")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		_, err := auth.NewUser(" ", "ada@example.com", "hash", now)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_NAME")

		var verr *auth.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "name", verr.Field)
	})
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple", "a@x.com", true},
		{"subdomain", "first.last@mail.example.org", true},
		{"empty", "", false},
		{"missing at", "ax.com", false},
		{"display name form", "Ada <ada@x.com>", false},
		{"too long", strings.Repeat("a", 250) + "@x.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_EMAIL")
			errutil.AssertErrorContext(t, err, "field", "email")
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"letters and digits", "Secr3t!23", true},
		{"minimum length", "abcdefg1", true},
		{"too short", "ab1", false},
		{"no digit", "abcdefghij", false},
		{"no letter", "1234567890", false},
		{"too long", strings.Repeat("a1", 37), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, auth.ValidateName("A"))
	assert.Error(t, auth.ValidateName(""))
	assert.Error(t, auth.ValidateName(strings.Repeat("n", auth.MaxNameLength+1)))
}

func TestUser_FailureTracking(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &auth.User{}

	for i := 0; i < auth.LockoutThreshold-1; i++ {
		u.RecordFailure(now)
	}
	assert.False(t, u.IsLockedAt(now))

	u.RecordFailure(now)
	assert.True(t, u.IsLockedAt(now))
	assert.False(t, u.IsLockedAt(now.Add(auth.LockoutDuration)))

	u.RecordSuccess(now)
	assert.Zero(t, u.FailedAttempts)
	assert.Nil(t, u.LockedUntil)
}
