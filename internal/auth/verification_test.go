// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/mocks"
	"github.com/authgate/authgate/pkg/errutil"
)

func TestNewVerificationService_Validation(t *testing.T) {
	_, err := auth.NewVerificationService(nil, mocks.NewMockNotifier(t), nil, testKey, "")
	assert.ErrorContains(t, err, "users repository is required")

	_, err = auth.NewVerificationService(mocks.NewMockUserRepository(t), nil, nil, testKey, "")
	assert.ErrorContains(t, err, "notifier is required")

	_, err = auth.NewVerificationService(mocks.NewMockUserRepository(t), mocks.NewMockNotifier(t), nil, []byte("short"), "")
	assert.ErrorContains(t, err, "signing key")
}

func TestVerificationService_SignIsDeterministic(t *testing.T) {
	env := newTestEnv(t, true)

	sig := env.verifier.Sign("ada@example.com")
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, env.verifier.Sign(" ADA@example.com"))
	assert.NotEqual(t, sig, env.verifier.Sign("bob@example.com"))
}

func TestVerificationService_BuildLink(t *testing.T) {
	env := newTestEnv(t, true)
	user := env.register(t, "Ada", "ada@example.com", "Secr3t!23")

	link := env.verifier.BuildLink(user)
	assert.Equal(t, "https://api.example.test/verify/"+user.ID.String()+"/"+env.verifier.Sign(user.Email), link)
}

func TestVerificationService_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("valid link marks verified once", func(t *testing.T) {
		env := newTestEnv(t, true)
		user := env.register(t, "Ada", "ada@example.com", "Secr3t!23")
		sent, ok := env.notifier.Last("verify")
		require.True(t, ok, "registration should dispatch a verification link")
		id, sig := verifyPartsFromLink(t, sent.Link)

		got, err := env.verifier.Confirm(ctx, id, sig)
		require.NoError(t, err)
		require.NotNil(t, got.EmailVerifiedAt)
		first := *got.EmailVerifiedAt

		env.clock.Advance(time.Hour)
		got, err = env.verifier.Confirm(ctx, id, sig)
		require.NoError(t, err, "confirming twice is not an error")
		require.NotNil(t, got.EmailVerifiedAt)
		assert.Equal(t, first, *got.EmailVerifiedAt, "verification time must not change")

		stored, err := env.store.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, first, *stored.EmailVerifiedAt)

		verified := 0
		for _, typ := range env.events.Types() {
			if typ == auth.EventVerified {
				verified++
			}
		}
		assert.Equal(t, 1, verified)
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		env := newTestEnv(t, true)
		user := env.register(t, "Ada", "ada@example.com", "Secr3t!23")
		sig := env.verifier.Sign(user.Email)
		tampered := strings.Repeat("0", len(sig))

		_, err := env.verifier.Confirm(ctx, user.ID.String(), tampered)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
		errutil.AssertErrorCode(t, err, "VERIFY_INVALID_SIGNATURE")

		stored, err := env.store.Users().GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.EmailVerifiedAt)
	})

	t.Run("signature of another email fails", func(t *testing.T) {
		env := newTestEnv(t, true)
		user := env.register(t, "Ada", "ada@example.com", "Secr3t!23")

		_, err := env.verifier.Confirm(ctx, user.ID.String(), env.verifier.Sign("bob@example.com"))
		assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	})

	t.Run("unknown user fails not found", func(t *testing.T) {
		env := newTestEnv(t, true)

		_, err := env.verifier.Confirm(ctx, ulid.Make().String(), env.verifier.Sign("ada@example.com"))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
		errutil.AssertErrorCode(t, err, "VERIFY_USER_NOT_FOUND")
	})

	t.Run("malformed id fails not found", func(t *testing.T) {
		env := newTestEnv(t, true)

		_, err := env.verifier.Confirm(ctx, "42", "abc")
		assert.ErrorIs(t, err, auth.ErrUserNotFound)
	})
}

func TestVerificationService_Resend(t *testing.T) {
	ctx := context.Background()

	t.Run("unverified user gets a new link", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.register(t, "Ada", "ada@example.com", "Secr3t!23")

		require.NoError(t, env.verifier.Resend(ctx, "Ada@Example.com"))
		assert.Equal(t, 2, env.notifier.Count("verify"))
	})

	t.Run("unknown email is unavailable", func(t *testing.T) {
		env := newTestEnv(t, true)

		err := env.verifier.Resend(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, auth.ErrVerificationUnavailable)
		errutil.AssertErrorCode(t, err, "VERIFY_RESEND_UNAVAILABLE")
	})

	t.Run("verified user is unavailable", func(t *testing.T) {
		env := newTestEnv(t, true)
		user := env.register(t, "Ada", "ada@example.com", "Secr3t!23")
		_, err := env.verifier.Confirm(ctx, user.ID.String(), env.verifier.Sign(user.Email))
		require.NoError(t, err)

		err = env.verifier.Resend(ctx, "ada@example.com")
		assert.ErrorIs(t, err, auth.ErrVerificationUnavailable)
		assert.Equal(t, 1, env.notifier.Count("verify"))
	})
}
