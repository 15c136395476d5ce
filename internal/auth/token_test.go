// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

func TestGenerateTokenSecret(t *testing.T) {
	secret, hash, err := auth.GenerateTokenSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)
	assert.Len(t, hash, 64)
	assert.NotEqual(t, secret, hash)
	assert.Equal(t, auth.HashTokenSecret(secret), hash)

	other, _, err := auth.GenerateTokenSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestVerifyTokenSecret(t *testing.T) {
	secret, hash, err := auth.GenerateTokenSecret()
	require.NoError(t, err)

	assert.True(t, auth.VerifyTokenSecret(secret, hash))
	assert.False(t, auth.VerifyTokenSecret("nope", hash))
	assert.False(t, auth.VerifyTokenSecret("", hash))
	assert.False(t, auth.VerifyTokenSecret(secret, ""))
}

func TestPlaintextTokenRoundTrip(t *testing.T) {
	id := ulid.Make()
	plain := auth.FormatPlaintextToken(id, "deadbeef")
	assert.Equal(t, id.String()+"|deadbeef", plain)

	gotID, secret, err := auth.ParsePlaintextToken(plain)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "deadbeef", secret)
}

func TestParsePlaintextToken_Malformed(t *testing.T) {
	for _, in := range []string{"", "no-separator", "|secret", ulid.Make().String() + "|", "not-a-ulid|secret"} {
		t.Run(in, func(t *testing.T) {
			_, _, err := auth.ParsePlaintextToken(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
			errutil.AssertErrorCode(t, err, "AUTH_TOKEN_INVALID")
		})
	}
}

func TestNewAccessToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := ulid.Make()

	t.Run("valid token has all abilities", func(t *testing.T) {
		tok, err := auth.NewAccessToken(userID, "Mozilla/5.0", "hash", now.Add(time.Hour), now)
		require.NoError(t, err)
		assert.Equal(t, "Mozilla/5.0", tok.Name)
		assert.Equal(t, []string{auth.AbilityAll}, tok.Abilities)
		assert.True(t, tok.Can("anything"))
	})

	t.Run("blank label becomes unknown", func(t *testing.T) {
		tok, err := auth.NewAccessToken(userID, "  ", "hash", now.Add(time.Hour), now)
		require.NoError(t, err)
		assert.Equal(t, "unknown", tok.Name)
	})

	t.Run("long label is truncated", func(t *testing.T) {
		tok, err := auth.NewAccessToken(userID, strings.Repeat("x", 400), "hash", now.Add(time.Hour), now)
		require.NoError(t, err)
		assert.Len(t, tok.Name, auth.MaxTokenNameLength)
	})

	t.Run("multibyte label is cut on a character boundary", func(t *testing.T) {
		tok, err := auth.NewAccessToken(userID, strings.Repeat("é", 300), "hash", now.Add(time.Hour), now)
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(tok.Name))
		assert.Equal(t, auth.MaxTokenNameLength, utf8.RuneCountInString(tok.Name))
	})

	t.Run("zero user rejected", func(t *testing.T) {
		_, err := auth.NewAccessToken(ulid.ULID{}, "x", "hash", now.Add(time.Hour), now)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID_USER")
	})

	t.Run("empty hash rejected", func(t *testing.T) {
		_, err := auth.NewAccessToken(userID, "x", "", now.Add(time.Hour), now)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID_HASH")
	})

	t.Run("past expiry rejected", func(t *testing.T) {
		_, err := auth.NewAccessToken(userID, "x", "hash", now, now)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID_EXPIRY")
	})
}

func TestTokenName(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"plain", "curl/8.0", "curl/8.0"},
		{"trimmed", "  curl/8.0 ", "curl/8.0"},
		{"blank", "   ", "unknown"},
		{"invalid bytes replaced", "agent\xff\xfe/1", "agent\uFFFD/1"},
		{"only invalid bytes", "\xc3", "\uFFFD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := auth.TokenName(tt.label)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}

	long := auth.TokenName(strings.Repeat("日本", 200))
	assert.Equal(t, auth.MaxTokenNameLength, utf8.RuneCountInString(long))
	assert.True(t, utf8.ValidString(long))
}

func TestAccessToken_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tok := &auth.AccessToken{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, tok.IsExpiredAt(now))
	assert.False(t, tok.IsExpiredAt(now.Add(59*time.Minute)))
	assert.True(t, tok.IsExpiredAt(now.Add(time.Hour)))
	assert.True(t, tok.IsExpiredAt(now.Add(2*time.Hour)))
}

func TestAccessToken_Can(t *testing.T) {
	tok := &auth.AccessToken{Abilities: []string{"read"}}
	assert.True(t, tok.Can("read"))
	assert.False(t, tok.Can("write"))
}
