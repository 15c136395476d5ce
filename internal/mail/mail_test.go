// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package mail_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/mail"
	"github.com/authgate/authgate/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// resty keeps idle keep-alive connections to httptest servers.
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

func TestVerificationMessage(t *testing.T) {
	msg, err := mail.VerificationMessage("AuthGate", "ada@example.com", "Ada <script>", "https://app.test/verify/1/abc")
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, mail.SubjectVerify, msg.Subject)
	assert.Contains(t, msg.HTML, `href="https://app.test/verify/1/abc"`)
	assert.Contains(t, msg.HTML, "Ada &lt;script&gt;")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "https://app.test/verify/1/abc")
}

func TestResetMessage(t *testing.T) {
	msg, err := mail.ResetMessage("AuthGate", "ada@example.com", "Ada", "https://app.test/password-reset/tok?email=ada%40example.com", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, mail.SubjectReset, msg.Subject)
	assert.Contains(t, msg.HTML, "expire in 60 minutes")
	assert.Contains(t, msg.HTML, "password-reset/tok?email=ada%40example.com")
	assert.Contains(t, msg.Text, "60 minutes")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := mail.NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sender.Send(context.Background(), mail.Message{To: "ada@example.com", Subject: "Hi", Text: "link"}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "log", entry["transport"])
	assert.Equal(t, "Hi", entry["subject"])
	assert.Equal(t, "link", entry["body"])
}

func TestResendSender(t *testing.T) {
	t.Run("posts message with bearer key", func(t *testing.T) {
		var got map[string]any
		var authHeader string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/emails", r.URL.Path)
			authHeader = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"msg_1"}`))
		}))
		defer srv.Close()

		sender, err := mail.NewResendSender(srv.URL, "re_test", "AuthGate <noreply@example.com>")
		require.NoError(t, err)

		err = sender.Send(context.Background(), mail.Message{To: "ada@example.com", Subject: "Hi", HTML: "<p>x</p>"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer re_test", authHeader)
		assert.Equal(t, "AuthGate <noreply@example.com>", got["from"])
		assert.Equal(t, []any{"ada@example.com"}, got["to"])
	})

	t.Run("api rejection is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"validation_error","message":"invalid from"}`))
		}))
		defer srv.Close()

		sender, err := mail.NewResendSender(srv.URL, "re_test", "bad")
		require.NoError(t, err)

		err = sender.Send(context.Background(), mail.Message{To: "ada@example.com"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MAIL_SEND_FAILED")
		errutil.AssertErrorContext(t, err, "status", http.StatusUnprocessableEntity)
		assert.Contains(t, err.Error(), "invalid from")
	})

	t.Run("requires key and from", func(t *testing.T) {
		_, err := mail.NewResendSender("", "", "x@example.com")
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
		_, err = mail.NewResendSender("", "key", "")
		errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
	})
}

type recordingSender struct {
	mu       sync.Mutex
	messages []mail.Message
	gate     chan struct{}
	calls    atomic.Int32
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) sent() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.messages...)
}

func testUser() *auth.User {
	return &auth.User{ID: ulid.Make(), Name: "Ada", Email: "ada@example.com"}
}

func TestDispatcher_DeliversAsynchronously(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	d, err := mail.NewDispatcher(sender, mail.DispatcherConfig{From: "noreply@example.com"}, nil)
	require.NoError(t, err)

	// The sender is blocked, so returning proves the caller never waits on delivery.
	require.NoError(t, d.SendVerificationLink(context.Background(), testUser(), "https://app.test/verify/x/y"))
	require.NoError(t, d.SendPasswordResetLink(context.Background(), testUser(), "https://app.test/password-reset/t"))
	close(sender.gate)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, mail.SubjectVerify, sent[0].Subject)
	assert.Equal(t, mail.SubjectReset, sent[1].Subject)
	assert.Equal(t, "noreply@example.com", sent[0].From)
}

func TestDispatcher_QueueFull(t *testing.T) {
	sender := &recordingSender{gate: make(chan struct{})}
	d, err := mail.NewDispatcher(sender, mail.DispatcherConfig{QueueSize: 1}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.SendVerificationLink(ctx, testUser(), "l1"))
	require.Eventually(t, func() bool { return sender.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.SendVerificationLink(ctx, testUser(), "l2"))

	err = d.SendVerificationLink(ctx, testUser(), "l3")
	assert.ErrorIs(t, err, mail.ErrQueueFull)

	close(sender.gate)
	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d, err := mail.NewDispatcher(&recordingSender{}, mail.DispatcherConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()), "close is idempotent")

	err = d.SendPasswordResetLink(context.Background(), testUser(), "l")
	assert.ErrorIs(t, err, mail.ErrDispatcherClosed)
}

func TestNewDispatcher_RequiresSender(t *testing.T) {
	_, err := mail.NewDispatcher(nil, mail.DispatcherConfig{}, nil)
	assert.ErrorContains(t, err, "sender is required")
}
