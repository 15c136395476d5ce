// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memory"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sentLink is a link captured by recordingNotifier.
type sentLink struct {
	Kind  string
	Email string
	Link  string
}

// recordingNotifier captures links instead of mailing them.
type recordingNotifier struct {
	mu    sync.Mutex
	links []sentLink
}

func (n *recordingNotifier) SendVerificationLink(_ context.Context, user *auth.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, sentLink{Kind: "verify", Email: user.Email, Link: link})
	return nil
}

func (n *recordingNotifier) SendPasswordResetLink(_ context.Context, user *auth.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links = append(n.links, sentLink{Kind: "reset", Email: user.Email, Link: link})
	return nil
}

func (n *recordingNotifier) Last(kind string) (sentLink, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.links) - 1; i >= 0; i-- {
		if n.links[i].Kind == kind {
			return n.links[i], true
		}
	}
	return sentLink{}, false
}

func (n *recordingNotifier) Count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, l := range n.links {
		if l.Kind == kind {
			c++
		}
	}
	return c
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []auth.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e auth.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []auth.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]auth.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// testEnv wires a Gateway over the memory store.
type testEnv struct {
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
	events   *recordingPublisher
	hasher   *auth.Argon2idHasher
	tokens   *auth.TokenIssuer
	resets   *auth.ResetService
	verifier *auth.VerificationService
	gateway  *auth.Gateway
}

func newTestEnv(t *testing.T, requireVerification bool) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    memory.NewStore(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		events:   &recordingPublisher{},
		hasher:   auth.NewArgon2idHasherWithParams(auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}),
	}
	clock := auth.WithClock(env.clock.Now)

	var err error
	env.tokens, err = auth.NewTokenIssuer(env.store.Tokens(), env.store.Users(), clock)
	require.NoError(t, err)

	env.resets, err = auth.NewResetService(auth.ResetDeps{
		Users:      env.store.Users(),
		Resets:     env.store.Resets(),
		Tokens:     env.store.Tokens(),
		Transactor: env.store.Transactor(),
		Hasher:     env.hasher,
		Notifier:   env.notifier,
		Events:     env.events,
	}, auth.ResetConfig{
		BaseURL:  "https://app.example.test",
		Expiry:   auth.ResetTokenExpiry,
		Throttle: auth.ResetThrottle,
	}, clock)
	require.NoError(t, err)

	env.verifier, err = auth.NewVerificationService(env.store.Users(), env.notifier, env.events, testKey,
		"https://api.example.test", clock)
	require.NoError(t, err)

	env.gateway, err = auth.NewGateway(auth.GatewayDeps{
		Users:    env.store.Users(),
		Hasher:   env.hasher,
		Tokens:   env.tokens,
		Resets:   env.resets,
		Verifier: env.verifier,
		Events:   env.events,
	}, auth.GatewayConfig{RequireVerification: requireVerification}, clock)
	require.NoError(t, err)

	return env
}

func (env *testEnv) register(t *testing.T, name, email, password string) *auth.User {
	t.Helper()
	res, err := env.gateway.Register(context.Background(), auth.RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return res.User
}

// resetTokenFromLink extracts the token path segment of a reset link.
func resetTokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, rest, ok := strings.Cut(link, "/password-reset/")
	require.True(t, ok, "unexpected reset link %q", link)
	token, _, _ := strings.Cut(rest, "?")
	return token
}

// verifyPartsFromLink extracts the id and signature of a verification link.
func verifyPartsFromLink(t *testing.T, link string) (string, string) {
	t.Helper()
	_, rest, ok := strings.Cut(link, "/verify/")
	require.True(t, ok, "unexpected verification link %q", link)
	id, sig, ok := strings.Cut(rest, "/")
	require.True(t, ok)
	return id, sig
}
