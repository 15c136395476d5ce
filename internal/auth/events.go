// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a committed state change.
type EventType string

// Lifecycle events.
const (
	EventRegistered    EventType = "user.registered"
	EventVerified      EventType = "user.verified"
	EventPasswordReset EventType = "user.password_reset"
	EventLoggedIn      EventType = "user.logged_in"
	EventLoggedOut     EventType = "user.logged_out"
)

// Event describes a state change after it has been persisted.
type Event struct {
	Type       EventType `json:"type"`
	UserID     ulid.ULID `json:"user_id"`
	Email      string    `json:"email"`
	TokenID    string    `json:"token_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers events to interested observers.
// Publish must not wait for observers to finish.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Notifier delivers links to a user's mailbox.
// Implementations must return without waiting for delivery.
type Notifier interface {
	SendVerificationLink(ctx context.Context, user *User, link string) error
	SendPasswordResetLink(ctx context.Context, user *User, link string) error
}
