// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package mail renders and delivers verification and password reset emails.
package mail

import "context"

// Message is a rendered email ready for a transport.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
