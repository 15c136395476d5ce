// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/pkg/errutil"
)

// Dispatcher defaults.
const (
	DefaultQueueSize   = 128
	DefaultSendTimeout = 15 * time.Second
)

// ErrQueueFull is returned when the outbound queue cannot take another message.
var ErrQueueFull = errors.New("mail queue full")

// ErrDispatcherClosed is returned after Close.
var ErrDispatcherClosed = errors.New("mail dispatcher closed")

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	AppName     string
	From        string
	ResetExpiry time.Duration
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher implements auth.Notifier. It renders mail on the caller's
// goroutine and delivers it from a single background worker.
type Dispatcher struct {
	sender Sender
	cfg    DispatcherConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	done   chan struct{}
}

// NewDispatcher starts a dispatcher that delivers through sender.
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *slog.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Errorf("sender is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.ResetExpiry <= 0 {
		cfg.ResetExpiry = auth.ResetTokenExpiry
	}
	if cfg.AppName == "" {
		cfg.AppName = "AuthGate"
	}

	d := &Dispatcher{
		sender: sender,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Message, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// SendVerificationLink implements auth.Notifier.
func (d *Dispatcher) SendVerificationLink(_ context.Context, user *auth.User, link string) error {
	msg, err := VerificationMessage(d.cfg.AppName, user.Email, user.Name, link)
	if err != nil {
		return oops.Code("MAIL_RENDER_FAILED").With("template", "verify").Wrap(err)
	}
	return d.enqueue(msg)
}

// SendPasswordResetLink implements auth.Notifier.
func (d *Dispatcher) SendPasswordResetLink(_ context.Context, user *auth.User, link string) error {
	msg, err := ResetMessage(d.cfg.AppName, user.Email, user.Name, link, d.cfg.ResetExpiry)
	if err != nil {
		return oops.Code("MAIL_RENDER_FAILED").With("template", "reset").Wrap(err)
	}
	return d.enqueue(msg)
}

func (d *Dispatcher) enqueue(msg Message) error {
	msg.From = d.cfg.From

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return oops.Code("MAIL_ENQUEUE_FAILED").Wrap(ErrDispatcherClosed)
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return oops.Code("MAIL_ENQUEUE_FAILED").With("queue_size", d.cfg.QueueSize).Wrap(ErrQueueFull)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		if err := d.sender.Send(ctx, msg); err != nil {
			errutil.LogError(d.logger, "mail delivery failed", err, "subject", msg.Subject)
		}
		cancel()
	}
}

// Close stops accepting mail, delivers what is already queued, and waits for
// the worker or ctx, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return oops.Code("MAIL_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}

var _ auth.Notifier = (*Dispatcher)(nil)
