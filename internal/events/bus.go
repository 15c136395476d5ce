// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package events carries auth lifecycle events from the gateway to in-process
// observers over an in-memory watermill pub/sub.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/oops"

	"github.com/authgate/authgate/internal/auth"
)

// Topic is the single topic all auth events are published on.
const Topic = "auth.events"

const (
	metaEventType = "event_type"
	metaUserID    = "user_id"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Handler processes one event. A returned error is logged and the event is dropped.
type Handler func(ctx context.Context, event auth.Event) error

// Bus implements auth.EventPublisher on a watermill GoChannel.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewBus creates a bus. Each subscriber receives every event published after
// it subscribed; events published with no subscribers are discarded.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, newLoggerAdapter(logger)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish queues event for every subscriber and returns without waiting for them.
func (b *Bus) Publish(_ context.Context, event auth.Event) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return oops.Code("EVENT_PUBLISH_FAILED").With("event_type", string(event.Type)).Wrap(ErrClosed)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return oops.Code("EVENT_PUBLISH_FAILED").With("operation", "marshal event").Wrap(err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(metaEventType, string(event.Type))
	msg.Metadata.Set(metaUserID, event.UserID.String())

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return oops.Code("EVENT_PUBLISH_FAILED").
			With("event_type", string(event.Type)).
			Wrap(err)
	}
	return nil
}

// Subscribe registers handler under name and starts its delivery goroutine.
// Handlers run sequentially per subscriber.
func (b *Bus) Subscribe(name string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return oops.Code("EVENT_SUBSCRIBE_FAILED").With("subscriber", name).Wrap(ErrClosed)
	}

	messages, err := b.pubsub.Subscribe(b.ctx, Topic)
	if err != nil {
		return oops.Code("EVENT_SUBSCRIBE_FAILED").With("subscriber", name).Wrap(err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.deliver(name, handler, msg)
		}
	}()
	return nil
}

func (b *Bus) deliver(name string, handler Handler, msg *message.Message) {
	defer msg.Ack()

	var event auth.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		b.logger.Error("dropping malformed event",
			"subscriber", name,
			"message_id", msg.UUID,
			"error", err)
		return
	}
	if err := handler(b.ctx, event); err != nil {
		b.logger.Warn("event handler failed",
			"subscriber", name,
			"event_type", msg.Metadata.Get(metaEventType),
			"user_id", msg.Metadata.Get(metaUserID),
			"error", err)
	}
}

// Close stops all subscribers and waits for in-flight handlers to return.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	if err != nil {
		return oops.Code("EVENT_BUS_CLOSE_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.EventPublisher = (*Bus)(nil)
