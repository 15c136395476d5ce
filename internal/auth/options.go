// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package auth

import (
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Clock returns the current time.
type Clock func() time.Time

// Option configures a service.
type Option func(*options) error

type options struct {
	logger *slog.Logger
	clock  Clock
}

// WithLogger sets the service logger. A nil logger is rejected.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return oops.Code("AUTH_INVALID_OPTION").Errorf("logger is required")
		}
		o.logger = logger
		return nil
	}
}

// WithClock sets the time source. A nil clock is rejected.
func WithClock(clock Clock) Option {
	return func(o *options) error {
		if clock == nil {
			return oops.Code("AUTH_INVALID_OPTION").Errorf("clock is required")
		}
		o.clock = clock
		return nil
	}
}

func applyOptions(opts []Option) (options, error) {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return options{}, err
		}
	}
	return o, nil
}
