// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package events

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
)

// loggerAdapter routes watermill's internal logging to slog.
type loggerAdapter struct {
	logger *slog.Logger
}

func newLoggerAdapter(logger *slog.Logger) watermill.LoggerAdapter {
	return &loggerAdapter{logger: logger.With("component", "watermill")}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error(msg, append(attrs(fields), "error", err)...)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, attrs(fields)...)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug(msg, attrs(fields)...)
}

// Trace output from gochannel is per-message noise.
func (l *loggerAdapter) Trace(string, watermill.LogFields) {}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{logger: l.logger.With(attrs(fields)...)}
}

func attrs(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
