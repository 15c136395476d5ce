// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package events

import (
	"context"
	"log/slog"

	"github.com/authgate/authgate/internal/auth"
)

// AuditLog returns a handler that writes one INFO record per event.
// Only identifiers are logged.
func AuditLog(logger *slog.Logger) Handler {
	return func(ctx context.Context, event auth.Event) error {
		attrs := []any{
			"event_type", string(event.Type),
			"user_id", event.UserID.String(),
			"occurred_at", event.OccurredAt,
		}
		if event.TokenID != "" {
			attrs = append(attrs, "token_id", event.TokenID)
		}
		logger.InfoContext(ctx, "auth event", attrs...)
		return nil
	}
}
