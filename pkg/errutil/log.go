// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package errutil holds helpers for working with oops errors.
package errutil

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" when err has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code := fmt.Sprint(oopsErr.Code()); code != "<nil>" {
		return code
	}
	return ""
}

// LogError logs err at ERROR with its code and context when it is an oops error.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err.Error())
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := Code(err); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	}
	logger.Error(msg, attrs...)
}
