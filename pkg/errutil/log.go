// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package errutil logs and asserts on oops-coded errors.
package errutil

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/samber/oops"
)

// Attrs returns slog key/value pairs describing err: the message, and for
// oops errors the code and context. The context is a group so handler
// ReplaceAttr hooks see each key.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, contextGroup(ctx))
	}
	return attrs
}

func contextGroup(ctx map[string]any) slog.Attr {
	fields := make([]any, 0, len(ctx))
	for _, k := range slices.Sorted(maps.Keys(ctx)) {
		fields = append(fields, slog.Any(k, ctx[k]))
	}
	return slog.Group("context", fields...)
}

// Code returns the oops code of err, or "" when it carries none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	return fmt.Sprint(code)
}

// LogError logs err at error level with its code and context.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, Attrs(err)...)
}

// LogErrorContext is LogError carrying ctx so trace ids reach the record.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}
