// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Options configures Setup.
type Options struct {
	Service string
	Version string
	NodeID  string // stamped on every record when set
	Format  string // "json" or "text", default "json"
	Level   slog.Level
}

// traceHandler stamps the span of the record's context onto every record.
// Service identity is attached to the root handler once, so it stays at
// the top level of the record whatever groups callers open. Trace ids are
// kept there too: once a group is open, a traced record is handled by the
// root handler with the trace ids and the caller's attrs and groups
// replayed on top.
type traceHandler struct {
	handler slog.Handler
	root    slog.Handler
	ops     []func(slog.Handler) slog.Handler
	grouped bool
}

func newTraceHandler(root slog.Handler) *traceHandler {
	return &traceHandler{handler: root, root: root}
}

// Handle adds trace context to the log record.
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	var traceAttrs []slog.Attr
	if spanCtx.HasTraceID() {
		traceAttrs = append(traceAttrs, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		traceAttrs = append(traceAttrs, slog.String("span_id", spanCtx.SpanID().String()))
	}

	handler := h.handler
	switch {
	case len(traceAttrs) == 0:
	case !h.grouped:
		r.AddAttrs(traceAttrs...)
	default:
		handler = h.root.WithAttrs(traceAttrs)
		for _, op := range h.ops {
			handler = op(handler)
		}
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return handler.Handle(ctx, r)
}

// Enabled returns true if the level is enabled.
func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	attrs = slices.Clone(attrs)
	return h.with(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) }, false)
}

// WithGroup returns a new handler with the given group.
func (h *traceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(next slog.Handler) slog.Handler { return next.WithGroup(name) }, true)
}

func (h *traceHandler) with(op func(slog.Handler) slog.Handler, group bool) *traceHandler {
	return &traceHandler{
		handler: op(h.handler),
		root:    h.root,
		ops:     append(slices.Clip(h.ops), op),
		grouped: h.grouped || group,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates a configured slog.Logger.
// If w is nil, writes to os.Stderr.
func Setup(opts Options, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var baseHandler slog.Handler
	if opts.Format == "text" {
		baseHandler = slog.NewTextHandler(w, handlerOpts)
	} else {
		baseHandler = slog.NewJSONHandler(w, handlerOpts)
	}

	attrs := []slog.Attr{
		slog.String("service", opts.Service),
		slog.String("version", opts.Version),
	}
	if opts.NodeID != "" {
		attrs = append(attrs, slog.String("node_id", opts.NodeID))
	}

	return slog.New(newTraceHandler(baseHandler.WithAttrs(attrs)))
}

// SetDefault sets up and configures the default logger.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts, nil)
	slog.SetDefault(logger)
	return logger
}
