package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// LogHandler passes every record to the wrapped slog handler and to the
// otelslog bridge. Create one with [NewLogHandler].
type LogHandler struct {
	next slog.Handler
	otel slog.Handler
}

// NewLogHandler wraps next. Records are emitted to the global OTel logger
// provider under the given instrumentation scope; before [Setup] that
// provider discards them.
func NewLogHandler(next slog.Handler, scope string, opts ...otelslog.Option) *LogHandler {
	return &LogHandler{next: next, otel: otelslog.NewHandler(scope, opts...)}
}

// Enabled follows the wrapped handler so --verbose governs both outputs.
func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	var otelErr error
	if h.otel.Enabled(ctx, r.Level) {
		otelErr = h.otel.Handle(ctx, r.Clone())
	}
	return errors.Join(h.next.Handle(ctx, r), otelErr)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{next: h.next.WithAttrs(attrs), otel: h.otel.WithAttrs(attrs)}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &LogHandler{next: h.next.WithGroup(name), otel: h.otel.WithGroup(name)}
}
