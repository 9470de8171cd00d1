package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrService = "service"
	attrVersion = "version"
	attrMode    = "mode"

	traceGroup  = "trace"
	attrTraceID = "id"
	attrSpanID  = "span"
)

// Identity names the running propwise process in every log record.
type Identity struct {
	Service string
	Version string
	Mode    AppMode
}

func (identity Identity) attrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String(attrService, identity.Service),
		slog.String(attrMode, string(identity.Mode)),
	}

	if identity.Version != "" {
		attrs = append(attrs, slog.String(attrVersion, identity.Version))
	}

	return attrs
}

type logAttrsKey struct{}

// WithLogAttrs returns a context whose records carry attrs in addition to
// any already attached. Used to tag everything logged during one tool call
// or one analysis run.
func WithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}

	inherited := LogAttrs(ctx)

	merged := make([]slog.Attr, 0, len(inherited)+len(attrs))
	merged = append(merged, inherited...)
	merged = append(merged, attrs...)

	return context.WithValue(ctx, logAttrsKey{}, merged)
}

// LogAttrs returns the attrs attached with WithLogAttrs.
func LogAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	attrs, _ := ctx.Value(logAttrsKey{}).([]slog.Attr)

	return attrs
}

// ContextHandler is an [slog.Handler] that copies request-scoped state from
// the context into each record: attrs from WithLogAttrs and a "trace" group
// holding the active span. Identity attrs are bound at construction so they
// stay top-level under WithGroup.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner. An empty Identity.Version is omitted.
func NewContextHandler(inner slog.Handler, identity Identity) *ContextHandler {
	return &ContextHandler{inner: inner.WithAttrs(identity.attrs())}
}

// Enabled reports whether the wrapped handler logs level.
func (handler *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return handler.inner.Enabled(ctx, level)
}

// Handle implements [slog.Handler].
func (handler *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(LogAttrs(ctx)...)

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		record.AddAttrs(slog.Group(traceGroup,
			slog.String(attrTraceID, spanCtx.TraceID().String()),
			slog.String(attrSpanID, spanCtx.SpanID().String()),
		))
	}

	if err := handler.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("context handler: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (handler *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: handler.inner.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (handler *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: handler.inner.WithGroup(name)}
}
