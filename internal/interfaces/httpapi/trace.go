package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	apiTracer = otel.Tracer("guildhall/internal/interfaces/httpapi")
	// detached is returned when no span is opened; ending it never touches the parent.
	detached = trace.SpanFromContext(context.Background())
)

// startSpan opens a child span for handlers only. Middleware and helpers ride on the
// otelhttp server span, and untraced routes get no span at all.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() || !shouldCreateHTTPAPISpan(name) {
		return ctx, detached
	}
	return apiTracer.Start(ctx, name)
}

func shouldCreateHTTPAPISpan(name string) bool {
	return strings.HasPrefix(name, "httpapi.Handler.")
}

func annotateActor(ctx context.Context, a actor) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("guild.tenant_id", a.TenantID),
		attribute.String("guild.actor_id", a.UserID),
		attribute.Bool("guild.actor_admin", a.IsAdmin),
	)
}
