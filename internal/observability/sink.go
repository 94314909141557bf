/**
 * @description
 * This package records operation spans around the movement orchestrators and
 * their collaborator calls. The Sink interface mirrors what the saga logic
 * needs (start a span, complete it with an outcome) so tests can capture
 * events with a plain fake while production wires OpenTelemetry.
 *
 * @dependencies
 * - context, log, time: Standard Go libraries.
 * - go.opentelemetry.io/otel: Tracer API; the exporter is configured by the
 *   process, not here.
 */

package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handle completes a started span with a success or failure outcome.
type Handle interface {
	Complete(success bool, message string)
}

// Sink starts spans around operations and collaborator calls.
type Sink interface {
	Start(ctx context.Context, name string, attrs map[string]string) (context.Context, Handle)
}

// OtelSink implements Sink on an OpenTelemetry tracer.
type OtelSink struct {
	tracer trace.Tracer
}

// NewOtelSink creates a sink using the globally registered tracer provider.
func NewOtelSink(service string) *OtelSink {
	return &OtelSink{tracer: otel.Tracer(service)}
}

func (s *OtelSink) Start(ctx context.Context, name string, attrs map[string]string) (context.Context, Handle) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(kv...))
	return ctx, &otelHandle{span: span, start: time.Now()}
}

type otelHandle struct {
	span  trace.Span
	start time.Time
}

func (h *otelHandle) Complete(success bool, message string) {
	elapsed := time.Since(h.start)
	h.span.AddEvent(message, trace.WithAttributes(
		attribute.Bool("success", success),
		attribute.Float64("duration_seconds", elapsed.Seconds()),
	))
	if !success {
		h.span.SetStatus(codes.Error, message)
	}
	h.span.End()
}

// LogSink is a fallback sink that writes span outcomes to the process log.
// Used when no tracer provider is configured.
type LogSink struct{}

func (LogSink) Start(ctx context.Context, name string, attrs map[string]string) (context.Context, Handle) {
	return ctx, logHandle{name: name, start: time.Now()}
}

type logHandle struct {
	name  string
	start time.Time
}

func (h logHandle) Complete(success bool, message string) {
	log.Printf("level=info component=observability span=%s success=%t duration=%s msg=%q",
		h.name, success, time.Since(h.start), message)
}

// NoopSink discards everything; convenient in tests that do not assert spans.
type NoopSink struct{}

func (NoopSink) Start(ctx context.Context, name string, attrs map[string]string) (context.Context, Handle) {
	return ctx, noopHandle{}
}

type noopHandle struct{}

func (noopHandle) Complete(success bool, message string) {}
