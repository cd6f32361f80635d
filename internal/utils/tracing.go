package utils

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLogger writes every finished span to the debug log
type spanLogger struct {
	logger zerolog.Logger
}

func (s *spanLogger) OnStart(ctx context.Context, span sdktrace.ReadWriteSpan) {}

func (s *spanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	event := s.logger.Debug()
	if span.Status().Code == codes.Error {
		event = s.logger.Warn().Str("status", span.Status().Description)
	}
	for _, attr := range span.Attributes() {
		event = event.Str(string(attr.Key), attr.Value.Emit())
	}
	event.
		Str("trace_id", span.SpanContext().TraceID().String()).
		Dur("took", span.EndTime().Sub(span.StartTime())).
		Msg(span.Name())
}

func (s *spanLogger) Shutdown(ctx context.Context) error   { return nil }
func (s *spanLogger) ForceFlush(ctx context.Context) error { return nil }

// NewTracerProvider installs a global tracer provider that reports spans
// through the logger
func NewTracerProvider(logger zerolog.Logger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(&spanLogger{logger: logger.With().Str("component", "trace").Logger()}),
	)
	otel.SetTracerProvider(tp)
	return tp
}
