package trace

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used by the monitoring pipeline.
const (
	// Audio attributes
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioWindowSec  = "audio.window_sec"

	// Analysis attributes
	AttrAnalysisCaller     = "analysis.caller"
	AttrAnalysisConfidence = "analysis.confidence"
	AttrAnalysisAuthorized = "analysis.authorized"
	AttrAnalysisReferences = "analysis.references"
)

// WithSpan executes a function within a new span
func WithSpan(ctx context.Context, spanName string, fn func(context.Context) error, opts ...trace.SpanStartOption) error {
	ctx, span := StartSpan(ctx, spanName, opts...)
	defer span.End()

	if err := fn(ctx); err != nil {
		RecordError(span, err)
		return err
	}

	return nil
}

// RecordError records an error on a span
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes sets multiple attributes on a span
func SetAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
