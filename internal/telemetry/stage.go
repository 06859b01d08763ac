package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
)

const (
	TracingStageName     = "tracing"
	TracingStagePriority = 100

	MetricsStageName     = "metrics"
	MetricsStagePriority = 0

	instrumentationName = "github.com/tjfontaine/errorvitals"
)

// TracingStage wraps every later stage of a run in one span. A nil tracer
// uses the global provider.
func TracingStage(tracer trace.Tracer) *pipeline.Middleware[*domain.Context] {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	return &pipeline.Middleware[*domain.Context]{
		Name:     TracingStageName,
		Priority: TracingStagePriority,
		Process: func(ctx context.Context, c *domain.Context, next pipeline.Next) error {
			ctx, span := tracer.Start(ctx, "exception.pipeline", trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			if exc := c.CurrentException; exc != nil {
				span.SetAttributes(
					attribute.String("exception.type", string(exc.Type)),
					attribute.String("exception.uid", exc.Metadata.UID),
					attribute.String("exception.id", exc.Metadata.ID),
				)
			}

			next(ctx)

			switch {
			case c.CurrentFlushed == nil:
				span.SetStatus(codes.Error, "record was not normalized")
			case c.CurrentFlushed.Skip:
				span.SetAttributes(attribute.Bool("exception.skipped", true))
			}
			return nil
		},
	}
}

// MetricsStage counts normalized records as the innermost stage of a run.
func MetricsStage(rec *PrometheusRecorder) *pipeline.Middleware[*domain.Context] {
	return &pipeline.Middleware[*domain.Context]{
		Name:     MetricsStageName,
		Priority: MetricsStagePriority,
		Process: func(ctx context.Context, c *domain.Context, next pipeline.Next) error {
			if data := c.CurrentFlushed; data != nil && data.Flushed != nil {
				rec.ObserveFlushed(data.Flushed.ExceptionType(), len(c.Shared.Flushed()))
			}
			next(ctx)
			return nil
		},
	}
}
