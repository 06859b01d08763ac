package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/errorvitals/internal/capture"
	"github.com/tjfontaine/errorvitals/internal/config"
	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
	"github.com/tjfontaine/errorvitals/internal/report"
	"github.com/tjfontaine/errorvitals/internal/telemetry"
)

// Option is a functional option for configuring an Agent.
type Option func(*Agent) error

// WithFileConfig reads configuration from path and reloads the report
// section whenever the file changes.
func WithFileConfig(path string) Option {
	return func(a *Agent) error {
		provider, err := config.NewProvider(path, a.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		a.provider = provider
		return nil
	}
}

// WithConfig uses a fixed in-memory configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *Agent) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		a.config = cfg
		return nil
	}
}

// WithHost observes h instead of the current process.
func WithHost(h ports.Host) Option {
	return func(a *Agent) error {
		a.host = h
		return nil
	}
}

// WithLogger sets a custom logger. Place it before WithFileConfig for the
// config provider to use it.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		a.logger = logger
		return nil
	}
}

// WithRecorder sets the instrumentation recorder.
func WithRecorder(rec ports.Recorder) Option {
	return func(a *Agent) error {
		a.recorder = rec
		return nil
	}
}

// WithPrometheus registers agent metrics on registry and adds the metrics stage.
func WithPrometheus(registry *prometheus.Registry) Option {
	return func(a *Agent) error {
		rec, err := telemetry.NewPrometheusRecorder(registry)
		if err != nil {
			return fmt.Errorf("create prometheus recorder: %w", err)
		}
		a.metrics = rec
		a.recorder = rec
		return nil
	}
}

// WithMetricsSource exports measurements from src when performance_metrics
// is enabled. Requires WithPrometheus.
func WithMetricsSource(src ports.MetricsSource) Option {
	return func(a *Agent) error {
		a.vitals = src
		return nil
	}
}

// WithTracing wraps every pipeline run in a span from tracer. A nil tracer
// uses the global provider.
func WithTracing(tracer trace.Tracer) Option {
	return func(a *Agent) error {
		a.tracing = true
		a.tracer = tracer
		return nil
	}
}

// WithUIDPolicy overrides the configured deduplication policy.
func WithUIDPolicy(p capture.UIDPolicy) Option {
	return func(a *Agent) error {
		a.policy = &p
		return nil
	}
}

// WithBeacon sets the beacon transport used when only a report URL is configured.
func WithBeacon(b ports.Beacon) Option {
	return func(a *Agent) error {
		a.beacon = b
		return nil
	}
}

// WithHTTPClient sets the client used for fetch-style delivery.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Agent) error {
		a.client = client
		return nil
	}
}

// WithHandleReport delivers every report through fn.
func WithHandleReport(fn domain.HandleReportFunc) Option {
	return func(a *Agent) error {
		a.handleReport = fn
		return nil
	}
}

// WithSQSClient sets the client used when report.queue_url is configured.
func WithSQSClient(client report.SQSClient) Option {
	return func(a *Agent) error {
		a.sqsClient = client
		return nil
	}
}

// WithMiddleware registers an extra pipeline stage.
func WithMiddleware(m *pipeline.Middleware[*domain.Context]) Option {
	return func(a *Agent) error {
		if m == nil || m.Process == nil {
			return fmt.Errorf("middleware must have a process function")
		}
		a.stages = append(a.stages, m)
		return nil
	}
}
