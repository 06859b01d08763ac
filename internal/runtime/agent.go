// Package runtime provides the Agent type that wires capture, normalization
// and delivery together and manages their lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/errorvitals/internal/capture"
	"github.com/tjfontaine/errorvitals/internal/config"
	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
	"github.com/tjfontaine/errorvitals/internal/flush"
	"github.com/tjfontaine/errorvitals/internal/host"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
	"github.com/tjfontaine/errorvitals/internal/report"
	"github.com/tjfontaine/errorvitals/internal/telemetry"
)

// Agent observes a host for failures and reports them.
// It can be embedded in an application or driven by a test host.
type Agent struct {
	// Dependencies (injected via options)
	host         ports.Host
	config       *config.Config
	provider     *config.Provider
	recorder     ports.Recorder
	metrics      *telemetry.PrometheusRecorder
	vitals       ports.MetricsSource
	tracer       trace.Tracer
	tracing      bool
	policy       *capture.UIDPolicy
	beacon       ports.Beacon
	client       *http.Client
	handleReport domain.HandleReportFunc
	sqsClient    report.SQSClient
	stages       []*pipeline.Middleware[*domain.Context]
	logger       *slog.Logger

	// Internal state
	shared   *domain.Shared
	engine   *capture.Engine
	reporter *report.Reporter

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	started bool
}

// New creates an Agent with the given options. Without a configuration
// option the agent reads vitals.yaml and the environment on Start.
func New(opts ...Option) (*Agent, error) {
	a := &Agent{
		logger:   slog.Default(),
		recorder: ports.NoopRecorder{},
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.config != nil && a.provider != nil {
		return nil, fmt.Errorf("use either WithConfig or WithFileConfig, not both")
	}
	return a, nil
}

// Start loads configuration, installs the pipeline stages and subscribes to
// the host. It must be called once.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("agent already started")
	}
	a.ctx, a.cancel = context.WithCancel(ctx)

	cfg, err := a.loadConfig(a.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	policy, err := capture.ParseUIDPolicy(cfg.Dedup.Policy)
	if err != nil {
		return fmt.Errorf("dedup policy: %w", err)
	}
	if a.policy != nil {
		policy = *a.policy
	}

	reportCfg, err := a.reportConfig(a.ctx, cfg)
	if err != nil {
		return fmt.Errorf("report config: %w", err)
	}

	a.shared = domain.NewShared(domain.Flags{
		Exception:          cfg.Exception,
		PerformanceMetrics: cfg.PerformanceMetrics,
	}, reportCfg, cfg.Retention.MaxRecords)

	if a.host == nil {
		a.host = host.NewProcess(cfg.PageInfo(), host.WithLogger(a.logger))
	}
	if a.client == nil {
		a.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if a.beacon == nil {
		a.beacon = report.NewHTTPBeacon(a.client, a.logger)
	}

	a.reporter = report.NewReporter(
		report.WithHTTPClient(a.client),
		report.WithBeacon(a.beacon),
		report.WithLogger(a.logger),
		report.WithRecorder(a.recorder),
	)
	a.engine = capture.NewEngine(a.host, a.shared,
		capture.WithLogger(a.logger),
		capture.WithRecorder(a.recorder),
		capture.WithUIDPolicy(policy),
	)

	if a.tracing || cfg.Telemetry.Tracing {
		a.engine.Use(telemetry.TracingStage(a.tracer))
	}
	a.engine.Use(flush.Stage(a.host.PageInfo))
	a.engine.Use(a.reporter.Stage())
	if a.metrics != nil {
		a.engine.Use(telemetry.MetricsStage(a.metrics))
	}
	for _, m := range a.stages {
		a.engine.Use(m)
	}

	if cfg.PerformanceMetrics && a.vitals != nil {
		if a.metrics == nil {
			a.logger.Warn("performance metrics enabled without a prometheus registry")
		} else {
			a.metrics.ObserveMetrics(a.vitals)
		}
	}

	if cfg.Exception {
		a.engine.Start(a.ctx)
	} else {
		a.logger.Info("exception capture disabled")
	}

	if a.provider != nil {
		if err := a.provider.Watch(a.ctx, a.reload); err != nil {
			a.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}

	a.started = true
	a.logger.Info("agent started",
		slog.Bool("exception", cfg.Exception),
		slog.String("dedup_policy", policy.String()),
		slog.String("report_strategy", string(report.SelectStrategy(reportCfg))),
		slog.Int("stages", len(a.engine.Middlewares())),
	)
	return nil
}

func (a *Agent) loadConfig(ctx context.Context) (*config.Config, error) {
	switch {
	case a.provider != nil:
		return a.provider.Load(ctx)
	case a.config != nil:
		if err := a.config.Validate(); err != nil {
			return nil, err
		}
		return a.config, nil
	default:
		return config.Load()
	}
}

// reportConfig resolves the delivery configuration. An explicit callback wins
// over a queue, which wins over HTTP.
func (a *Agent) reportConfig(ctx context.Context, cfg *config.Config) (domain.ReportConfig, error) {
	rc := cfg.DomainReport()
	switch {
	case a.handleReport != nil:
		rc.HandleReport = a.handleReport
	case cfg.Report.QueueURL != "":
		client := a.sqsClient
		if client == nil {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return rc, fmt.Errorf("load aws config: %w", err)
			}
			client = sqs.NewFromConfig(awsCfg)
		}
		rc.HandleReport = report.SQSHandler(client, cfg.Report.QueueURL)
	}
	return rc, nil
}

// reload applies a changed configuration. Only the report section takes
// effect on a running agent.
func (a *Agent) reload(cfg *config.Config) {
	rc, err := a.reportConfig(a.ctx, cfg)
	if err != nil {
		a.logger.Error("failed to reload report config", slog.String("error", err.Error()))
		return
	}
	a.shared.SetReport(rc)
	a.logger.Info("report config reloaded", slog.String("report_strategy", string(report.SelectStrategy(rc))))
}

// Use registers an extra pipeline stage. Before Start the stage is queued.
func (a *Agent) Use(m *pipeline.Middleware[*domain.Context]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.engine == nil {
		a.stages = append(a.stages, m)
		return
	}
	a.engine.Use(m)
}

// Shared returns the agent's shared state, or nil before Start.
func (a *Agent) Shared() *domain.Shared {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.shared
}

// Host returns the observed host, or nil before Start when none was given.
func (a *Agent) Host() ports.Host {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.host
}

// Wait blocks until every in-flight pipeline run has finished.
func (a *Agent) Wait() {
	a.mu.RLock()
	engine := a.engine
	a.mu.RUnlock()
	if engine != nil {
		engine.Wait()
	}
}

// Shutdown stops watching configuration and waits for in-flight runs and
// queued beacons, or for ctx to end.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.logger.Info("shutting down agent")
	if a.cancel != nil {
		a.cancel()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}
	beacon := a.beacon
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.Wait()
		if b, ok := beacon.(interface{ Flush() }); ok {
			b.Flush()
		}
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("agent shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("agent shutdown: %w", ctx.Err())
	}
}
