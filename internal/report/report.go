// Package report delivers normalized exceptions to the configured endpoint.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
	"github.com/tjfontaine/errorvitals/internal/pipeline"
)

const (
	// StageName names the delivery stage.
	StageName = "report"
	// StagePriority runs delivery after normalization.
	StagePriority = 10
)

// Strategy is a delivery transport chosen from configuration.
type Strategy string

const (
	StrategyCallback Strategy = "handleReport"
	StrategyBeacon   Strategy = "beacon"
	StrategyFetch    Strategy = "fetch"
	StrategyNone     Strategy = "none"
)

// SelectStrategy picks the transport for cfg. A callback wins over any URL.
// A non-nil Headers map selects fetch even when empty.
func SelectStrategy(cfg domain.ReportConfig) Strategy {
	switch {
	case cfg.HandleReport != nil:
		return StrategyCallback
	case cfg.URL != "" && cfg.Headers != nil:
		return StrategyFetch
	case cfg.URL != "":
		return StrategyBeacon
	default:
		return StrategyNone
	}
}

// Reporter performs at most one delivery attempt per record.
type Reporter struct {
	client   *http.Client
	beacon   ports.Beacon
	logger   *slog.Logger
	recorder ports.Recorder
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithHTTPClient sets the client used by the fetch strategy.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Reporter) { r.client = client }
}

// WithBeacon sets the beacon transport. Without one the beacon strategy
// falls back to fetch.
func WithBeacon(b ports.Beacon) Option {
	return func(r *Reporter) { r.beacon = b }
}

// WithLogger sets the reporter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) { r.logger = logger }
}

// WithRecorder sets the instrumentation recorder.
func WithRecorder(rec ports.Recorder) Option {
	return func(r *Reporter) { r.recorder = rec }
}

// NewReporter creates a reporter.
func NewReporter(opts ...Option) *Reporter {
	r := &Reporter{
		client:   http.DefaultClient,
		logger:   slog.Default(),
		recorder: ports.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stage returns the delivery stage. Delivery failures are logged and never
// interrupt the run.
func (r *Reporter) Stage() *pipeline.Middleware[*domain.Context] {
	return &pipeline.Middleware[*domain.Context]{
		Name:     StageName,
		Priority: StagePriority,
		Process: func(ctx context.Context, c *domain.Context, next pipeline.Next) error {
			if c.CurrentFlushed == nil {
				r.logger.ErrorContext(ctx, "flushed data is not defined")
			} else if err := r.Deliver(ctx, c.CurrentFlushed, c.Report); err != nil {
				r.logger.ErrorContext(ctx, "report error",
					slog.String("kind", kindOf(err)),
					slog.String("error", err.Error()),
				)
			}
			next(ctx)
			return nil
		},
	}
}

// Deliver ships data using the strategy cfg selects. Records marked Skip and
// network exceptions about the report URL itself are dropped silently.
func (r *Reporter) Deliver(ctx context.Context, data *domain.FlushedData, cfg domain.ReportConfig) error {
	if data.Skip {
		return nil
	}
	if selfReport(data, cfg) {
		r.logger.DebugContext(ctx, "skipping report about the report endpoint", slog.String("url", cfg.URL))
		return nil
	}

	strategy := SelectStrategy(cfg)
	var err error
	switch strategy {
	case StrategyCallback:
		err = r.callback(ctx, data, cfg)
	case StrategyBeacon:
		err = r.sendBeacon(ctx, data, cfg)
	case StrategyFetch:
		err = r.fetch(ctx, data, cfg)
	default:
		err = domain.ErrReportMisconfigured("report url is not defined")
	}
	r.recorder.ObserveReport(string(strategy), err)
	return err
}

func selfReport(data *domain.FlushedData, cfg domain.ReportConfig) bool {
	h, ok := data.Flushed.(*domain.FlushedHTTPException)
	return ok && cfg.URL != "" && h.URL == cfg.URL
}

func (r *Reporter) callback(ctx context.Context, data *domain.FlushedData, cfg domain.ReportConfig) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = domain.ErrDelivery("report callback panicked", fmt.Errorf("%v", p))
		}
	}()
	if err := cfg.HandleReport(ctx, data, cfg); err != nil {
		return domain.ErrDelivery("report callback failed", err)
	}
	return nil
}

func (r *Reporter) sendBeacon(ctx context.Context, data *domain.FlushedData, cfg domain.ReportConfig) error {
	if r.beacon == nil {
		return r.fetch(ctx, data, cfg)
	}
	body, err := json.Marshal(data)
	if err != nil {
		return domain.ErrDelivery("encode report", err)
	}
	if !r.beacon.SendBeacon(cfg.URL, body) {
		r.logger.DebugContext(ctx, "beacon refused, falling back to fetch")
		return r.fetch(ctx, data, cfg)
	}
	return nil
}

func (r *Reporter) fetch(ctx context.Context, data *domain.FlushedData, cfg domain.ReportConfig) error {
	body, err := json.Marshal(data)
	if err != nil {
		return domain.ErrDelivery("encode report", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return domain.ErrDelivery("build report request", err)
	}
	// configured headers are copied per request, never written back
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("keep-alive", "true")
	req.Header.Set(domain.MonitorReportHeader, "true")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.ErrDelivery("send report", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ErrDelivery(fmt.Sprintf("collector responded %d", resp.StatusCode), nil)
	}
	return nil
}

func kindOf(err error) string {
	var ae *domain.AgentError
	if errors.As(err, &ae) {
		return string(ae.Kind)
	}
	return string(domain.ErrorKindDelivery)
}
