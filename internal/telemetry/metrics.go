package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tjfontaine/errorvitals/internal/core/domain"
	"github.com/tjfontaine/errorvitals/internal/core/ports"
)

// PrometheusRecorder reports agent events using Prometheus primitives.
type PrometheusRecorder struct {
	captured   *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	faults     *prometheus.CounterVec
	reports    *prometheus.CounterVec
	flushed    *prometheus.CounterVec
	history    prometheus.Gauge
	vitals     *prometheus.GaugeVec
}

var _ ports.Recorder = (*PrometheusRecorder)(nil)

func NewPrometheusRecorder(registry *prometheus.Registry) (*PrometheusRecorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	r := &PrometheusRecorder{
		captured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errorvitals_exceptions_captured_total",
			Help: "Total number of accepted exceptions by type",
		}, []string{"type"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errorvitals_exceptions_duplicate_total",
			Help: "Total number of suppressed duplicate exceptions by type",
		}, []string{"type"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errorvitals_stage_faults_total",
			Help: "Total pipeline stage faults by stage",
		}, []string{"stage"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errorvitals_reports_total",
			Help: "Total delivery attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errorvitals_records_flushed_total",
			Help: "Total normalized records by type",
		}, []string{"type"}),
		history: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "errorvitals_flushed_history_size",
			Help: "Records currently held in the flushed history",
		}),
		vitals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "errorvitals_performance_metric",
			Help: "Latest value of each performance measurement",
		}, []string{"name"}),
	}

	for _, c := range []prometheus.Collector{r.captured, r.duplicates, r.faults, r.reports, r.flushed, r.history, r.vitals} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveException(typ domain.ExceptionType) {
	r.captured.WithLabelValues(string(typ)).Inc()
}

func (r *PrometheusRecorder) ObserveDuplicate(typ domain.ExceptionType) {
	r.duplicates.WithLabelValues(string(typ)).Inc()
}

func (r *PrometheusRecorder) ObserveStageFault(stage string) {
	r.faults.WithLabelValues(stage).Inc()
}

func (r *PrometheusRecorder) ObserveReport(strategy string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.reports.WithLabelValues(strategy, outcome).Inc()
}

// ObserveFlushed counts a normalized record and the resulting history size.
func (r *PrometheusRecorder) ObserveFlushed(typ domain.ExceptionType, historySize int) {
	r.flushed.WithLabelValues(string(typ)).Inc()
	r.history.Set(float64(historySize))
}

// ObserveMetrics exports every measurement src produces as a gauge.
func (r *PrometheusRecorder) ObserveMetrics(src ports.MetricsSource) {
	src.OnMetric(func(name string, value float64) {
		r.vitals.WithLabelValues(name).Set(value)
	})
}
