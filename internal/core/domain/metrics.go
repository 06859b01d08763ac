package domain

// MetricsType tags a performance metrics payload.
type MetricsType string

const MetricsTypePerformance MetricsType = "performanceMetrics"

// Metrics holds page performance measurements. Nil means not yet measured.
// Capturing them is the job of a sibling engine outside this module; the
// types exist so that engine can share the pipeline and delivery stages.
type Metrics struct {
	CLS  *float64 `json:"CLS,omitempty"`
	INP  *float64 `json:"INP,omitempty"`
	LCP  *float64 `json:"LCP,omitempty"`
	FCP  *float64 `json:"FCP,omitempty"`
	TTFB *float64 `json:"TTFB,omitempty"`
	DNS  *float64 `json:"DNS,omitempty"`
	TCP  *float64 `json:"TCP,omitempty"`
	SSL  *float64 `json:"SSL,omitempty"`
	DOM  *float64 `json:"DOM,omitempty"`
	RES  *float64 `json:"RES,omitempty"`
	FC   *float64 `json:"FC,omitempty"`
	WS   *bool    `json:"WS,omitempty"`
}

// PerformanceMetrics is the flushed form of Metrics.
type PerformanceMetrics struct {
	Type    MetricsType `json:"type"`
	Metrics Metrics     `json:"metrics"`
}

func (m *PerformanceMetrics) ExceptionType() ExceptionType { return ExceptionType(m.Type) }
