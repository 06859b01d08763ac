package ports

// MetricsSource feeds named performance measurements (LCP, TTFB, ...) to the
// agent. Measuring them is left to the embedding application.
type MetricsSource interface {
	OnMetric(handler func(name string, value float64))
}
