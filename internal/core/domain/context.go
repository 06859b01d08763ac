package domain

import (
	"context"
	"sync"
)

// DefaultMaxRecords bounds the exception list and the flushed history.
const DefaultMaxRecords = 100

// MonitorReportHeader marks outgoing requests made by the agent itself so the
// network instrumentation does not capture them.
const MonitorReportHeader = "x-monitor-report"

// HandleReportFunc is a user-supplied delivery callback.
type HandleReportFunc func(ctx context.Context, data *FlushedData, cfg ReportConfig) error

// ReportConfig selects and parameterizes the delivery strategy.
type ReportConfig struct {
	URL          string            `json:"url,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	HandleReport HandleReportFunc  `json:"-"`
}

// Flags enables the agent's capture pipelines.
type Flags struct {
	Exception          bool `json:"exception"`
	PerformanceMetrics bool `json:"performanceMetrics"`
}

// Shared is the process-wide state every pipeline run reads from and appends
// to. Lists are bounded to the most recent maxRecords entries.
type Shared struct {
	mu         sync.RWMutex
	exceptions []*Exception
	flushed    []*FlushedData
	flags      Flags
	report     ReportConfig
	maxRecords int
}

// NewShared creates shared state. A non-positive maxRecords uses DefaultMaxRecords.
func NewShared(flags Flags, report ReportConfig, maxRecords int) *Shared {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Shared{
		flags:      flags,
		report:     report,
		maxRecords: maxRecords,
	}
}

// NewRun returns a per-run context whose current-exception slot holds exc.
func (s *Shared) NewRun(exc *Exception) *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Context{
		Shared:           s,
		CurrentException: exc,
		Flags:            s.flags,
		Report:           s.report,
	}
}

// AppendException records a newly accepted exception.
func (s *Shared) AppendException(exc *Exception) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = trim(append(s.exceptions, exc), s.maxRecords)
}

// AppendFlushed records a normalized exception in the history and trims
// both the history and the raw exception list.
func (s *Shared) AppendFlushed(data *FlushedData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = trim(append(s.flushed, data), s.maxRecords)
	s.exceptions = trim(s.exceptions, s.maxRecords)
}

// Exceptions returns a snapshot of the retained exceptions, oldest first.
func (s *Shared) Exceptions() []*Exception {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Exception(nil), s.exceptions...)
}

// Flushed returns a snapshot of the flushed history, oldest first.
func (s *Shared) Flushed() []*FlushedData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*FlushedData(nil), s.flushed...)
}

// Flags returns the feature flags.
func (s *Shared) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

// Report returns the current report configuration.
func (s *Shared) Report() ReportConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// SetReport replaces the report configuration for subsequent runs.
func (s *Shared) SetReport(cfg ReportConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = cfg
}

func trim[T any](list []T, max int) []T {
	if len(list) <= max {
		return list
	}
	out := make([]T, max)
	copy(out, list[len(list)-max:])
	return out
}

// Context is the state one pipeline run operates on. The current slots belong
// to the run; everything else is reached through Shared.
type Context struct {
	Shared           *Shared
	CurrentException *Exception
	CurrentFlushed   *FlushedData
	Flags            Flags
	Report           ReportConfig
}
