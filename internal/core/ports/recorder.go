package ports

import "github.com/tjfontaine/errorvitals/internal/core/domain"

// Recorder receives agent instrumentation events.
type Recorder interface {
	ObserveException(typ domain.ExceptionType)
	ObserveDuplicate(typ domain.ExceptionType)
	ObserveStageFault(stage string)
	ObserveReport(strategy string, err error)
}

// NoopRecorder discards every event.
type NoopRecorder struct{}

func (NoopRecorder) ObserveException(domain.ExceptionType) {}
func (NoopRecorder) ObserveDuplicate(domain.ExceptionType) {}
func (NoopRecorder) ObserveStageFault(string)              {}
func (NoopRecorder) ObserveReport(string, error)           {}
