package domain

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of an agent failure.
type ErrorKind string

const (
	// ErrorKindClassificationAmbiguous marks a signal that could not be typed
	// confidently and fell back to the resource category.
	ErrorKindClassificationAmbiguous ErrorKind = "classification_ambiguous"

	// ErrorKindDuplicateSuppressed marks a signal whose fingerprint was already seen.
	ErrorKindDuplicateSuppressed ErrorKind = "duplicate_suppressed"

	// ErrorKindStageExecution indicates a pipeline stage failed or panicked.
	ErrorKindStageExecution ErrorKind = "stage_execution_fault"

	// ErrorKindDelivery indicates a transport failure while reporting.
	ErrorKindDelivery ErrorKind = "delivery_fault"

	// ErrorKindReportMisconfigured indicates no usable delivery strategy is configured.
	ErrorKindReportMisconfigured ErrorKind = "report_misconfigured"

	// ErrorKindConfigInvalid indicates the agent configuration could not be loaded.
	ErrorKindConfigInvalid ErrorKind = "config_invalid"

	// ErrorKindSchemaValidation indicates a report payload failed schema validation.
	ErrorKindSchemaValidation ErrorKind = "schema_validation"
)

// AgentError is a categorized failure inside the agent. None of these ever
// reach the host application; they are logged where they are caught.
type AgentError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("%s (%s): %s", e.Kind, e.Stage, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AgentError) Unwrap() error { return e.Err }

// NewAgentError creates a new agent error.
func NewAgentError(kind ErrorKind, message string) *AgentError {
	return &AgentError{Kind: kind, Message: message}
}

// WithStage names the stage the error occurred in.
func (e *AgentError) WithStage(stage string) *AgentError {
	e.Stage = stage
	return e
}

// WithCause attaches the underlying error.
func (e *AgentError) WithCause(err error) *AgentError {
	e.Err = err
	return e
}

// IsKind reports whether err is an AgentError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// ErrStageExecution creates a stage execution fault.
func ErrStageExecution(stage string, cause error) *AgentError {
	return NewAgentError(ErrorKindStageExecution, "middleware execution error").
		WithStage(stage).
		WithCause(cause)
}

// ErrDelivery creates a delivery fault.
func ErrDelivery(message string, cause error) *AgentError {
	return NewAgentError(ErrorKindDelivery, message).WithCause(cause)
}

// ErrReportMisconfigured creates a misconfiguration error.
func ErrReportMisconfigured(message string) *AgentError {
	return NewAgentError(ErrorKindReportMisconfigured, message)
}

// ErrConfigInvalid creates a configuration error.
func ErrConfigInvalid(message string, cause error) *AgentError {
	return NewAgentError(ErrorKindConfigInvalid, message).WithCause(cause)
}

// ErrSchemaValidation creates a schema validation error.
func ErrSchemaValidation(message string) *AgentError {
	return NewAgentError(ErrorKindSchemaValidation, message)
}
