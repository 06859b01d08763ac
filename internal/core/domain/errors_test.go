package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAgentError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      *AgentError
		expected string
	}{
		{
			name:     "kind and message",
			err:      NewAgentError(ErrorKindReportMisconfigured, "report url is not defined"),
			expected: "report_misconfigured: report url is not defined",
		},
		{
			name:     "with stage",
			err:      NewAgentError(ErrorKindStageExecution, "boom").WithStage("flushData"),
			expected: "stage_execution_fault (flushData): boom",
		},
		{
			name:     "with cause",
			err:      ErrDelivery("report error", cause),
			expected: "delivery_fault: report error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAgentError_UnwrapAndIsKind(t *testing.T) {
	cause := errors.New("panic: nil map")
	err := fmt.Errorf("run: %w", ErrStageExecution("report", cause))

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through AgentError")
	}
	if !IsKind(err, ErrorKindStageExecution) {
		t.Error("expected IsKind to match stage_execution_fault")
	}
	if IsKind(err, ErrorKindDelivery) {
		t.Error("IsKind matched the wrong kind")
	}
	if IsKind(cause, ErrorKindStageExecution) {
		t.Error("IsKind matched a plain error")
	}
}
