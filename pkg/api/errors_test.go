package api

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEngineError_CategoryTag(t *testing.T) {
	tests := []struct {
		err  *EngineError
		want string
	}{
		{NewConnectionError("backend unreachable", nil), "[connection_error] backend unreachable"},
		{NewBuildError("image pull failed", nil), "[build_error] image pull failed"},
		{NewExecutionError("exit code 1", "boom", nil), "[execution_error] exit code 1"},
		{NewTimeoutError("execution timed out after 5s", nil), "[timeout_error] execution timed out after 5s"},
		{NewOutputParseError("invalid JSON", nil), "[output_parse_error] invalid JSON"},
		{NewOutputValidationError("ok: expected boolean", nil), "[output_validation_error] ok: expected boolean"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestEngineError_Retryable(t *testing.T) {
	retryable := []*EngineError{
		NewConnectionError("x", nil),
		NewBuildError("x", nil),
		NewExecutionError("x", "", nil),
		NewTimeoutError("x", nil),
	}
	for _, e := range retryable {
		if !e.Retryable() {
			t.Errorf("%s should be retryable", e.Category)
		}
	}

	systematic := []*EngineError{
		NewOutputParseError("x", nil),
		NewOutputValidationError("x", nil),
	}
	for _, e := range systematic {
		if e.Retryable() {
			t.Errorf("%s should not be retryable", e.Category)
		}
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectionError("backend unreachable", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	wrapped := fmt.Errorf("execute: %w", err)
	var engErr *EngineError
	if !errors.As(wrapped, &engErr) {
		t.Fatal("errors.As should find the EngineError")
	}
	if engErr.Category != ErrorCategoryConnection {
		t.Errorf("category = %s, want %s", engErr.Category, ErrorCategoryConnection)
	}
}

func TestExecutionError_CarriesLogs(t *testing.T) {
	err := NewExecutionError("agent exited with code 2", "Traceback (most recent call last)", nil)
	if err.Logs == "" {
		t.Error("execution errors must carry logs")
	}
	if strings.Contains(err.Error(), err.Logs) {
		t.Error("logs must not leak into the rendered message")
	}
}
