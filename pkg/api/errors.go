package api

import "fmt"

// ErrorCategory classifies an invocation failure. Every failure the engine
// reports falls into exactly one category.
type ErrorCategory string

const (
	ErrorCategoryConnection       ErrorCategory = "connection_error"
	ErrorCategoryBuild            ErrorCategory = "build_error"
	ErrorCategoryExecution        ErrorCategory = "execution_error"
	ErrorCategoryTimeout          ErrorCategory = "timeout_error"
	ErrorCategoryOutputParse      ErrorCategory = "output_parse_error"
	ErrorCategoryOutputValidation ErrorCategory = "output_validation_error"
)

// EngineError is a categorized invocation failure. The rendered text is
// tagged with the category so callers can branch on failure class without
// parsing prose.
type EngineError struct {
	Category ErrorCategory
	Message  string

	// Logs carries captured diagnostic output for execution-category
	// failures. Empty for all other categories.
	Logs string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface with a category-tagged rendering.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Connection, build,
// execution, and timeout failures may succeed on retry; output parse and
// validation failures mean the agent's contract is broken and retrying
// will not help.
func (e *EngineError) Retryable() bool {
	switch e.Category {
	case ErrorCategoryOutputParse, ErrorCategoryOutputValidation:
		return false
	default:
		return true
	}
}

// NewConnectionError creates an EngineError for backend access failures.
func NewConnectionError(message string, cause error) *EngineError {
	return &EngineError{Category: ErrorCategoryConnection, Message: message, Err: cause}
}

// NewBuildError creates an EngineError for environment assembly failures.
func NewBuildError(message string, cause error) *EngineError {
	return &EngineError{Category: ErrorCategoryBuild, Message: message, Err: cause}
}

// NewExecutionError creates an EngineError for agent process failures.
// logs carries the captured diagnostic output for the result envelope.
func NewExecutionError(message, logs string, cause error) *EngineError {
	return &EngineError{Category: ErrorCategoryExecution, Message: message, Logs: logs, Err: cause}
}

// NewTimeoutError creates an EngineError for wall-clock timeout expiry.
func NewTimeoutError(message string, cause error) *EngineError {
	return &EngineError{Category: ErrorCategoryTimeout, Message: message, Err: cause}
}

// NewOutputParseError creates an EngineError for unparseable agent output.
func NewOutputParseError(message string, cause error) *EngineError {
	return &EngineError{Category: ErrorCategoryOutputParse, Message: message, Err: cause}
}

// NewOutputValidationError creates an EngineError for schema violations in
// otherwise well-formed agent output.
func NewOutputValidationError(message string, cause error) *EngineError {
	return &EngineError{Category: ErrorCategoryOutputValidation, Message: message, Err: cause}
}
