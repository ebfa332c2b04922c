package errors

import (
	stderrors "errors"
	"fmt"
)

// ProjectError is the structured error type for ProjectMind.
// It carries enough context for logging, CLI output and MCP tool results.
type ProjectError struct {
	// Code is the unique error code (e.g., "ERR_208_COMMIT_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ProjectError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ProjectError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is(err, &ProjectError{Code: ...}) works.
func (e *ProjectError) Is(target error) bool {
	if t, ok := target.(*ProjectError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ProjectError) WithDetail(key, value string) *ProjectError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ProjectError) WithSuggestion(suggestion string) *ProjectError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ProjectError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ProjectError {
	return &ProjectError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ProjectError from an existing error.
// The error's message becomes the ProjectError message.
func Wrap(code string, err error) *ProjectError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ProjectError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ProjectError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ProjectError {
	return New(ErrCodeInternal, message, cause)
}

// Sentinel returns a code-only error usable as an errors.Is target.
func Sentinel(code string) error {
	return &ProjectError{Code: code}
}

// IsRetryable reports whether any ProjectError in the chain is retryable.
func IsRetryable(err error) bool {
	var pe *ProjectError
	if stderrors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var pe *ProjectError
	if stderrors.As(err, &pe) {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first ProjectError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var pe *ProjectError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, Sentinel(code))
}
