package errors

import (
	stderrors "errors"
	"fmt"
)

// SiftError is the structured error type for codesift.
// It carries a stable code, a category, and the underlying cause so that
// pipeline stages can classify failures without string matching.
type SiftError struct {
	// Code is the unique error code (e.g. "ERR_403_PROJECT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SiftError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SiftError.
func (e *SiftError) Is(target error) bool {
	if t, ok := target.(*SiftError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SiftError) WithDetail(key, value string) *SiftError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SiftError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SiftError {
	return &SiftError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SiftError from an existing error.
// The error's message becomes the SiftError message.
func Wrap(code string, err error) *SiftError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound creates a project-not-found error.
func NotFound(message string) *SiftError {
	return New(ErrCodeProjectNotFound, message, nil)
}

// IsNotFound reports whether err is any of the not-found lookup errors.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeProjectNotFound) ||
		HasCode(err, ErrCodeChunkNotFound) ||
		HasCode(err, ErrCodeFileNotFound)
}

// HasCode reports whether err (or anything in its chain) carries the code.
func HasCode(err error, code string) bool {
	var se *SiftError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var se *SiftError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCode extracts the error code from a SiftError.
// Returns empty string if not a SiftError.
func GetCode(err error) string {
	var se *SiftError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SiftError.
// Returns empty string if not a SiftError.
func GetCategory(err error) Category {
	var se *SiftError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ""
}
