// Package errors provides structured application errors with stable
// codes, so callers can match on failure categories without string
// comparison.
package errors

import (
	"fmt"
)

// AppError is a structured application error.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with additional context, preserving an existing
// AppError code.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{Code: appErr.Code, Message: message, Cause: appErr}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Wrapf wraps an error with formatted additional context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the error code if it's an AppError, otherwise "UNKNOWN".
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Error codes.
const (
	CodeConfigInvalid = "CONFIG_INVALID"
	CodeParseFailed   = "PARSE_FAILED"
	CodeValidation    = "VALIDATION_FAILED"
	CodePrecondition  = "PRECONDITION_VIOLATION"
	CodeDataSource    = "DATA_SOURCE_ERROR"
	CodeDatabase      = "DATABASE_ERROR"
	CodeExport        = "EXPORT_FAILED"
	CodeInternal      = "INTERNAL_ERROR"
)

// ConfigInvalid flags a bad configuration value.
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// Precondition flags a programmer error: an API invoked outside its
// contract, e.g. simulating a scenario with outstanding semantic errors.
func Precondition(message string) *AppError {
	return New(CodePrecondition, message)
}

// DataSourceError wraps a failed external fetch. Callers recover these
// locally; they never propagate as simulation failures.
func DataSourceError(locator string, cause error) *AppError {
	return &AppError{
		Code:    CodeDataSource,
		Message: fmt.Sprintf("fetching %q failed", locator),
		Cause:   cause,
	}
}
