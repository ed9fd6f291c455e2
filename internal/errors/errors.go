package errors

import (
	"errors"
	"fmt"
)

// IndexError is the structured error type for IndexChat.
// It carries the context the orchestrator needs for its
// abort-vs-continue decisions, and the context logs need for triage.
type IndexError struct {
	// Code is the unique error code (e.g., "ERR_301_PROVIDER_AUTH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Provider, ...).
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
func (e *IndexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with IndexError.
func (e *IndexError) Is(target error) bool {
	if t, ok := target.(*IndexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IndexError) WithDetail(key, value string) *IndexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new IndexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IndexError {
	return &IndexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IndexError from an existing error.
// Returns nil if err is nil.
func Wrap(code string, err error) *IndexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *IndexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// AuthError creates a provider authentication error. These are fatal
// for the whole rebuild because they recur for every subsequent unit.
func AuthError(message string, cause error) *IndexError {
	return New(ErrCodeProviderAuth, message, cause)
}

// StoreError creates an index-store error.
func StoreError(message string, cause error) *IndexError {
	return New(ErrCodeStoreFailed, message, cause)
}

// IsFatal reports whether the error should abort the whole run.
func IsFatal(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Severity == SeverityFatal
	}
	return false
}

// IsAuthFailure reports whether the error chain contains a provider
// authentication failure.
func IsAuthFailure(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeProviderAuth
	}
	return false
}

// IsRetryable reports whether the error marks a transient condition.
func IsRetryable(err error) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Retryable
	}
	return false
}
