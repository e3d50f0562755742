// Package errors provides error code definitions and failure
// classification for the sync engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code surfaced to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Store errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Sync errors. Network failures are the only retryable class;
	// everything else is terminal for the affected record.
	ErrNetwork        ErrorCode = "NETWORK_ERROR"
	ErrAuth           ErrorCode = "AUTH_ERROR"
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrEncryption     ErrorCode = "ENCRYPTION_ERROR"
	ErrOffline        ErrorCode = "OFFLINE"
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Code extracts the error code from an error, or ErrInternal if the
// error carries none.
func Code(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Retryable reports whether a sync failure should count against the
// retry budget rather than terminate the record immediately. Only
// network-class failures (connectivity loss, remote 5xx) are retryable;
// auth, validation and encryption failures will not heal on their own.
// Unclassified errors are treated as network failures so that a flaky
// transport never permanently fails a record.
func Retryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return true
	}
	switch appErr.Code {
	case ErrAuth, ErrValidation, ErrEncryption, ErrInvalid:
		return false
	default:
		return true
	}
}
