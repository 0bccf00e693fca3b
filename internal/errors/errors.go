// Package errors provides error code definitions shared across the sync core.
package errors

import "fmt"

// ErrorCode identifies a class of failure. Codes are stable strings so they
// can cross process boundaries (logs, API payloads) without translation.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local persistence errors. These are swallowed by the core: in-memory
	// state stays authoritative and the next mutation retries the mirror.
	ErrPersistence ErrorCode = "PERSISTENCE_ERROR"
	ErrDatabase    ErrorCode = "DATABASE_ERROR"

	// Remote store errors
	ErrRemote          ErrorCode = "REMOTE_ERROR"
	ErrRemoteInsert    ErrorCode = "REMOTE_INSERT_FAILED"
	ErrRemoteFetch     ErrorCode = "REMOTE_FETCH_FAILED"
	ErrSubscribeFailed ErrorCode = "SUBSCRIBE_FAILED"

	// Realtime merge
	ErrDuplicateEvent ErrorCode = "DUPLICATE_EVENT"

	// Identity
	ErrAuthRequired ErrorCode = "AUTH_REQUIRED"
	ErrTokenInvalid ErrorCode = "TOKEN_INVALID"
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

// Is checks if an error carries a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
