package errors

import (
	"fmt"
)

// ErrorType represents the failure category of a run
type ErrorType string

const (
	ErrTypeHTTPStatus ErrorType = "HTTP_STATUS"
	ErrTypeConnection ErrorType = "CONNECTION"
	ErrTypeTimeout    ErrorType = "TIMEOUT"
	ErrTypeTransport  ErrorType = "TRANSPORT"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeArchive    ErrorType = "ARCHIVE"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeOutput     ErrorType = "OUTPUT"
	ErrTypePublish    ErrorType = "PUBLISH"
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeCancelled  ErrorType = "CANCELLED"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewHTTPStatusError creates an error for a non-success HTTP response
func NewHTTPStatusError(url string, statusCode int, status string) *AppError {
	return NewAppError(ErrTypeHTTPStatus, fmt.Sprintf("unexpected status %s", status), nil).
		WithContext("url", url).
		WithContext("status_code", statusCode)
}

// NewConnectionError creates an error for a failed connection attempt
func NewConnectionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConnection, message, cause)
}

// NewTimeoutError creates an error for a request that ran out of time
func NewTimeoutError(message string, cause error) *AppError {
	return NewAppError(ErrTypeTimeout, message, cause)
}

// NewTransportError creates an error for any other transport failure
func NewTransportError(message string, cause error) *AppError {
	return NewAppError(ErrTypeTransport, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, cause error) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), cause)
}

// NewArchiveError creates an error for a corrupt or unreadable package
func NewArchiveError(message string, cause error) *AppError {
	return NewAppError(ErrTypeArchive, message, cause)
}

// NewParsingError creates a parsing-related error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewOutputError creates an error for a failed tabular write
func NewOutputError(message string, cause error) *AppError {
	return NewAppError(ErrTypeOutput, message, cause)
}

// NewPublishError creates an error for a rejected upload
func NewPublishError(message string, cause error) *AppError {
	return NewAppError(ErrTypePublish, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewCancelledError creates an error for a cancelled or timed out run
func NewCancelledError(message string, cause error) *AppError {
	return NewAppError(ErrTypeCancelled, message, cause)
}
