package errors

import (
	"fmt"
)

// ErrorType classifies internal errors that never reach the HTTP surface.
type ErrorType string

const (
	ErrTypeConfig  ErrorType = "CONFIG"
	ErrTypeSession ErrorType = "SESSION"
)

// AppError carries a classified internal error with optional context.
// Used on startup and background paths where no request is in flight.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

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

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewSessionError creates a session-store error
func NewSessionError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSession, message, cause)
}
