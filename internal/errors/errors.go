package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is the structured error the service layer hands to the HTTP
// layer. ErrorCode selects the RFC 7807 problem type on the way out.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError names one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New builds an APIError without detail payload
func New(statusCode int, errorCode, message string) *APIError {
	return NewWithDetails(statusCode, errorCode, message, nil)
}

// NewWithDetails builds an APIError carrying a detail payload
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors for the failure modes the API actually produces.
var (
	ErrInvalidRequest  = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrNotFound        = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrSessionNotFound = New(http.StatusNotFound, "SESSION_NOT_FOUND", "Calculation session not found")

	ErrCalculationFailed = New(http.StatusUnprocessableEntity, "CALCULATION_FAILED", "Fee calculation rejected the inputs")
	ErrTooManyLots       = New(http.StatusUnprocessableEntity, "TOO_MANY_LOTS", "Session lot limit exceeded")

	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	ErrExportFailed = New(http.StatusInternalServerError, "EXPORT_FAILED", "Report export failed")
)

// InvalidRequestWithError wraps a decode failure as an invalid request
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation rejects a single named field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// NotFoundError reports a missing resource by name
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// SessionNotFoundError reports a missing calculation session by ID
func SessionNotFoundError(sessionID string) *APIError {
	return NewWithDetails(http.StatusNotFound, "SESSION_NOT_FOUND", "Calculation session not found", sessionID)
}

// CalculationError wraps an engine rejection as unprocessable entity
func CalculationError(err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, "CALCULATION_FAILED", "Fee calculation rejected the inputs", err.Error())
}

// ExportError wraps a report generation failure
func ExportError(format string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "EXPORT_FAILED", fmt.Sprintf("Failed to export %s report", format), err.Error())
}

// ErrorResponse is the legacy success/error envelope kept for the
// middleware paths that write JSON directly.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps an APIError in the envelope
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// ValidationErrors collects per-field failures for one request
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors rejects a request over multiple fields at once
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}

// WriteError emits the enveloped form directly, bypassing chi/render
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}

// NewValidationError rejects a request with a bare message
func NewValidationError(message string) *APIError {
	return New(http.StatusBadRequest, "VALIDATION_FAILED", message)
}
