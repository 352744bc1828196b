// Package errors defines the API error type shared by all HTTP handlers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorResponse represents an error response for HTTP APIs
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorCode represents error codes used in API responses
type ErrorCode string

const (
	// ErrorCodeInvalidRequest represents invalid request parameters
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrorCodeNotFound represents a not found error
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrorCodeInternalError represents an internal server error
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeConflict represents a conflict
	ErrorCodeConflict ErrorCode = "CONFLICT"

	// ErrorCodeTooManyRequests represents rate limiting
	ErrorCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"

	// ErrorCodeValidation represents a validation error
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
)

// APIError represents an API error with status code and message
type APIError struct {
	Code       ErrorCode
	HTTPStatus int
	Message    string
	Details    map[string]interface{} // Optional additional error details
}

// NewAPIError creates a new API error
func NewAPIError(code ErrorCode, httpStatus int, message string) *APIError {
	return &APIError{
		Code:       code,
		HTTPStatus: httpStatus,
		Message:    message,
		Details:    make(map[string]interface{}),
	}
}

// Error returns the error message
func (e *APIError) Error() string {
	return e.Message
}

// GetHTTPResponse returns the HTTP error response
func (e *APIError) GetHTTPResponse() ErrorResponse {
	return ErrorResponse{
		Error:   string(e.Code),
		Message: e.Message,
	}
}

// GetHTTPStatusCode returns the HTTP status code
func (e *APIError) GetHTTPStatusCode() int {
	return e.HTTPStatus
}

// WithDetail adds additional context to the error
func (e *APIError) WithDetail(key string, value interface{}) *APIError {
	e.Details[key] = value
	return e
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeInvalidRequest, http.StatusBadRequest, fmt.Sprintf(message, args...))
}

// NewNotFoundError creates a not found error
func NewNotFoundError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeNotFound, http.StatusNotFound, fmt.Sprintf(message, args...))
}

// NewInternalServerError creates an internal server error
func NewInternalServerError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeInternalError, http.StatusInternalServerError, fmt.Sprintf(message, args...))
}

// NewConflictError creates a conflict error
func NewConflictError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeConflict, http.StatusConflict, fmt.Sprintf(message, args...))
}

// NewTooManyRequestsError creates a rate limiting error
func NewTooManyRequestsError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeTooManyRequests, http.StatusTooManyRequests, fmt.Sprintf(message, args...))
}

// NewValidationError creates a validation error
func NewValidationError(message string, args ...interface{}) *APIError {
	return NewAPIError(ErrorCodeValidation, http.StatusUnprocessableEntity, fmt.Sprintf(message, args...))
}

// WrapError wraps a standard error as an internal server error
func WrapError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalServerError("Internal server error: %v", err)
}

// AsAPIError tries to convert an error to an APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := stderrors.As(err, &apiErr)
	return apiErr, ok
}
