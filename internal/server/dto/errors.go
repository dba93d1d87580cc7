// Package dto defines the JSON request and response types of the HTTP API and
// its structured errors.
//
// Every error response has the same envelope:
//
//	{"error": {"code": "VALIDATION_FAILED", "message": "..."}, "details": {...}}
//
// Handlers return an *APIError (or any ErrorWithStatus); anything else is
// reported as INTERNAL_ERROR.
package dto

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"
)

// ErrorCode is the machine-readable classification of an API error.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidBody is returned when the body is not the expected JSON.
	ErrorCodeInvalidBody ErrorCode = "INVALID_BODY"
	// ErrorCodeNotFound is returned when a resource does not exist.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeQuotaExceeded is returned when a cart limit would be exceeded.
	ErrorCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrorCodePayloadTooLarge is returned when the body exceeds the limit.
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrorCodeRateLimitExceeded is returned when a client sends too many
	// requests.
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrorCodeStorageError is returned when the cart could not be saved.
	ErrorCodeStorageError ErrorCode = "STORAGE_ERROR"
	// ErrorCodeInternal is returned when an unexpected server error occurs.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeNotImplemented is returned for disabled features.
	ErrorCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

// ErrorDetails is the "error" member of an error response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that knows its HTTP status and code.
type ErrorWithStatus interface {
	error
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is the concrete ErrorWithStatus returned by handlers.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrapped    error
}

// NewAPIError creates an APIError.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// WithDetails merges details into the error.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any, len(details))
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail sets one detail.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap records the underlying cause.
func (e *APIError) Wrap(err error) *APIError {
	e.wrapped = err
	return e
}

func (e *APIError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code returns the error code.
func (e *APIError) Code() ErrorCode { return e.code }

// Details returns the extra fields of the response, possibly nil.
func (e *APIError) Details() map[string]any { return e.details }

// Message returns the message without the wrapped cause, suitable for
// clients.
func (e *APIError) Message() string { return e.message }

func (e *APIError) Unwrap() error { return e.wrapped }

// BadRequest creates a 400 validation error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// InvalidField creates a 400 validation error naming the offending field.
func InvalidField(field string, err error) *APIError {
	return BadRequest("invalid "+field).WithDetail("field", field).Wrap(err)
}

// MissingField creates a 400 error for a missing field.
func MissingField(field string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, "missing required field: "+field).
		WithDetail("field", field)
}

// InvalidBody creates a 400 error for a body that is not valid JSON for the
// endpoint.
func InvalidBody(err error) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeInvalidBody, "invalid request body").Wrap(err)
}

// NotFound creates a 404 error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, resource+" not found")
}

// QuotaExceeded creates a 409 error for a cart limit.
func QuotaExceeded(err error) *APIError {
	return NewAPIError(http.StatusConflict, ErrorCodeQuotaExceeded, "cart limit exceeded").Wrap(err)
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge,
		"request body exceeds "+strconv.FormatInt(limit, 10)+" bytes").WithDetail("limit", limit)
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded(retryAfterSecs int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorCodeRateLimitExceeded, "too many requests").
		WithDetail("retry_after", retryAfterSecs)
}

// StorageError creates a 500 error for a failed save.
func StorageError(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeStorageError, "failed to save cart").Wrap(err)
}

// Internal creates a 500 error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// InternalWithError creates a 500 error wrapping err.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}

// NotImplemented creates a 501 error for a feature that is disabled on this
// server.
func NotImplemented(feature string) *APIError {
	return NewAPIError(http.StatusNotImplemented, ErrorCodeNotImplemented, feature+" is not enabled")
}
