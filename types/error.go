package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the gateway.
type ErrorCode string

// Local-origin error codes
const (
	ErrServiceNotFound ErrorCode = "SERVICE_NOT_FOUND"
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
)

// Provider error codes, produced by the error normalizer
const (
	ErrAuthentication  ErrorCode = "AUTHENTICATION"
	ErrBillingRequired ErrorCode = "BILLING_REQUIRED"
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrContentFiltered ErrorCode = "CONTENT_FILTERED"
	ErrTaskNotFound    ErrorCode = "TASK_NOT_FOUND"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
	ErrUnknown         ErrorCode = "UNKNOWN"
)

// Transport and payload error codes
const (
	ErrNetworkFailure  ErrorCode = "NETWORK_FAILURE"
	ErrResponseFormat  ErrorCode = "RESPONSE_FORMAT"
	ErrBusinessFailure ErrorCode = "BUSINESS_FAILURE"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// Error is the single error type surfaced by every gateway operation.
// Message is always user-presentable; raw provider payloads only go to Details.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Details    string    `json:"details,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP-like status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the service id the error originated from.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithDetails attaches diagnostic details (raw body, exception text).
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithRequestID records the provider-supplied request id.
func (e *Error) WithRequestID(id string) *Error {
	e.RequestID = id
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
