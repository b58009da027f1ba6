package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes used across the delegation client
const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// Startup errors
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// Backend call errors
	ErrCodeTransport      ErrorCode = "TRANSPORT_ERROR"
	ErrCodeBackendStatus  ErrorCode = "BACKEND_STATUS"
	ErrCodeResponseFormat ErrorCode = "RESPONSE_FORMAT"

	// Flow errors
	ErrCodeAggregateFailure  ErrorCode = "AGGREGATE_FAILURE"
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
)

// Detail keys set by the constructors below
const (
	DetailStatus   = "status"
	DetailBody     = "body"
	DetailTimeout  = "timeout"
	DetailPersonID = "person_id"
	DetailCall     = "call"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code.
// The outermost structured error decides.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// HasCode reports whether any structured error in the chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// GetCode extracts the error code from an error
// Returns ErrCodeInternal if the error is not a structured Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetDetails extracts the details from an error
// Returns nil if the error is not a structured Error
func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput:
		return http.StatusBadRequest

	case ErrCodeNotFound:
		return http.StatusNotFound

	// Backend and correlation failures are reported to the browser as a
	// plain server error
	case ErrCodeTransport, ErrCodeBackendStatus, ErrCodeResponseFormat,
		ErrCodeAggregateFailure, ErrCodeProtocolViolation, ErrCodeConfiguration:
		return http.StatusInternalServerError

	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// Constructors for the delegation error taxonomy

// Configuration creates a startup configuration error
func Configuration(message string) *Error {
	return New(ErrCodeConfiguration, message)
}

// Transport wraps a failure to obtain any response from the backend
func Transport(err error, call string, timeout bool) *Error {
	return Wrap(err, ErrCodeTransport, call+" request failed").
		WithDetail(DetailCall, call).
		WithDetail(DetailTimeout, timeout)
}

// BackendStatus reports a non-200 response; the raw body is kept for operators
func BackendStatus(call string, status int, body string) *Error {
	return Newf(ErrCodeBackendStatus, "%s returned status %d", call, status).
		WithDetail(DetailCall, call).
		WithDetail(DetailStatus, status).
		WithDetail(DetailBody, body)
}

// ResponseFormat reports a 200 response whose body has an unexpected shape
func ResponseFormat(err error, call string, body string) *Error {
	e := &Error{
		Code:    ErrCodeResponseFormat,
		Message: call + " returned an unexpected response body",
		Err:     err,
	}
	return e.WithDetail(DetailCall, call).WithDetail(DetailBody, body)
}

// Aggregate wraps the first failed sub-call of a parallel lookup
func Aggregate(err error, personID string) *Error {
	return Wrap(err, ErrCodeAggregateFailure, "authorization lookup failed").
		WithDetail(DetailPersonID, personID)
}

// ProtocolViolation reports an out-of-order or uncorrelated flow step
func ProtocolViolation(message string) *Error {
	return New(ErrCodeProtocolViolation, message)
}

// InvalidInput creates an "invalid input" error
func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// StatusCode returns the backend status carried by a BACKEND_STATUS error
// anywhere in the chain, or 0.
func StatusCode(err error) int {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return 0
		}
		if e.Code == ErrCodeBackendStatus {
			if status, ok := e.Details[DetailStatus].(int); ok {
				return status
			}
			return 0
		}
		err = e.Err
	}
	return 0
}

// Body returns the first raw backend body found in the chain, or "".
func Body(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if body, ok := e.Details[DetailBody].(string); ok && body != "" {
			return body
		}
		err = e.Err
	}
	return ""
}

// IsTimeout reports whether err is a transport error caused by a deadline
func IsTimeout(err error) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == ErrCodeTransport {
			timeout, _ := e.Details[DetailTimeout].(bool)
			return timeout
		}
		err = e.Err
	}
	return false
}
