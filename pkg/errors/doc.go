// Package errors provides structured error handling with error codes for the
// delegation client.
//
// Every failure produced while talking to the Web API backend is an *Error
// tagged with one of the codes below, so callers can tell a dead backend from
// a rejected request from a malformed payload without string matching.
//
// # Error Codes
//
//   - ErrCodeConfiguration: missing or invalid credentials, fatal at startup
//   - ErrCodeTransport: no response received (connection failure, timeout)
//   - ErrCodeBackendStatus: response status was not 200
//   - ErrCodeResponseFormat: status 200 but the body did not parse
//   - ErrCodeAggregateFailure: one of the parallel authorization lookups failed
//   - ErrCodeProtocolViolation: a flow step was attempted out of order or
//     without the session id issued at registration
//
// # Basic Usage
//
//	err := errors.BackendStatus("register", 403, body)
//
//	if errors.HasCode(err, errors.ErrCodeBackendStatus) {
//		slog.Error("backend rejected request", "status", errors.StatusCode(err))
//	}
//
// # Details
//
// Constructors attach diagnostic details (status, raw body, timeout flag,
// person id). Details are for operator logs only and must never be written
// to an end-user response:
//
//	slog.Error("lookup failed", "status", errors.StatusCode(err), "body", errors.Body(err))
//
// # HTTP Status Mapping
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
package errors
