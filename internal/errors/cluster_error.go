package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies failures of the cluster API collaborator
type ErrorCode int

const (
	// ErrCodeTransport covers network errors, timeouts and non-success responses
	ErrCodeTransport ErrorCode = 1000
	// ErrCodeMalformedPayload covers bodies that fail schema expectations
	ErrCodeMalformedPayload ErrorCode = 1001
	// ErrCodeInvalidLimit covers a data request outside the accepted bounds
	ErrCodeInvalidLimit ErrorCode = 1002
)

// String returns the metric/log label for the code
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTransport:
		return "transport"
	case ErrCodeMalformedPayload:
		return "malformed_payload"
	case ErrCodeInvalidLimit:
		return "invalid_limit"
	default:
		return "unknown"
	}
}

// ClusterError is a structured failure of a query against the cluster API
type ClusterError struct {
	Code     ErrorCode
	Endpoint string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *ClusterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Code, e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s: %s", e.Code, e.Endpoint, e.Message)
}

// Unwrap returns the underlying error
func (e *ClusterError) Unwrap() error {
	return e.Cause
}

// TransportFailure creates a transport error for endpoint
func TransportFailure(endpoint, message string, cause error) *ClusterError {
	return &ClusterError{Code: ErrCodeTransport, Endpoint: endpoint, Message: message, Cause: cause}
}

// MalformedPayload creates a schema error for endpoint
func MalformedPayload(endpoint, message string, cause error) *ClusterError {
	return &ClusterError{Code: ErrCodeMalformedPayload, Endpoint: endpoint, Message: message, Cause: cause}
}

// InvalidLimit creates an error for a data request outside [lo, hi]
func InvalidLimit(limit, lo, hi int) *ClusterError {
	return &ClusterError{
		Code:     ErrCodeInvalidLimit,
		Endpoint: "/data",
		Message:  fmt.Sprintf("limit %d outside [%d, %d]", limit, lo, hi),
	}
}

// CodeOf extracts the ErrorCode of err, or 0 when err is not a ClusterError
func CodeOf(err error) ErrorCode {
	var ce *ClusterError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool {
	return CodeOf(err) == ErrCodeTransport
}

// IsMalformedPayload reports whether err is a malformed payload failure
func IsMalformedPayload(err error) bool {
	return CodeOf(err) == ErrCodeMalformedPayload
}
