// Package errors provides error types for cluster queries and the JSON error
// envelope written by the dashboard API.
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// APIErrorCode represents dashboard API error codes.
type APIErrorCode string

const (
	ErrorCodeInvalidRequest   APIErrorCode = "INVALID_REQUEST"
	ErrorCodePresetNotFound   APIErrorCode = "PRESET_NOT_FOUND"
	ErrorCodeNotFound         APIErrorCode = "NOT_FOUND"
	ErrorCodeMethodNotAllowed APIErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeInternalError    APIErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceDown      APIErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeRateLimited      APIErrorCode = "RATE_LIMITED"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string       `json:"status"`
	ErrorCode APIErrorCode `json:"error_code"`
	Message   string       `json:"message"`
	RequestID string       `json:"request_id,omitempty"`
}

// Handler writes error responses.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// WriteErrorResponse writes a formatted error response to the HTTP response writer.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode APIErrorCode, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteNotFound writes a 404 response.
func (h *Handler) WriteNotFound(w http.ResponseWriter, errorCode APIErrorCode, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusNotFound, errorCode, message, requestID)
}

// WriteInternalError writes an internal error response.
func (h *Handler) WriteInternalError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, message, requestID)
}

// WriteServiceUnavailable writes a service unavailable response.
func (h *Handler) WriteServiceUnavailable(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusServiceUnavailable, ErrorCodeServiceDown, message, requestID)
}
