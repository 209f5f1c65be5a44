// Package handler provides HTTP request handlers for the dashboard API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohi-m/postgres-cluster-monitor/internal/converter"
	apierrors "github.com/mohi-m/postgres-cluster-monitor/internal/errors"
	"github.com/mohi-m/postgres-cluster-monitor/internal/middleware"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/mohi-m/postgres-cluster-monitor/internal/service"
	"go.uber.org/zap"
)

// Dashboard is the part of the dashboard service the handlers use.
type Dashboard interface {
	View() model.ViewState
	Summary() model.ViewSummary
	Presets() []int
	RefreshHealth(ctx context.Context) error
	FetchRaw(raw string) (int, <-chan struct{})
	FetchPreset(limit int) (<-chan struct{}, error)
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	dashboard    Dashboard
	viewToHTTP   *converter.ViewToHTTP
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	timeout      time.Duration
}

// NewHandlers creates a new Handlers instance. timeout bounds a manual health refresh.
func NewHandlers(
	dashboard Dashboard,
	viewToHTTP *converter.ViewToHTTP,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	timeout time.Duration,
) *Handlers {
	return &Handlers{
		dashboard:    dashboard,
		viewToHTTP:   viewToHTTP,
		errorHandler: errorHandler,
		logger:       logger,
		timeout:      timeout,
	}
}

// GetView handles GET /v1/view requests.
func (h *Handlers) GetView(w http.ResponseWriter, r *http.Request) {
	resp := h.viewToHTTP.ToViewResponse(h.dashboard.Summary(), h.dashboard.Presets())
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// GetNodes handles GET /v1/nodes requests.
func (h *Handlers) GetNodes(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.viewToHTTP.ToNodesResponse(h.dashboard.Summary()))
}

// RefreshNodes handles POST /v1/nodes/refresh requests.
// A failed poll leaves the node list untouched and reports 503.
func (h *Handlers) RefreshNodes(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.dashboard.RefreshHealth(ctx); err != nil {
		h.logger.Warn("Manual health refresh failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		h.errorHandler.WriteServiceUnavailable(w, "health query failed: "+apierrors.CodeOf(err).String(), requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, h.viewToHTTP.ToNodesResponse(h.dashboard.Summary()))
}

// GetDataset handles GET /v1/dataset requests.
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.viewToHTTP.ToDatasetResponse(h.dashboard.View()))
}

// FetchDataset handles POST /v1/dataset requests. The limit is operator
// text; anything that is not a number falls back to the default size.
func (h *Handlers) FetchDataset(w http.ResponseWriter, r *http.Request) {
	limit, _ := h.dashboard.FetchRaw(r.FormValue("limit"))

	h.logger.Debug("Dataset fetch accepted",
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.Int("limit", limit))

	h.writeJSONResponse(w, http.StatusAccepted, &converter.FetchAcceptedHTTPResponse{
		Status: "accepted",
		Limit:  limit,
	})
}

// GetPresets handles GET /v1/dataset/presets requests.
func (h *Handlers) GetPresets(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, &converter.PresetsHTTPResponse{
		Status:       "success",
		Presets:      h.dashboard.Presets(),
		DefaultLimit: service.DefaultLimit,
		MinLimit:     service.MinLimit,
		MaxLimit:     service.MaxLimit,
	})
}

// FetchPreset handles POST /v1/dataset/presets/{limit} requests.
func (h *Handlers) FetchPreset(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	raw := mux.Vars(r)["limit"]
	limit, err := strconv.Atoi(raw)
	if err != nil {
		h.errorHandler.WriteValidationError(w, fmt.Sprintf("preset must be an integer, got %q", raw), requestID)
		return
	}

	if _, err := h.dashboard.FetchPreset(limit); err != nil {
		if errors.Is(err, service.ErrUnknownPreset) {
			h.errorHandler.WriteNotFound(w, apierrors.ErrorCodePresetNotFound,
				fmt.Sprintf("no preset of %d records", limit), requestID)
			return
		}
		h.errorHandler.WriteInternalError(w, err.Error(), requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusAccepted, &converter.FetchAcceptedHTTPResponse{
		Status: "accepted",
		Limit:  limit,
	})
}

// GetChart handles GET /v1/dataset/chart requests.
func (h *Handlers) GetChart(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.viewToHTTP.ToChartResponse(h.dashboard.View()))
}

// NotFound handles requests to unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.errorHandler.WriteNotFound(w, apierrors.ErrorCodeNotFound,
		fmt.Sprintf("no route for %s", r.URL.Path), middleware.GetRequestID(r.Context()))
}

// MethodNotAllowed handles requests with an unsupported method.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeMethodNotAllowed,
		fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path), middleware.GetRequestID(r.Context()))
}

// writeJSONResponse writes a JSON response.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
