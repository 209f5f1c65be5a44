// Package health provides liveness and readiness endpoints for the dashboard.
package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/mohi-m/postgres-cluster-monitor/internal/service"
	"go.uber.org/zap"
)

// DefaultMaxStaleness is how old the last successful health poll may be
// before the cluster_api check reports it as stale.
const DefaultMaxStaleness = 3 * service.PollInterval

// StateProvider exposes what readiness is judged on.
type StateProvider interface {
	Polling() bool
	Summary() model.ViewSummary
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	provider     StateProvider
	metrics      *metrics.Metrics
	logger       *zap.Logger
	maxStaleness time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	draining bool
}

// NewHealthCheck creates a new HealthCheck instance.
func NewHealthCheck(provider StateProvider, m *metrics.Metrics, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		provider:     provider,
		metrics:      m,
		logger:       logger,
		maxStaleness: DefaultMaxStaleness,
		now:          time.Now,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: hc.now().Unix(),
	})
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK while the poller runs and the server is not draining.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ready, checks := hc.Check()

	if !ready {
		hc.logger.Debug("Readiness check failed", zap.Any("checks", checks))
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "not_ready", Checks: checks})
		return
	}
	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Checks: checks})
}

// Check evaluates readiness and records it in the health status gauge.
// The cluster_api entry is informational: an unreachable cluster API leaves
// the dashboard serving last-known data, so it never fails readiness.
func (hc *HealthCheck) Check() (bool, map[string]string) {
	checks := make(map[string]string, 3)
	ready := true

	hc.mu.RLock()
	draining := hc.draining
	hc.mu.RUnlock()
	if draining {
		checks["server"] = "draining"
		ready = false
	} else {
		checks["server"] = "serving"
	}

	if hc.provider.Polling() {
		checks["poller"] = "running"
	} else {
		checks["poller"] = "stopped"
		ready = false
	}

	last := hc.provider.Summary().LastHealthUpdate
	switch {
	case last.IsZero():
		checks["cluster_api"] = "no successful poll yet"
	case hc.now().Sub(last) > hc.maxStaleness:
		checks["cluster_api"] = "stale since " + last.UTC().Format(time.RFC3339)
	default:
		checks["cluster_api"] = "healthy"
	}

	hc.metrics.SetHealthStatus(ready)
	return ready, checks
}

// SetDraining marks the dashboard as shutting down so readiness fails.
func (hc *HealthCheck) SetDraining(draining bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.draining = draining
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
