// Package metrics provides Prometheus metrics for the cluster monitor dashboard.
package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "cluster_monitor"

// Result labels for poll and fetch outcomes.
const (
	ResultSuccess   = "success"
	ResultDiscarded = "discarded"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInFlight   prometheus.Gauge
	healthPollsTotal   *prometheus.CounterVec
	healthPollDuration prometheus.Histogram
	nodeStatus         *prometheus.GaugeVec
	lastHealthUpdate   prometheus.Gauge
	fetchesTotal       *prometheus.CounterVec
	fetchDuration      prometheus.Histogram
	fetchesInFlight    prometheus.Gauge
	fetchLimit         prometheus.Histogram
	datasetRecords     prometheus.Gauge
	streamClients      prometheus.Gauge
	healthStatus       prometheus.Gauge
}

// NewMetrics creates the dashboard metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of dashboard HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Dashboard HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		requestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of dashboard HTTP requests currently being processed",
			},
		),
		healthPollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_polls_total",
				Help:      "Health polls by result",
			},
			[]string{"result"},
		),
		healthPollDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "health_poll_duration_seconds",
				Help:      "Round trip of the cluster health query",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		nodeStatus: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "node_status",
				Help:      "1 for the status category of each node at the last successful poll",
			},
			[]string{"host", "status"},
		),
		lastHealthUpdate: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_health_update_timestamp_seconds",
				Help:      "Unix time of the last successful health poll",
			},
		),
		fetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_fetches_total",
				Help:      "Dataset fetches by result",
			},
			[]string{"result"},
		),
		fetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dataset_fetch_duration_seconds",
				Help:      "Round trip of the cluster data query",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		fetchesInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_fetches_in_flight",
				Help:      "Number of outstanding dataset fetches",
			},
		),
		fetchLimit: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dataset_fetch_limit",
				Help:      "Effective limit of issued dataset fetches",
				Buckets:   []float64{1, 100, 500, 1000, 5000, 10000},
			},
		),
		datasetRecords: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_records",
				Help:      "Number of records in the current dataset",
			},
		),
		streamClients: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected view stream clients",
			},
		),
		healthStatus: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "health_status",
				Help:      "Health status of the dashboard (1 = healthy, 0 = unhealthy)",
			},
		),
	}
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordHealthPoll records the outcome of one health poll.
func (m *Metrics) RecordHealthPoll(result string, duration time.Duration) {
	m.healthPollsTotal.WithLabelValues(result).Inc()
	m.healthPollDuration.Observe(duration.Seconds())
}

// SetNodeStatuses replaces the per-node status series.
func (m *Metrics) SetNodeStatuses(statuses map[string]model.StatusCategory, at time.Time) {
	m.nodeStatus.Reset()
	for host, status := range statuses {
		m.nodeStatus.WithLabelValues(host, string(status)).Set(1)
	}
	m.lastHealthUpdate.Set(float64(at.Unix()))
}

// FetchStarted records an issued dataset fetch.
func (m *Metrics) FetchStarted(limit int) {
	m.fetchesInFlight.Inc()
	m.fetchLimit.Observe(float64(limit))
}

// FetchFinished records the outcome of a dataset fetch.
func (m *Metrics) FetchFinished(result string, duration time.Duration) {
	m.fetchesInFlight.Dec()
	m.fetchesTotal.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(duration.Seconds())
}

// SetDatasetRecords sets the size of the current dataset.
func (m *Metrics) SetDatasetRecords(n int) {
	m.datasetRecords.Set(float64(n))
}

// StreamClientConnected increments the stream client gauge.
func (m *Metrics) StreamClientConnected() {
	m.streamClients.Inc()
}

// StreamClientDisconnected decrements the stream client gauge.
func (m *Metrics) StreamClientDisconnected() {
	m.streamClients.Dec()
}

// SetHealthStatus sets the health status.
func (m *Metrics) SetHealthStatus(healthy bool) {
	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// MetricsServer provides a separate HTTP server for Prometheus metrics.
type MetricsServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewMetricsServer creates a new metrics server.
func NewMetricsServer(port int, path string, gatherer prometheus.Gatherer, logger *zap.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the metrics server.
func (ms *MetricsServer) Start() error {
	ms.logger.Info("starting metrics server", zap.String("addr", ms.server.Addr))
	if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

// MetricsMiddleware creates middleware that records HTTP metrics.
// Paths are labeled with the route template so label cardinality stays bounded.
func MetricsMiddleware(m *Metrics, routeName func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			m.RecordHTTPRequest(r.Method, routeName(r), rw.statusCode, time.Since(start))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code.
func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack supports WebSocket upgrades behind the metrics wrapper.
func (rw *metricsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
