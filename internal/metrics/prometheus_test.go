package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetHealthStatus(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthStatus))

	// a second set of metrics on the same registry collides
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestRecordHealthPoll(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHealthPoll(ResultSuccess, 10*time.Millisecond)
	m.RecordHealthPoll("transport", time.Second)
	m.RecordHealthPoll("transport", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthPollsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.healthPollsTotal.WithLabelValues("transport")))
}

func TestSetNodeStatuses_ReplacesSeries(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	at := time.Unix(1709294400, 0)

	m.SetNodeStatuses(map[string]model.StatusCategory{
		"10.0.0.1": model.StatusHealthy,
		"10.0.0.2": model.StatusSlow,
	}, at)
	m.SetNodeStatuses(map[string]model.StatusCategory{
		"10.0.0.1": model.StatusDown,
	}, at)

	assert.Equal(t, 1, testutil.CollectAndCount(m.nodeStatus))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodeStatus.WithLabelValues("10.0.0.1", "down")))
	assert.Equal(t, 1709294400.0, testutil.ToFloat64(m.lastHealthUpdate))
}

func TestFetchLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.FetchStarted(500)
	m.FetchStarted(100)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetchesInFlight))

	m.FetchFinished(ResultSuccess, 20*time.Millisecond)
	m.FetchFinished("malformed_payload", 20*time.Millisecond)
	m.SetDatasetRecords(500)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.fetchesInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchesTotal.WithLabelValues("malformed_payload")))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.datasetRecords))
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := MetricsMiddleware(m, func(r *http.Request) string { return "/v1/dataset/presets/{limit}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/dataset/presets/7", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.requestsTotal.WithLabelValues(http.MethodPost, "/v1/dataset/presets/{limit}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight))
}

func TestMetricsServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.StreamClientConnected()

	ms := NewMetricsServer(0, "/metrics", reg, nil)
	rec := httptest.NewRecorder()
	ms.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cluster_monitor_stream_clients 1"))
}
