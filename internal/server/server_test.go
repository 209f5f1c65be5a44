package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mohi-m/postgres-cluster-monitor/internal/client"
	"github.com/mohi-m/postgres-cluster-monitor/internal/config"
	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClusterAPI serves the two endpoints the dashboard consumes.
func fakeClusterAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"host":"4.155.229.148","up":true,"latency_ms":12},
			{"host":"20.3.208.164","up":true,"latency_ms":35},
			{"host":"20.171.8.192","up":false,"latency_ms":null}
		]`))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":2,"data":[
			{"open_time":"2024-03-01T12:01:00Z","open":"42350.12","high":"42400.5","low":"42300","close":"42380.01","volume":"12.5"},
			{"open_time":"2024-03-01T12:00:00Z","open":"42300","high":"42360.25","low":"42290.75","close":"42350.12","volume":"3"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:         8080,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  time.Minute,
		},
		Cluster: config.ClusterConfig{
			BaseURL:        baseURL,
			RequestTimeout: time.Second,
			Nodes:          config.DefaultNodes(),
		},
		CORS:        config.CORSConfig{AllowedOrigins: []string{"*"}},
		RateLimiter: config.RateLimiterConfig{Enabled: true, RequestsPerSecond: 1000, BurstSize: 1000},
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts, dashboard := startDashboard(t, fakeClusterAPI(t).URL)

	require.Eventually(t, func() bool {
		view := dashboard.View()
		return len(view.Health) == 3 && len(view.Dataset) == 2
	}, 2*time.Second, 10*time.Millisecond)

	return ts
}

func startDashboard(t *testing.T, clusterURL string) (*httptest.Server, *service.DashboardService) {
	t.Helper()
	cfg := testConfig(clusterURL)
	logger := zap.NewNop()
	m := metrics.NewMetrics(prometheus.NewRegistry())

	clusterClient, err := client.NewClusterClient(cfg.Cluster, logger)
	require.NoError(t, err)

	dashboard := service.NewDashboardService(clusterClient, m, logger)
	dashboard.Start()
	t.Cleanup(dashboard.Stop)

	s := NewServer(cfg, dashboard, m, logger)
	s.SetupRoutes()

	ts := httptest.NewServer(s.GetHandler())
	t.Cleanup(ts.Close)
	return ts, dashboard
}

func getJSON(t *testing.T, method, url string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestServer_ViewAfterStartup(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, http.MethodGet, ts.URL+"/v1/view")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	nodes := body["nodes"].([]any)
	require.Len(t, nodes, 3)
	roles := make([]string, 0, 3)
	statuses := make([]string, 0, 3)
	for _, n := range nodes {
		node := n.(map[string]any)
		roles = append(roles, node["role"].(string))
		statuses = append(statuses, node["status"].(string))
	}
	assert.Equal(t, []string{"Primary (Write)", "Secondary 1 (Read)", "Secondary 2 (Read)"}, roles)
	assert.Equal(t, []string{"healthy", "degraded", "down"}, statuses)

	dataset := body["dataset"].(map[string]any)
	assert.Equal(t, 500.0, dataset["limit"])
	assert.Equal(t, 2.0, dataset["count"])
}

func TestServer_ReadyAndLive(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, http.MethodGet, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])

	resp, body = getJSON(t, http.MethodGet, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}

func TestServer_ReadyWhileClusterUnreachable(t *testing.T) {
	var hits atomic.Int32
	clusterAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(clusterAPI.Close)

	ts, dashboard := startDashboard(t, clusterAPI.URL)

	// startup poll and default fetch both failed
	require.Eventually(t, func() bool {
		return hits.Load() >= 2 && !dashboard.View().FetchInFlight
	}, 2*time.Second, 10*time.Millisecond)

	resp, body := getJSON(t, http.MethodGet, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "no successful poll yet", body["checks"].(map[string]any)["cluster_api"])

	resp, body = getJSON(t, http.MethodGet, ts.URL+"/v1/view")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["nodes"])

	resp, body = getJSON(t, http.MethodPost, ts.URL+"/v1/nodes/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body["error_code"])
}

func TestServer_FetchFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, http.MethodPost, ts.URL+"/v1/dataset?limit=999999")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 10000.0, body["limit"])

	resp, body = getJSON(t, http.MethodPost, ts.URL+"/v1/dataset/presets/42")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "PRESET_NOT_FOUND", body["error_code"])

	resp, body = getJSON(t, http.MethodPost, ts.URL+"/v1/nodes/refresh")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["nodes"], 3)

	resp, body = getJSON(t, http.MethodGet, ts.URL+"/v1/dataset/chart")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["points"], 2)
}

func TestServer_ErrorsUseEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, body := getJSON(t, http.MethodGet, ts.URL+"/v2/anything")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error_code"])
	assert.NotEmpty(t, body["request_id"])

	resp, body = getJSON(t, http.MethodPut, ts.URL+"/v1/nodes")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "METHOD_NOT_ALLOWED", body["error_code"])
}

func TestServer_StreamThroughMiddleware(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/view/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var view map[string]any
	require.NoError(t, conn.ReadJSON(&view))
	assert.Len(t, view["nodes"], 3)
}
