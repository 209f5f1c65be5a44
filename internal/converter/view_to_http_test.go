package converter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(v float64) *float64 { return &v }

func newConverter() *ViewToHTTP {
	return NewViewToHTTP(map[string]string{
		"4.155.229.148": "Primary (Write)",
		"20.3.208.164":  "Secondary 1 (Read)",
	})
}

func TestToNodes(t *testing.T) {
	nodes := newConverter().ToNodes([]model.NodeHealth{
		{Host: "4.155.229.148", Up: true, LatencyMs: ms(12)},
		{Host: "20.3.208.164", Up: false},
		{Host: "10.9.9.9", Up: true, LatencyMs: ms(49.5)},
		{Host: "10.9.9.10", Up: true},
	})
	require.Len(t, nodes, 4)

	assert.Equal(t, "Primary (Write)", nodes[0].Role)
	assert.Equal(t, model.StatusHealthy, nodes[0].Status)
	assert.Equal(t, "UP", nodes[0].State)
	assert.Equal(t, "12", nodes[0].LatencyDisplay)

	assert.Equal(t, "Secondary 1 (Read)", nodes[1].Role)
	assert.Equal(t, model.StatusDown, nodes[1].Status)
	assert.Equal(t, "DOWN", nodes[1].State)
	assert.Equal(t, "Connection failed", nodes[1].Message)
	assert.Equal(t, NoLatency, nodes[1].LatencyDisplay)
	assert.Nil(t, nodes[1].LatencyMs)

	assert.Equal(t, UnknownRole, nodes[2].Role)
	assert.Equal(t, model.StatusDegraded, nodes[2].Status)
	assert.Equal(t, "49.5", nodes[2].LatencyDisplay)

	assert.Equal(t, model.StatusHealthy, nodes[3].Status)
	assert.Equal(t, NoLatency, nodes[3].LatencyDisplay)
}

func TestToNodesResponse_Summary(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	resp := newConverter().ToNodesResponse(model.ViewSummary{
		Health: []model.NodeHealth{
			{Host: "a", Up: true, LatencyMs: ms(1)},
			{Host: "b", Up: true, LatencyMs: ms(2)},
			{Host: "c", Up: false},
		},
		LastHealthUpdate: at,
	})

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, map[string]int{"healthy": 2, "degraded": 0, "slow": 0, "down": 1}, resp.Summary)
	assert.Equal(t, "2024-03-01T12:00:00Z", resp.LastHealthUpdate)
}

func TestToViewResponse_EmptyState(t *testing.T) {
	resp := newConverter().ToViewResponse(model.ViewSummary{
		Health: []model.NodeHealth{},
	}, []int{100, 500})

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, []any{}, decoded["nodes"])
	assert.NotContains(t, decoded, "last_health_update")

	dataset := decoded["dataset"].(map[string]any)
	assert.Equal(t, 0.0, dataset["count"])
	assert.Equal(t, false, dataset["fetch_in_flight"])
	assert.NotContains(t, dataset, "last_data_update")
}

func TestToDatasetResponse_FlattensSummary(t *testing.T) {
	resp := newConverter().ToDatasetResponse(model.ViewState{
		Dataset:       model.Dataset{{Close: 3}, {Close: 2}},
		DatasetLimit:  500,
		FetchInFlight: true,
	})

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, 500.0, decoded["limit"])
	assert.Equal(t, 2.0, decoded["count"])
	assert.Equal(t, true, decoded["fetch_in_flight"])
	assert.Len(t, decoded["records"], 2)
}

func TestToChartResponse(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ds := make(model.Dataset, 0, 150)
	for i := 0; i < 150; i++ {
		// most recent first
		ds = append(ds, model.Record{OpenTime: base.Add(-time.Duration(i) * time.Minute), Close: float64(150 - i)})
	}

	resp := newConverter().ToChartResponse(model.ViewState{Dataset: ds})

	require.Len(t, resp.Points, 100)
	assert.Equal(t, 150, resp.Total)
	assert.Equal(t, 51.0, resp.Points[0].Close)
	assert.Equal(t, 150.0, resp.Points[99].Close)
	assert.Equal(t, 51.0, resp.Stats.Min)
	assert.Equal(t, 150.0, resp.Stats.Max)
	assert.Equal(t, 99.0, resp.Stats.Range)
	assert.Equal(t, 100.5, resp.Stats.Avg)
}

func TestLatencyDisplay(t *testing.T) {
	assert.Equal(t, NoLatency, LatencyDisplay(nil))
	assert.Equal(t, "0", LatencyDisplay(ms(0)))
	assert.Equal(t, "12.34", LatencyDisplay(ms(12.34)))
}
