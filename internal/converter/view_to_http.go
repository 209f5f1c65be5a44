// Package converter turns dashboard snapshots into HTTP response payloads.
package converter

import (
	"strconv"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/algorithm"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
)

const (
	// UnknownRole labels a node missing from the configured layout
	UnknownRole = "Unknown"
	// NoLatency is shown when a node has no measured latency
	NoLatency = "--"
)

// ViewToHTTP converts snapshots into HTTP responses.
type ViewToHTTP struct {
	roleLabels map[string]string
}

// NewViewToHTTP creates a converter that labels nodes with roleLabels.
func NewViewToHTTP(roleLabels map[string]string) *ViewToHTTP {
	labels := make(map[string]string, len(roleLabels))
	for host, role := range roleLabels {
		labels[host] = role
	}
	return &ViewToHTTP{roleLabels: labels}
}

// NodeHTTP is one node card.
type NodeHTTP struct {
	Host           string               `json:"host"`
	Role           string               `json:"role"`
	Up             bool                 `json:"up"`
	State          string               `json:"state"`
	Message        string               `json:"message"`
	Status         model.StatusCategory `json:"status"`
	LatencyMs      *float64             `json:"latency_ms"`
	LatencyDisplay string               `json:"latency_display"`
}

// NodesHTTPResponse represents the HTTP response for the node list.
type NodesHTTPResponse struct {
	Status           string         `json:"status"`
	Nodes            []NodeHTTP     `json:"nodes"`
	Summary          map[string]int `json:"summary"`
	LastHealthUpdate string         `json:"last_health_update,omitempty"`
}

// DatasetSummaryHTTP describes the dataset without its records.
type DatasetSummaryHTTP struct {
	Limit          int    `json:"limit"`
	Count          int    `json:"count"`
	FetchInFlight  bool   `json:"fetch_in_flight"`
	LastDataUpdate string `json:"last_data_update,omitempty"`
}

// DatasetHTTPResponse represents the HTTP response for the full dataset.
type DatasetHTTPResponse struct {
	Status string `json:"status"`
	DatasetSummaryHTTP
	Records []model.Record `json:"records"`
}

// ViewHTTPResponse represents the HTTP response for the whole dashboard.
type ViewHTTPResponse struct {
	Status           string             `json:"status"`
	Nodes            []NodeHTTP         `json:"nodes"`
	Summary          map[string]int     `json:"summary"`
	LastHealthUpdate string             `json:"last_health_update,omitempty"`
	Dataset          DatasetSummaryHTTP `json:"dataset"`
	Presets          []int              `json:"presets"`
}

// ChartHTTPResponse represents the HTTP response for the chart panel.
type ChartHTTPResponse struct {
	Status string                 `json:"status"`
	Points []algorithm.ChartPoint `json:"points"`
	Stats  algorithm.PriceStats   `json:"stats"`
	Total  int                    `json:"total"`
}

// FetchAcceptedHTTPResponse represents the HTTP response for an issued fetch.
type FetchAcceptedHTTPResponse struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
}

// PresetsHTTPResponse represents the HTTP response for the preset list.
type PresetsHTTPResponse struct {
	Status       string `json:"status"`
	Presets      []int  `json:"presets"`
	DefaultLimit int    `json:"default_limit"`
	MinLimit     int    `json:"min_limit"`
	MaxLimit     int    `json:"max_limit"`
}

// ToNodes converts node health into node cards, classifying each node.
func (c *ViewToHTTP) ToNodes(health []model.NodeHealth) []NodeHTTP {
	nodes := make([]NodeHTTP, 0, len(health))
	for _, n := range health {
		node := NodeHTTP{
			Host:           n.Host,
			Role:           c.Role(n.Host),
			Up:             n.Up,
			State:          "DOWN",
			Message:        "Connection failed",
			Status:         algorithm.ClassifyNode(n),
			LatencyDisplay: LatencyDisplay(n.LatencyMs),
		}
		if n.Up {
			node.State = "UP"
			node.Message = "Responding normally"
		}
		if n.LatencyMs != nil {
			v := *n.LatencyMs
			node.LatencyMs = &v
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Role returns the configured label of host.
func (c *ViewToHTTP) Role(host string) string {
	if role, ok := c.roleLabels[host]; ok {
		return role
	}
	return UnknownRole
}

// ToNodesResponse converts a summary into the node list response.
func (c *ViewToHTTP) ToNodesResponse(summary model.ViewSummary) *NodesHTTPResponse {
	nodes := c.ToNodes(summary.Health)
	return &NodesHTTPResponse{
		Status:           "success",
		Nodes:            nodes,
		Summary:          summarize(nodes),
		LastHealthUpdate: formatTime(summary.LastHealthUpdate),
	}
}

// ToDatasetResponse converts a snapshot into the dataset response.
func (c *ViewToHTTP) ToDatasetResponse(view model.ViewState) *DatasetHTTPResponse {
	return &DatasetHTTPResponse{
		Status:             "success",
		DatasetSummaryHTTP: datasetSummary(view.Summary()),
		Records:            view.Dataset,
	}
}

// ToViewResponse converts a summary into the dashboard response.
func (c *ViewToHTTP) ToViewResponse(summary model.ViewSummary, presets []int) *ViewHTTPResponse {
	nodes := c.ToNodes(summary.Health)
	return &ViewHTTPResponse{
		Status:           "success",
		Nodes:            nodes,
		Summary:          summarize(nodes),
		LastHealthUpdate: formatTime(summary.LastHealthUpdate),
		Dataset:          datasetSummary(summary),
		Presets:          presets,
	}
}

// ToChartResponse builds the chart series and close price stats of a snapshot.
func (c *ViewToHTTP) ToChartResponse(view model.ViewState) *ChartHTTPResponse {
	points := algorithm.BuildChartSeries(view.Dataset, algorithm.DefaultChartPoints)
	return &ChartHTTPResponse{
		Status: "success",
		Points: points,
		Stats:  algorithm.ComputePriceStats(points),
		Total:  len(view.Dataset),
	}
}

// LatencyDisplay renders a latency for display, or NoLatency when absent.
func LatencyDisplay(latencyMs *float64) string {
	if latencyMs == nil {
		return NoLatency
	}
	return strconv.FormatFloat(*latencyMs, 'f', -1, 64)
}

func summarize(nodes []NodeHTTP) map[string]int {
	summary := map[string]int{
		string(model.StatusHealthy):  0,
		string(model.StatusDegraded): 0,
		string(model.StatusSlow):     0,
		string(model.StatusDown):     0,
	}
	for _, n := range nodes {
		summary[string(n.Status)]++
	}
	return summary
}

func datasetSummary(summary model.ViewSummary) DatasetSummaryHTTP {
	return DatasetSummaryHTTP{
		Limit:          summary.DatasetLimit,
		Count:          summary.DatasetCount,
		FetchInFlight:  summary.FetchInFlight,
		LastDataUpdate: formatTime(summary.LastDataUpdate),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
