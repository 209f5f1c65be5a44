package algorithm

import "github.com/mohi-m/postgres-cluster-monitor/internal/model"

const (
	// HealthyLatencyMs is the exclusive upper bound for a healthy round trip
	HealthyLatencyMs = 20.0
	// DegradedLatencyMs is the exclusive upper bound for a degraded round trip
	DegradedLatencyMs = 50.0
)

// Classify maps a node's liveness and latency into a status category.
// Rules are evaluated in order and the first match wins. A reachable node
// reported with a null latency counts as healthy, the way the dashboard
// has always rendered it.
func Classify(up bool, latencyMs *float64) model.StatusCategory {
	if !up {
		return model.StatusDown
	}
	if latencyMs == nil {
		return model.StatusHealthy
	}

	switch l := *latencyMs; {
	case l < HealthyLatencyMs:
		return model.StatusHealthy
	case l < DegradedLatencyMs:
		return model.StatusDegraded
	default:
		return model.StatusSlow
	}
}

// ClassifyNode is Classify applied to a poll entry
func ClassifyNode(n model.NodeHealth) model.StatusCategory {
	return Classify(n.Up, n.LatencyMs)
}
