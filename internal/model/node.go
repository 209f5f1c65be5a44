package model

// StatusCategory is the classification of a node derived from its last probe
type StatusCategory string

const (
	// StatusDown indicates the last probe failed
	StatusDown StatusCategory = "down"
	// StatusHealthy indicates a round trip under the healthy threshold
	StatusHealthy StatusCategory = "healthy"
	// StatusDegraded indicates a round trip under the degraded threshold
	StatusDegraded StatusCategory = "degraded"
	// StatusSlow indicates a reachable node at or above the degraded threshold
	StatusSlow StatusCategory = "slow"
)

// NodeHealth is one cluster node's observed status at the last poll
type NodeHealth struct {
	Host      string   `json:"host"`
	Up        bool     `json:"up"`
	LatencyMs *float64 `json:"latency_ms"` // nil when the node is down or unmeasured
}

// Clone returns a copy that shares no memory with n
func (n NodeHealth) Clone() NodeHealth {
	out := NodeHealth{Host: n.Host, Up: n.Up}
	if n.LatencyMs != nil {
		v := *n.LatencyMs
		out.LatencyMs = &v
	}
	return out
}

// CloneNodes deep-copies a poll result
func CloneNodes(nodes []NodeHealth) []NodeHealth {
	out := make([]NodeHealth, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// NodeRole maps a node host to the label the operator knows it by
type NodeRole struct {
	Host string `json:"host" mapstructure:"host"`
	Role string `json:"role" mapstructure:"role"`
}
