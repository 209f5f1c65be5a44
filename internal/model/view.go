package model

import "time"

// ViewState is a read-only snapshot of the dashboard state
type ViewState struct {
	Health           []NodeHealth `json:"health"`
	Dataset          Dataset      `json:"dataset"`
	FetchInFlight    bool         `json:"fetch_in_flight"`
	LastHealthUpdate time.Time    `json:"last_health_update"`
	LastDataUpdate   time.Time    `json:"last_data_update"`
	DatasetLimit     int          `json:"dataset_limit"` // effective limit of the request that produced Dataset
}

// ViewSummary is a ViewState without the dataset records
type ViewSummary struct {
	Health           []NodeHealth
	DatasetCount     int
	FetchInFlight    bool
	LastHealthUpdate time.Time
	LastDataUpdate   time.Time
	DatasetLimit     int
}

// Summary drops the records of v. Health is shared, not copied.
func (v ViewState) Summary() ViewSummary {
	return ViewSummary{
		Health:           v.Health,
		DatasetCount:     len(v.Dataset),
		FetchInFlight:    v.FetchInFlight,
		LastHealthUpdate: v.LastHealthUpdate,
		LastDataUpdate:   v.LastDataUpdate,
		DatasetLimit:     v.DatasetLimit,
	}
}
