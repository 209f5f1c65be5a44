package model

import "time"

// Record is one OHLCV sample of the historical dataset
type Record struct {
	OpenTime time.Time `json:"open_time"` // zero when the source had no timestamp
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Dataset is a bounded slice of records, most recent first as delivered by the source
type Dataset []Record

// Clone returns a copy of the dataset
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	copy(out, d)
	return out
}
