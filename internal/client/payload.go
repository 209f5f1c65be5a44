package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/shopspring/decimal"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds
const epochMillisThreshold = 1e12

// Numeric open times must fall within years 0001 through 9999
const (
	minEpochSeconds = -62135596800
	endEpochSeconds = 253402300800
)

var openTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
}

type wireNode struct {
	Host      *string  `json:"host"`
	Up        *bool    `json:"up"`
	LatencyMs *float64 `json:"latency_ms"`
}

type wireDataResponse struct {
	Count *int       `json:"count"`
	Data  *[]wireRow `json:"data"`
}

type wireRow struct {
	OpenTime json.RawMessage `json:"open_time"`
	Open     json.RawMessage `json:"open"`
	High     json.RawMessage `json:"high"`
	Low      json.RawMessage `json:"low"`
	Close    json.RawMessage `json:"close"`
	Volume   json.RawMessage `json:"volume"`
}

// decodeHealth validates a /health body and converts it to NodeHealth entries
func decodeHealth(body []byte) ([]model.NodeHealth, error) {
	var wire []wireNode
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("expected array of nodes: %w", err)
	}
	if wire == nil {
		return nil, fmt.Errorf("expected array of nodes, got null")
	}

	nodes := make([]model.NodeHealth, 0, len(wire))
	seen := make(map[string]bool, len(wire))
	for i, w := range wire {
		if w.Host == nil || strings.TrimSpace(*w.Host) == "" {
			return nil, fmt.Errorf("node %d: missing host", i)
		}
		host := *w.Host
		if seen[host] {
			return nil, fmt.Errorf("node %d: duplicate host %s", i, host)
		}
		seen[host] = true

		if w.Up == nil {
			return nil, fmt.Errorf("node %s: missing up", host)
		}

		n := model.NodeHealth{Host: host, Up: *w.Up}
		// a down node never carries a latency
		if n.Up && w.LatencyMs != nil {
			if *w.LatencyMs < 0 {
				return nil, fmt.Errorf("node %s: negative latency %v", host, *w.LatencyMs)
			}
			v := *w.LatencyMs
			n.LatencyMs = &v
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// decodeData validates a /data body and converts its rows to records
func decodeData(body []byte, limit int) (model.Dataset, error) {
	var wire wireDataResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("expected data object: %w", err)
	}
	if wire.Data == nil {
		return nil, fmt.Errorf("missing data field")
	}

	rows := *wire.Data
	if len(rows) > limit {
		return nil, fmt.Errorf("got %d rows for limit %d", len(rows), limit)
	}
	if wire.Count != nil && *wire.Count != len(rows) {
		return nil, fmt.Errorf("count %d does not match %d rows", *wire.Count, len(rows))
	}

	ds := make(model.Dataset, 0, len(rows))
	for i, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		ds = append(ds, rec)
	}
	return ds, nil
}

func decodeRow(row wireRow) (model.Record, error) {
	var (
		rec model.Record
		err error
	)

	if rec.OpenTime, err = parseOpenTime(row.OpenTime); err != nil {
		return rec, fmt.Errorf("open_time: %w", err)
	}

	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *float64
	}{
		{"open", row.Open, &rec.Open},
		{"high", row.High, &rec.High},
		{"low", row.Low, &rec.Low},
		{"close", row.Close, &rec.Close},
		{"volume", row.Volume, &rec.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = parseNumeric(f.raw); err != nil {
			return rec, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return rec, nil
}

// parseNumeric accepts a JSON number or a numeric string and returns a finite float
func parseNumeric(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing")
	}
	if bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("null")
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("invalid string: %w", err)
		}
		text = strings.TrimSpace(text)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return 0, fmt.Errorf("not numeric: %q", text)
	}

	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not finite: %q", text)
	}
	return f, nil
}

// parseOpenTime accepts an ISO-8601 string, epoch seconds or epoch
// milliseconds. JSON null yields the zero time.
func parseOpenTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return time.Time{}, fmt.Errorf("missing")
	}
	if bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("invalid string: %w", err)
		}
		s = strings.TrimSpace(s)
		for _, layout := range openTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}

	epoch, err := parseNumeric(raw)
	if err != nil {
		return time.Time{}, err
	}
	if epoch > epochMillisThreshold {
		if epoch >= endEpochSeconds*1e3 {
			return time.Time{}, fmt.Errorf("epoch milliseconds out of range: %v", epoch)
		}
		return time.UnixMilli(int64(epoch)).UTC(), nil
	}
	if epoch < minEpochSeconds || epoch >= endEpochSeconds {
		return time.Time{}, fmt.Errorf("epoch seconds out of range: %v", epoch)
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
