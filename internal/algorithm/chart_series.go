package algorithm

import (
	"fmt"
	"math"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
)

// DefaultChartPoints caps the number of points handed to the chart
const DefaultChartPoints = 100

// ChartPoint is one record prepared for plotting
type ChartPoint struct {
	Index  int     `json:"idx"`
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// PriceStats summarizes the close prices of a chart series
type PriceStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Range float64 `json:"range"`
}

// BuildChartSeries turns a most-recent-first dataset into a chronological
// series holding at most maxPoints of the newest records. Truncation drops
// the oldest records, never the newest, so the last point is always ds[0].
// Reversing the whole dataset and then slicing would keep the oldest window
// instead; that is deliberately not done here.
func BuildChartSeries(ds model.Dataset, maxPoints int) []ChartPoint {
	if maxPoints <= 0 {
		maxPoints = DefaultChartPoints
	}

	n := len(ds)
	if n > maxPoints {
		n = maxPoints
	}

	points := make([]ChartPoint, 0, n)
	// ds[0] is the newest record, so walk ds[n-1]..ds[0]
	for i := n - 1; i >= 0; i-- {
		r := ds[i]
		idx := len(points)
		label := fmt.Sprintf("#%d", idx)
		if !r.OpenTime.IsZero() {
			label = r.OpenTime.UTC().Format("15:04:05")
		}
		points = append(points, ChartPoint{
			Index:  idx,
			Time:   label,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return points
}

// ComputePriceStats returns min/max/avg/range of the close prices rounded to
// cents. An empty series yields all zeros.
func ComputePriceStats(points []ChartPoint) PriceStats {
	if len(points) == 0 {
		return PriceStats{}
	}

	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, p := range points {
		lo = math.Min(lo, p.Close)
		hi = math.Max(hi, p.Close)
		sum += p.Close
	}

	return PriceStats{
		Min:   roundCents(lo),
		Max:   roundCents(hi),
		Avg:   roundCents(sum / float64(len(points))),
		Range: roundCents(hi - lo),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
