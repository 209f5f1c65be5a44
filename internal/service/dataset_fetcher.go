package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohi-m/postgres-cluster-monitor/internal/client"
	apierrors "github.com/mohi-m/postgres-cluster-monitor/internal/errors"
	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"go.uber.org/zap"
)

const (
	// DefaultLimit is used at startup and for operator input that is not a number
	DefaultLimit = 500
	// MinLimit and MaxLimit bound every issued data query
	MinLimit = client.MinLimit
	MaxLimit = client.MaxLimit
)

// ErrUnknownPreset is returned by FetchPreset for a limit outside Presets
var ErrUnknownPreset = errors.New("unknown dataset preset")

// Presets are the quick-select dataset sizes offered to the operator
var Presets = []int{100, 500, 1000, 5000, 10000}

// DataSource answers the cluster data query
type DataSource interface {
	FetchData(ctx context.Context, limit int) (model.Dataset, error)
}

// EffectiveLimit clamps a requested limit into [MinLimit, MaxLimit]
func EffectiveLimit(requested int) int {
	return max(MinLimit, min(MaxLimit, requested))
}

// ParseLimit turns operator text into an effective limit. Integer text is
// used as is, decimal text is truncated toward zero and anything else
// falls back to DefaultLimit. The result is always clamped.
func ParseLimit(raw string) int {
	text := strings.TrimSpace(raw)

	if n, err := strconv.Atoi(text); err == nil {
		return EffectiveLimit(n)
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultLimit
	}
	// clamp in float space so huge values cannot overflow int
	f = math.Trunc(f)
	if f < MinLimit {
		return MinLimit
	}
	if f > MaxLimit {
		return MaxLimit
	}
	return int(f)
}

// IsPreset reports whether limit is one of Presets
func IsPreset(limit int) bool {
	for _, p := range Presets {
		if p == limit {
			return true
		}
	}
	return false
}

// DatasetFetcher issues bounded data queries on operator request.
// Concurrent fetches are allowed and the last one to resolve wins.
type DatasetFetcher struct {
	source  DataSource
	store   *ViewStore
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewDatasetFetcher creates a new dataset fetcher
func NewDatasetFetcher(source DataSource, store *ViewStore, m *metrics.Metrics, logger *zap.Logger) *DatasetFetcher {
	return &DatasetFetcher{
		source:  source,
		store:   store,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Fetch clamps requested, marks a fetch in flight and runs the query in the
// background. The returned channel is closed once the result has been applied
// or discarded.
func (f *DatasetFetcher) Fetch(requested int) <-chan struct{} {
	limit := EffectiveLimit(requested)
	fetchID := uuid.NewString()

	f.store.beginFetch()
	f.metrics.FetchStarted(limit)

	f.logger.Info("Fetching dataset",
		zap.String("fetch_id", fetchID),
		zap.Int("requested", requested),
		zap.Int("limit", limit))

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.run(fetchID, limit)
	}()
	return done
}

// FetchRaw fetches using operator text parsed by ParseLimit
func (f *DatasetFetcher) FetchRaw(raw string) <-chan struct{} {
	return f.Fetch(ParseLimit(raw))
}

// FetchPreset fetches one of Presets
func (f *DatasetFetcher) FetchPreset(limit int) (<-chan struct{}, error) {
	if !IsPreset(limit) {
		return nil, ErrUnknownPreset
	}
	return f.Fetch(limit), nil
}

func (f *DatasetFetcher) run(fetchID string, limit int) {
	start := time.Now()
	ds, err := f.source.FetchData(context.Background(), limit)
	duration := time.Since(start)

	if err != nil {
		f.store.abandonFetch()
		kind := apierrors.CodeOf(err).String()
		f.metrics.FetchFinished(kind, duration)
		f.logger.Warn("Dataset fetch failed, keeping previous dataset",
			zap.String("fetch_id", fetchID),
			zap.Int("limit", limit),
			zap.String("kind", kind),
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	f.store.applyDataset(ds, limit, f.now())
	f.metrics.FetchFinished(metrics.ResultSuccess, duration)
	f.metrics.SetDatasetRecords(len(ds))

	f.logger.Info("Dataset fetch applied",
		zap.String("fetch_id", fetchID),
		zap.Int("limit", limit),
		zap.Int("records", len(ds)),
		zap.Duration("duration", duration))
}
