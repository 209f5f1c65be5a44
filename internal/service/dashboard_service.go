// Package service holds the dashboard state and the components that update it.
package service

import (
	"context"
	"sync"

	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"go.uber.org/zap"
)

// ClusterSource is the cluster API as seen by the dashboard
type ClusterSource interface {
	HealthSource
	DataSource
}

// DashboardService owns the view state and orchestrates the poller and the fetcher
type DashboardService struct {
	store   *ViewStore
	poller  *HealthPoller
	fetcher *DatasetFetcher
	logger  *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewDashboardService creates a dashboard service backed by source
func NewDashboardService(source ClusterSource, m *metrics.Metrics, logger *zap.Logger) *DashboardService {
	store := NewViewStore()
	return &DashboardService{
		store:   store,
		poller:  NewHealthPoller(source, store, m, logger),
		fetcher: NewDatasetFetcher(source, store, m, logger),
		logger:  logger,
	}
}

// Start begins health polling and issues the initial dataset fetch
func (s *DashboardService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	s.logger.Info("Starting dashboard service")
	s.poller.Start()
	s.fetcher.Fetch(DefaultLimit)
}

// Stop halts health polling. Outstanding fetches still resolve.
func (s *DashboardService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false

	s.poller.Stop()
	s.logger.Info("Dashboard service stopped")
}

// Shutdown stops polling and waits for in-flight polls until ctx is done.
func (s *DashboardService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	if err := s.poller.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("Dashboard service shut down")
	return nil
}

// View returns a snapshot of the current state
func (s *DashboardService) View() model.ViewState {
	return s.store.Snapshot()
}

// Summary returns the current state without the dataset records
func (s *DashboardService) Summary() model.ViewSummary {
	return s.store.Summary()
}

// Subscribe returns a channel signalled after every state change
func (s *DashboardService) Subscribe() (<-chan struct{}, func()) {
	return s.store.Subscribe()
}

// Polling reports whether scheduled health polls are running
func (s *DashboardService) Polling() bool {
	return s.poller.Running()
}

// RefreshHealth runs one health poll immediately
func (s *DashboardService) RefreshHealth(ctx context.Context) error {
	return s.poller.PollOnce(ctx)
}

// Fetch requests a dataset of up to requested records and returns the effective limit
func (s *DashboardService) Fetch(requested int) (int, <-chan struct{}) {
	return EffectiveLimit(requested), s.fetcher.Fetch(requested)
}

// FetchRaw requests a dataset sized by operator text and returns the effective limit
func (s *DashboardService) FetchRaw(raw string) (int, <-chan struct{}) {
	limit := ParseLimit(raw)
	return limit, s.fetcher.Fetch(limit)
}

// FetchPreset requests a dataset of one of the preset sizes
func (s *DashboardService) FetchPreset(limit int) (<-chan struct{}, error) {
	return s.fetcher.FetchPreset(limit)
}

// Presets returns the preset dataset sizes
func (s *DashboardService) Presets() []int {
	out := make([]int, len(Presets))
	copy(out, Presets)
	return out
}
