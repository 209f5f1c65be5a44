package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

// MockClusterSource is a mock implementation of ClusterSource
type MockClusterSource struct {
	mock.Mock
}

func (m *MockClusterSource) FetchHealth(ctx context.Context) ([]model.NodeHealth, error) {
	args := m.Called(ctx)
	nodes, _ := args.Get(0).([]model.NodeHealth)
	return nodes, args.Error(1)
}

func (m *MockClusterSource) FetchData(ctx context.Context, limit int) (model.Dataset, error) {
	args := m.Called(ctx, limit)
	ds, _ := args.Get(0).(model.Dataset)
	return ds, args.Error(1)
}

type healthReply struct {
	nodes []model.NodeHealth
	err   error
}

// blockingHealthSource hands each call's reply channel to the test, which
// decides when and with what the call resolves
type blockingHealthSource struct {
	started chan chan healthReply
}

func newBlockingHealthSource() *blockingHealthSource {
	return &blockingHealthSource{started: make(chan chan healthReply, 8)}
}

func (s *blockingHealthSource) FetchHealth(ctx context.Context) ([]model.NodeHealth, error) {
	reply := make(chan healthReply, 1)
	s.started <- reply
	r := <-reply
	return r.nodes, r.err
}

type dataReply struct {
	ds  model.Dataset
	err error
}

type blockingDataSource struct {
	started chan chan dataReply
}

func newBlockingDataSource() *blockingDataSource {
	return &blockingDataSource{started: make(chan chan dataReply, 8)}
}

func (s *blockingDataSource) FetchData(ctx context.Context, limit int) (model.Dataset, error) {
	reply := make(chan dataReply, 1)
	s.started <- reply
	r := <-reply
	return r.ds, r.err
}

type countingHealthSource struct {
	calls atomic.Int32
	nodes []model.NodeHealth
}

func (s *countingHealthSource) FetchHealth(ctx context.Context) ([]model.NodeHealth, error) {
	s.calls.Add(1)
	return s.nodes, nil
}

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func latency(v float64) *float64 { return &v }
