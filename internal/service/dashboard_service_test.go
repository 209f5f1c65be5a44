package service

import (
	"context"
	"testing"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDashboardService_StartPollsAndFetchesDefault(t *testing.T) {
	source := new(MockClusterSource)
	source.On("FetchHealth", mock.Anything).
		Return([]model.NodeHealth{{Host: "10.0.0.1", Up: true, LatencyMs: latency(12)}}, nil)
	source.On("FetchData", mock.Anything, DefaultLimit).Return(sampleDataset(1, 2, 3), nil)

	svc := NewDashboardService(source, newTestMetrics(t), zap.NewNop())
	svc.Start()
	svc.Start()
	defer svc.Stop()

	assert.Eventually(t, func() bool {
		view := svc.View()
		return len(view.Health) == 1 && len(view.Dataset) == 3
	}, time.Second, 5*time.Millisecond)

	assert.True(t, svc.Polling())
	assert.Equal(t, DefaultLimit, svc.View().DatasetLimit)
	assert.Equal(t, 3, svc.Summary().DatasetCount)
	source.AssertNumberOfCalls(t, "FetchData", 1)
}

func TestDashboardService_StopHaltsPolling(t *testing.T) {
	source := new(MockClusterSource)
	source.On("FetchHealth", mock.Anything).Return([]model.NodeHealth{}, nil)
	source.On("FetchData", mock.Anything, mock.Anything).Return(model.Dataset{}, nil)

	svc := NewDashboardService(source, newTestMetrics(t), zap.NewNop())
	svc.Stop()
	svc.Start()
	svc.Stop()
	svc.Stop()

	assert.False(t, svc.Polling())

	svc.Start()
	require.NoError(t, svc.Shutdown(context.Background()))
	assert.False(t, svc.Polling())
	svc.Stop()
}

func TestDashboardService_OperatorRequests(t *testing.T) {
	source := new(MockClusterSource)
	source.On("FetchHealth", mock.Anything).
		Return([]model.NodeHealth{{Host: "10.0.0.3", Up: true, LatencyMs: latency(60)}}, nil)
	source.On("FetchData", mock.Anything, mock.Anything).Return(sampleDataset(4), nil)

	svc := NewDashboardService(source, newTestMetrics(t), zap.NewNop())

	require.NoError(t, svc.RefreshHealth(context.Background()))
	assert.Len(t, svc.View().Health, 1)

	limit, done := svc.Fetch(-10)
	<-done
	assert.Equal(t, 1, limit)

	limit, done = svc.FetchRaw("2500.7")
	<-done
	assert.Equal(t, 2500, limit)
	assert.Equal(t, 2500, svc.View().DatasetLimit)

	done, err := svc.FetchPreset(5000)
	require.NoError(t, err)
	<-done

	_, err = svc.FetchPreset(7)
	assert.ErrorIs(t, err, ErrUnknownPreset)

	presets := svc.Presets()
	presets[0] = 1
	assert.Equal(t, 100, svc.Presets()[0])
}

func TestDashboardService_SubscribeSignalsChanges(t *testing.T) {
	source := new(MockClusterSource)
	source.On("FetchHealth", mock.Anything).Return([]model.NodeHealth{}, nil)

	svc := NewDashboardService(source, newTestMetrics(t), zap.NewNop())
	ch, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	require.NoError(t, svc.RefreshHealth(context.Background()))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}
}
