package service

import (
	"context"
	"sync"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/algorithm"
	apierrors "github.com/mohi-m/postgres-cluster-monitor/internal/errors"
	"github.com/mohi-m/postgres-cluster-monitor/internal/metrics"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"go.uber.org/zap"
)

// PollInterval is the fixed cadence of scheduled health polls
const PollInterval = 10 * time.Second

// HealthSource answers the cluster health query
type HealthSource interface {
	FetchHealth(ctx context.Context) ([]model.NodeHealth, error)
}

// HealthPoller periodically queries node health and applies results to the store.
// Results of polls issued before the latest Start or Stop are dropped.
type HealthPoller struct {
	source   HealthSource
	store    *ViewStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}

	// polls tracks dispatched scheduled polls; Shutdown waits on it
	polls sync.WaitGroup
}

// NewHealthPoller creates a stopped poller
func NewHealthPoller(
	source HealthSource,
	store *ViewStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *HealthPoller {
	return &HealthPoller{
		source:   source,
		store:    store,
		metrics:  m,
		logger:   logger,
		interval: PollInterval,
		now:      time.Now,
	}
}

// Start polls immediately and then once per interval until Stop.
// Starting a running poller is a no-op.
func (p *HealthPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	p.generation++
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("Starting health poller",
		zap.Duration("interval", p.interval),
		zap.Uint64("generation", p.generation))

	go p.run(ctx, p.generation, p.done)
}

// Stop cancels the recurrence and waits for the scheduling loop to exit.
// Polls already in flight complete but their results are discarded.
func (p *HealthPoller) Stop() {
	p.mu.Lock()
	if p.cancel == nil {
		p.mu.Unlock()
		return
	}
	p.generation++
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	cancel()
	<-done

	p.logger.Info("Health poller stopped")
}

// Shutdown stops the poller and waits until dispatched polls have returned
// or ctx is done. Their results are discarded as with Stop.
func (p *HealthPoller) Shutdown(ctx context.Context) error {
	p.Stop()

	finished := make(chan struct{})
	go func() {
		p.polls.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the scheduling loop is active
func (p *HealthPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// PollOnce performs one synchronous health query and applies the result.
// On failure the store is left untouched and the error is returned.
func (p *HealthPoller) PollOnce(ctx context.Context) error {
	return p.poll(ctx, p.currentGeneration())
}

func (p *HealthPoller) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.dispatch(gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.dispatch(gen)
		}
	}
}

// dispatch runs one poll on its own goroutine so a slow query never delays the next tick
func (p *HealthPoller) dispatch(gen uint64) {
	p.polls.Add(1)
	go func() {
		defer p.polls.Done()
		// the client's request timeout bounds the query; Stop does not cancel it
		_ = p.poll(context.Background(), gen)
	}()
}

func (p *HealthPoller) poll(ctx context.Context, gen uint64) error {
	start := time.Now()
	nodes, err := p.source.FetchHealth(ctx)
	duration := time.Since(start)

	if err != nil {
		kind := apierrors.CodeOf(err).String()
		p.metrics.RecordHealthPoll(kind, duration)
		p.logger.Warn("Health poll failed, keeping previous node state",
			zap.String("kind", kind),
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}

	// the generation check and the apply happen under one lock so Stop
	// cannot slip between them
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		p.metrics.RecordHealthPoll(metrics.ResultDiscarded, duration)
		p.logger.Debug("Discarding health poll from stopped poller",
			zap.Uint64("generation", gen))
		return nil
	}
	at := p.now()
	p.store.applyHealth(nodes, at)
	p.mu.Unlock()

	statuses := make(map[string]model.StatusCategory, len(nodes))
	for _, n := range nodes {
		statuses[n.Host] = algorithm.ClassifyNode(n)
	}
	p.metrics.RecordHealthPoll(metrics.ResultSuccess, duration)
	p.metrics.SetNodeStatuses(statuses, at)

	p.logger.Debug("Health poll applied",
		zap.Int("nodes", len(nodes)),
		zap.Duration("duration", duration))
	return nil
}

func (p *HealthPoller) currentGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}
