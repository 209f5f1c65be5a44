package service

import (
	"sync"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
)

// ViewStore is the single container of dashboard state.
// Readers get deep-copied snapshots; only the poller and the fetcher mutate it.
type ViewStore struct {
	mu               sync.RWMutex
	health           []model.NodeHealth
	dataset          model.Dataset
	datasetLimit     int
	lastHealthUpdate time.Time
	lastDataUpdate   time.Time
	outstanding      int

	subMu       sync.Mutex
	subscribers map[uint64]chan struct{}
	nextSubID   uint64
}

// NewViewStore creates an empty store
func NewViewStore() *ViewStore {
	return &ViewStore{
		health:      []model.NodeHealth{},
		dataset:     model.Dataset{},
		subscribers: make(map[uint64]chan struct{}),
	}
}

// Snapshot returns a copy of the current state that shares no memory with the store
func (s *ViewStore) Snapshot() model.ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.ViewState{
		Health:           model.CloneNodes(s.health),
		Dataset:          s.dataset.Clone(),
		FetchInFlight:    s.outstanding > 0,
		LastHealthUpdate: s.lastHealthUpdate,
		LastDataUpdate:   s.lastDataUpdate,
		DatasetLimit:     s.datasetLimit,
	}
}

// Summary returns the current state without copying the dataset records
func (s *ViewStore) Summary() model.ViewSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.ViewSummary{
		Health:           model.CloneNodes(s.health),
		DatasetCount:     len(s.dataset),
		FetchInFlight:    s.outstanding > 0,
		LastHealthUpdate: s.lastHealthUpdate,
		LastDataUpdate:   s.lastDataUpdate,
		DatasetLimit:     s.datasetLimit,
	}
}

// Subscribe registers for change signals. Signals are coalesced: a slow
// subscriber sees at most one pending signal. The returned func unsubscribes.
func (s *ViewStore) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
}

func (s *ViewStore) applyHealth(nodes []model.NodeHealth, at time.Time) {
	s.mu.Lock()
	s.health = model.CloneNodes(nodes)
	s.lastHealthUpdate = at
	s.mu.Unlock()

	s.notify()
}

func (s *ViewStore) beginFetch() {
	s.mu.Lock()
	s.outstanding++
	s.mu.Unlock()

	s.notify()
}

func (s *ViewStore) applyDataset(ds model.Dataset, limit int, at time.Time) {
	s.mu.Lock()
	s.dataset = ds.Clone()
	s.datasetLimit = limit
	s.lastDataUpdate = at
	s.finishFetchLocked()
	s.mu.Unlock()

	s.notify()
}

func (s *ViewStore) abandonFetch() {
	s.mu.Lock()
	s.finishFetchLocked()
	s.mu.Unlock()

	s.notify()
}

func (s *ViewStore) finishFetchLocked() {
	if s.outstanding > 0 {
		s.outstanding--
	}
}

func (s *ViewStore) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
