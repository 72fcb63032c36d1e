package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/retry"
)

// MockBackend mocks the search backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Query(ctx context.Context, q domain.BackendQuery) (*domain.BackendResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BackendResult), args.Error(1)
}

// MockMetadataStore mocks the object store metadata reader
type MockMetadataStore struct {
	mock.Mock
}

func (m *MockMetadataStore) GetMetadata(ctx context.Context, key string) (*domain.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ObjectMetadata), args.Error(1)
}

// recordingTimer fires immediately and remembers requested delays.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (r *recordingTimer) Start(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	r.c <- time.Now()
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time { return r.c }

func (r *recordingTimer) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestExecutor(rec events.Emitter) (*retry.Executor, *recordingTimer) {
	timer := newRecordingTimer()
	return retry.NewExecutor(retry.DefaultConfig(), rec, retry.WithTimer(func() retry.Timer { return timer })), timer
}

// steppingClock advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := t
		t = t.Add(step)
		return now
	}
}
