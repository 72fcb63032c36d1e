package jobs

import (
	"context"
	"log/slog"
	"time"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	runAtStart   bool
	logger       *slog.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

type WorkerOption func(*Worker)

// RunAtStart makes the worker process once before the first tick.
func RunAtStart() WorkerOption {
	return func(w *Worker) { w.runAtStart = true }
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration, opts ...WorkerOption) *Worker {
	w := &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		logger:       slog.Default(),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the worker's polling loop and blocks until stopped
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	w.logger.Info("worker started", slog.Duration("interval", w.pollInterval))

	if w.runAtStart {
		w.process(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", slog.String("reason", "context cancelled"))
			return
		case <-w.stopChan:
			w.logger.Info("worker stopped", slog.String("reason", "stop signal"))
			return
		case <-ticker.C:
			w.process(ctx)
		}
	}
}

func (w *Worker) process(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		w.logger.Error("job failed", slog.String("error", err.Error()))
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
