package jobs

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/govreposcrape/govsearch/internal/ingest"
)

// ErrIngestRunning is returned when a tick arrives while the previous run
// is still going.
var ErrIngestRunning = errors.New("ingest already running")

// FeedRunner runs one ingestion pass over the feed
type FeedRunner interface {
	RunFeed(ctx context.Context, opts ingest.Options) (ingest.Stats, error)
}

// IngestJob runs the ingestion pipeline as a scheduled job. Overlapping
// runs are skipped.
type IngestJob struct {
	runner  FeedRunner
	opts    ingest.Options
	running atomic.Bool
	last    atomic.Pointer[ingest.Stats]
}

func NewIngestJob(runner FeedRunner, opts ingest.Options) *IngestJob {
	return &IngestJob{runner: runner, opts: opts}
}

// ProcessJobs implements JobProcessor
func (j *IngestJob) ProcessJobs(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrIngestRunning
	}
	defer j.running.Store(false)

	stats, err := j.runner.RunFeed(ctx, j.opts)
	if err != nil {
		return err
	}
	j.last.Store(&stats)
	return nil
}

// LastStats returns the stats of the last completed run, or nil.
func (j *IngestJob) LastStats() *ingest.Stats {
	return j.last.Load()
}
