package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/retry"
	"github.com/govreposcrape/govsearch/internal/storage"
	"github.com/govreposcrape/govsearch/internal/telemetry"
)

const DefaultProgressEvery = 100

// ObjectStore is the part of the object store the pipeline writes to.
type ObjectStore interface {
	ObjectProber
	PutObject(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) error
}

// Indexer adds a summary to a self-hosted search index.
type Indexer interface {
	Index(ctx context.Context, doc domain.SummaryDocument) error
}

type FeedSource interface {
	Fetch(ctx context.Context) ([]Repository, error)
}

type Options struct {
	BatchSize int
	Offset    int
	// Limit caps the repositories taken from this batch. Zero means all.
	Limit  int
	DryRun bool
}

// Stats counts pipeline outcomes for one run
type Stats struct {
	Total     int
	Cached    int
	Processed int
	Failed    int
	Elapsed   time.Duration
}

func (s Stats) Done() int {
	return s.Cached + s.Processed + s.Failed
}

// CacheHitRate is the share of handled repositories skipped by the cache
// gate, as a percentage.
func (s Stats) CacheHitRate() float64 {
	done := s.Done()
	if done == 0 {
		return 0
	}
	return float64(s.Cached) / float64(done) * 100
}

type PipelineConfig struct {
	Feed       FeedSource
	Store      ObjectStore
	Summarizer Summarizer
	Languages  LanguageSource
	// Indexer is nil when the search backend indexes on its own.
	Indexer       Indexer
	Retry         *retry.Executor
	Events        events.Emitter
	ProgressEvery int
}

// Pipeline runs fetch, partition, cache gate, summarise, index and upload
// for one batch of the feed. One repository failing never stops the batch.
type Pipeline struct {
	feed          FeedSource
	store         ObjectStore
	gate          *CacheGate
	summarizer    Summarizer
	languages     LanguageSource
	indexer       Indexer
	retry         *retry.Executor
	events        events.Emitter
	progressEvery int
	now           func() time.Time
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	emitter := events.OrNop(cfg.Events)
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if cfg.Languages == nil {
		cfg.Languages = NewOfflineLanguageDetector()
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.NewExecutor(retry.DefaultConfig(), emitter)
	}
	return &Pipeline{
		feed:          cfg.Feed,
		store:         cfg.Store,
		gate:          NewCacheGate(cfg.Store, emitter),
		summarizer:    cfg.Summarizer,
		languages:     cfg.Languages,
		indexer:       cfg.Indexer,
		retry:         cfg.Retry,
		events:        emitter,
		progressEvery: cfg.ProgressEvery,
		now:           time.Now,
	}
}

// RunFeed fetches the feed and runs the selected batch.
func (p *Pipeline) RunFeed(ctx context.Context, opts Options) (Stats, error) {
	if err := ValidatePartition(opts.BatchSize, opts.Offset); err != nil {
		return Stats{}, err
	}
	repos, err := p.feed.Fetch(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to fetch feed: %w", err)
	}
	return p.Run(ctx, repos, opts)
}

// Run processes the batch of repos selected by opts. It returns an error
// only for invalid options or cancellation.
func (p *Pipeline) Run(ctx context.Context, repos []Repository, opts Options) (Stats, error) {
	start := p.now()

	batch, err := Partition(repos, opts.BatchSize, opts.Offset)
	if err != nil {
		return Stats{}, err
	}
	batch = Limit(batch, opts.Limit)

	ctx, span := telemetry.StartTransaction(ctx, "ingest batch", "ingest.run")
	defer span.End()
	span.SetData("assigned", len(batch))

	stats := Stats{Total: len(batch)}
	p.events.Emit(ctx, events.Event{
		Kind:      events.IngestProgress,
		Level:     slog.LevelInfo,
		Component: "ingest",
		Message:   "batch selected",
		Fields: map[string]any{
			"feed_total": len(repos),
			"batch_size": opts.BatchSize,
			"offset":     opts.Offset,
			"assigned":   len(batch),
			"dry_run":    opts.DryRun,
		},
	})

	for i, repo := range batch {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = p.now().Sub(start)
			p.summary(ctx, stats, opts)
			return stats, err
		}

		switch p.processOne(ctx, repo, opts.DryRun) {
		case outcomeCached:
			stats.Cached++
		case outcomeProcessed:
			stats.Processed++
		default:
			stats.Failed++
		}

		if (i+1)%p.progressEvery == 0 {
			stats.Elapsed = p.now().Sub(start)
			p.progress(ctx, stats, opts)
		}
	}

	stats.Elapsed = p.now().Sub(start)
	span.SetData("failed", stats.Failed)
	p.summary(ctx, stats, opts)
	return stats, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeCached
	outcomeProcessed
)

func (p *Pipeline) processOne(ctx context.Context, repo Repository, dryRun bool) outcome {
	org, name, err := repo.Identity()
	if err != nil {
		p.repoFailed(ctx, repo.URL, "identity", err)
		return outcomeFailed
	}
	full := org + "/" + name

	decision := p.gate.Check(ctx, org, name, repo.PushedAt)
	if !decision.Reprocess {
		return outcomeCached
	}

	if dryRun {
		p.events.Emit(ctx, events.Event{
			Kind:      events.RepoProcessed,
			Level:     slog.LevelInfo,
			Component: "ingest",
			Message:   "dry run, would process repository",
			Fields:    map[string]any{"repository": full, "reason": decision.Reason},
		})
		return outcomeProcessed
	}

	ctx, span := telemetry.StartSpan(ctx, "ingest.repo", telemetry.SpanAttributes{Repository: full, Operation: "ingest"})
	defer span.End()

	began := p.now()
	summary, err := retry.Execute(ctx, p.retry, "summarize_repo", func(ctx context.Context) (*Summary, error) {
		s, err := p.summarizer.Summarize(ctx, full, repo.URL)
		if errors.Is(err, ErrSummarizeTimeout) {
			return nil, retry.Permanent(err)
		}
		return s, err
	})
	if err != nil {
		p.repoFailed(ctx, full, "summarize", err)
		return outcomeFailed
	}

	language := p.languages.Detect(ctx, org, name, summary.Files)
	key := storage.SummaryKey(org, name)
	body := []byte(summary.Content)

	// The uploaded object is the cache record, so it is written last.
	if p.indexer != nil {
		doc := domain.SummaryDocument{StoragePath: key, Repository: full, Content: summary.Content}
		if err := p.indexer.Index(ctx, doc); err != nil {
			p.repoFailed(ctx, full, "index", err)
			return outcomeFailed
		}
	}

	metadata := storage.EncodeMetadata(storage.SummaryRecord{
		Org:  org,
		Repo: name,
		Metadata: domain.ObjectMetadata{
			PushedAt:    repo.PushedAt,
			SourceURL:   repo.URL,
			ProcessedAt: p.now().UTC().Format(time.RFC3339),
			Language:    language,
		},
		Size: len(body),
	})
	err = p.retry.Do(ctx, "upload_summary", func(ctx context.Context) error {
		return p.store.PutObject(ctx, key, body, storage.SummaryContentType, metadata)
	})
	if err != nil {
		p.repoFailed(ctx, full, "upload", err)
		return outcomeFailed
	}

	p.events.Emit(ctx, events.Event{
		Kind:      events.RepoProcessed,
		Level:     slog.LevelInfo,
		Component: "ingest",
		Fields: map[string]any{
			"repository":  full,
			"reason":      decision.Reason,
			"language":    language,
			"files":       len(summary.Files),
			"size_bytes":  len(body),
			"duration_ms": p.now().Sub(began).Milliseconds(),
		},
	})
	return outcomeProcessed
}

func (p *Pipeline) repoFailed(ctx context.Context, repo, stage string, err error) {
	p.events.Emit(ctx, events.Event{
		Kind:      events.RepoFailed,
		Level:     slog.LevelWarn,
		Component: "ingest",
		Message:   "repository failed",
		Fields: map[string]any{
			"repository": repo,
			"stage":      stage,
			"error":      err.Error(),
		},
	})
}

func (p *Pipeline) progress(ctx context.Context, s Stats, opts Options) {
	done := s.Done()
	var eta time.Duration
	if done > 0 {
		eta = s.Elapsed / time.Duration(done) * time.Duration(s.Total-done)
	}
	p.events.Emit(ctx, events.Event{
		Kind:      events.IngestProgress,
		Level:     slog.LevelInfo,
		Component: "ingest",
		Message:   fmt.Sprintf("processed %d/%d", done, s.Total),
		Fields: map[string]any{
			"batch_size":     opts.BatchSize,
			"offset":         opts.Offset,
			"done":           done,
			"total":          s.Total,
			"cached":         s.Cached,
			"processed":      s.Processed,
			"failed":         s.Failed,
			"cache_hit_rate": roundTenth(s.CacheHitRate()),
			"elapsed_ms":     s.Elapsed.Milliseconds(),
			"eta_ms":         eta.Milliseconds(),
		},
	})
}

func (p *Pipeline) summary(ctx context.Context, s Stats, opts Options) {
	p.events.Emit(ctx, events.Event{
		Kind:      events.IngestSummary,
		Level:     slog.LevelInfo,
		Component: "ingest",
		Message:   "ingestion complete",
		Fields: map[string]any{
			"batch_size":     opts.BatchSize,
			"offset":         opts.Offset,
			"dry_run":        opts.DryRun,
			"total":          s.Total,
			"cached":         s.Cached,
			"processed":      s.Processed,
			"failed":         s.Failed,
			"cache_hit_rate": roundTenth(s.CacheHitRate()),
			"elapsed_ms":     s.Elapsed.Milliseconds(),
		},
	})
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
