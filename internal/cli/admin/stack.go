package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/govreposcrape/govsearch/internal/api/handlers"
	"github.com/govreposcrape/govsearch/internal/backend/fulltext"
	"github.com/govreposcrape/govsearch/internal/backend/httpbackend"
	"github.com/govreposcrape/govsearch/internal/backend/qdrant"
	"github.com/govreposcrape/govsearch/internal/config"
	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/ingest"
	"github.com/govreposcrape/govsearch/internal/openai"
	"github.com/govreposcrape/govsearch/internal/retry"
	"github.com/govreposcrape/govsearch/internal/service"
	"github.com/govreposcrape/govsearch/internal/storage"
)

// ObjectStore is everything the daemon needs from the summary bucket.
type ObjectStore interface {
	ingest.ObjectStore
	service.MetadataStore
	Ping(ctx context.Context) error
}

// Stack holds the dependencies shared by serve and ingest.
type Stack struct {
	Config  *config.Config
	Logger  *slog.Logger
	Events  events.Emitter
	Retry   *retry.Executor
	Store   ObjectStore
	Backend service.Backend
	// Indexer is nil for backends that index on their own.
	Indexer ingest.Indexer
	Health  map[string]handlers.HealthChecker

	closers []func() error
}

// BuildStack wires storage and the configured search backend.
func BuildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	emitter := events.NewSlogEmitter(logger)
	s := &Stack{
		Config: cfg,
		Logger: logger,
		Events: emitter,
		Retry:  retry.NewExecutor(cfg.RetryConfig(), emitter),
		Health: map[string]handlers.HealthChecker{},
	}

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Store = store
	s.Health["object_store"] = handlers.HealthFunc(store.Ping)

	if err := s.buildBackend(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ObjectStore, error) {
	if !cfg.HasS3() {
		logger.Warn("S3 not configured, using in-memory object store")
		return storage.NewMemoryStore(), nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	logger.Info("object store ready", slog.String("bucket", cfg.S3Bucket))
	return client, nil
}

func (s *Stack) buildBackend(ctx context.Context) error {
	cfg := s.Config
	switch cfg.Backend {
	case config.BackendFulltext:
		idx, err := fulltext.Open(cfg.FulltextIndexPath)
		if err != nil {
			return err
		}
		s.Backend, s.Indexer = idx, idx
		s.closers = append(s.closers, idx.Close)
		s.Logger.Info("search backend ready", slog.String("backend", cfg.Backend), slog.String("path", cfg.FulltextIndexPath))

	case config.BackendQdrant:
		embedder := openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Dimensions: cfg.OpenAIDimensions,
		})
		b, err := qdrant.New(qdrant.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantTLS,
			Collection: cfg.QdrantCollection,
		}, embedder)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, b.Close)
		if err := b.EnsureCollection(ctx); err != nil {
			// Qdrant may come up after us; health reports it until then.
			s.Logger.Warn("qdrant collection not ready", slog.String("error", err.Error()))
		}
		s.Backend, s.Indexer = b, b
		s.Health["backend"] = b
		s.Logger.Info("search backend ready", slog.String("backend", cfg.Backend), slog.String("collection", cfg.QdrantCollection))

	case config.BackendHTTP:
		s.Backend = httpbackend.New(cfg.BackendURL, cfg.BackendToken, cfg.BackendTimeout)
		s.Logger.Info("search backend ready", slog.String("backend", cfg.Backend))

	default:
		return domain.ErrUnknownBackend
	}
	return nil
}

// SearchService builds the query pipeline over the stack.
func (s *Stack) SearchService() *service.SearchService {
	client := service.NewSearchClient(s.Backend, s.Retry, s.Events, s.Config.SlowThreshold)
	enricher := service.NewEnricher(s.Store, s.Events, service.EnricherConfig{
		CacheTTL:        s.Config.MetadataCacheTTL,
		MetadataTimeout: s.Config.MetadataTimeout,
	})
	return service.NewSearchService(client, enricher, service.NewMapper())
}

// Pipeline builds the ingestion pipeline over the stack.
func (s *Stack) Pipeline(feedURL string) (*ingest.Pipeline, error) {
	if feedURL == "" {
		feedURL = s.Config.FeedURL
	}

	languages := ingest.NewOfflineLanguageDetector()
	if s.Config.HasGitHub() {
		detector, err := ingest.NewLanguageDetector(s.Config.GitHubToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		languages = detector
	}

	return ingest.NewPipeline(ingest.PipelineConfig{
		Feed:       ingest.NewFeedClient(feedURL, s.Retry),
		Store:      s.Store,
		Summarizer: ingest.NewGitSummarizer(ingest.GitSummarizerConfig{Token: s.Config.GitHubToken}),
		Languages:  languages,
		Indexer:    s.Indexer,
		Retry:      s.Retry,
		Events:     s.Events,
	}), nil
}

// Close releases backend resources.
func (s *Stack) Close() {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		s.Logger.Error("failed to close resources", slog.String("error", err.Error()))
	}
}
