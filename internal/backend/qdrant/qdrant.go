// Package qdrant is a self-hosted semantic backend: queries are embedded with
// OpenAI and matched against summary vectors stored in Qdrant.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/govreposcrape/govsearch/internal/backend"
	"github.com/govreposcrape/govsearch/internal/domain"
)

const (
	DefaultCollection = "repo_summaries"
	vectorName        = "content"
)

var ErrUnhealthy = errors.New("qdrant health check returned invalid response")

// Embedder turns text into a vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// pointsAPI is the subset of *qdrant.Client used by Backend
type pointsAPI interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Config configures the Qdrant connection
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Backend implements search and indexing on Qdrant
type Backend struct {
	client     pointsAPI
	embedder   Embedder
	collection string
}

// New connects to Qdrant. The connection is lazy; call Health or
// EnsureCollection to verify it.
func New(cfg Config, embedder Embedder) (*Backend, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return newBackend(client, embedder, cfg.Collection), nil
}

func newBackend(client pointsAPI, embedder Embedder, collection string) *Backend {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Backend{client: client, embedder: embedder, collection: collection}
}

// Query embeds the query and returns the nearest summaries.
func (b *Backend) Query(ctx context.Context, q domain.BackendQuery) (*domain.BackendResult, error) {
	start := time.Now()

	vector, err := b.embedder.GenerateEmbedding(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	points, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQuery(vector...),
		Using:          qdrant.PtrOf(vectorName),
		Limit:          qdrant.PtrOf(uint64(q.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query qdrant: %w", err)
	}

	hits := make([]domain.BackendHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, domain.BackendHit{
			Content: p.Payload["content"].GetStringValue(),
			Score:   clamp(float64(p.Score)),
			Path:    p.Payload["path"].GetStringValue(),
		})
	}

	return &domain.BackendResult{Results: hits, TookMs: time.Since(start).Milliseconds()}, nil
}

// Index embeds a summary and upserts it. The point ID is derived from the
// storage path, so re-indexing a repository replaces its previous point.
func (b *Backend) Index(ctx context.Context, doc domain.SummaryDocument) error {
	vector, err := b.embedder.GenerateEmbedding(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", doc.Repository, err)
	}

	_, err = b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id: qdrant.NewIDUUID(PointID(doc.StoragePath)),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				vectorName: qdrant.NewVector(vector...),
			}),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":    backend.Snippet(doc.Content, backend.DefaultSnippetMaxChars),
				"path":       doc.StoragePath,
				"repository": doc.Repository,
				"indexed_at": time.Now().UTC().Format(time.RFC3339),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", doc.Repository, err)
	}
	return nil
}

// EnsureCollection creates the collection if it does not exist.
func (b *Backend) EnsureCollection(ctx context.Context) error {
	collections, err := b.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == b.collection {
			return nil
		}
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(b.embedder.Dimensions()),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", b.collection, err)
	}
	return nil
}

// Health performs a single health check
func (b *Backend) Health(ctx context.Context) error {
	reply, err := b.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if reply == nil || reply.GetTitle() == "" {
		return ErrUnhealthy
	}
	return nil
}

func (b *Backend) Close() error {
	return b.client.Close()
}

var pointNamespace = uuid.MustParse("6f1c1c55-4d0e-4b9a-9a57-0d5c2f3b8e21")

// PointID returns the stable point UUID for a storage path
func PointID(storagePath string) string {
	return uuid.NewSHA1(pointNamespace, []byte(storagePath)).String()
}

func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
