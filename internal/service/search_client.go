package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/retry"
)

// DefaultSlowThreshold is the total search latency above which a
// slow_operation event is emitted.
const DefaultSlowThreshold = 800 * time.Millisecond

// Backend is a semantic search backend
type Backend interface {
	Query(ctx context.Context, q domain.BackendQuery) (*domain.BackendResult, error)
}

// SearchClient validates a query, calls the backend through the retry
// executor and normalises the hits.
type SearchClient struct {
	backend       Backend
	retry         *retry.Executor
	events        events.Emitter
	slowThreshold time.Duration
	now           func() time.Time
}

// NewSearchClient creates a SearchClient. A zero slowThreshold uses
// DefaultSlowThreshold.
func NewSearchClient(backend Backend, executor *retry.Executor, emitter events.Emitter, slowThreshold time.Duration) *SearchClient {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowThreshold
	}
	return &SearchClient{
		backend:       backend,
		retry:         executor,
		events:        events.OrNop(emitter),
		slowThreshold: slowThreshold,
		now:           time.Now,
	}
}

// Search returns at most limit hits for query, best first.
func (c *SearchClient) Search(ctx context.Context, query string, limit int) ([]domain.RawSearchHit, error) {
	start := c.now()

	req, err := domain.NewSearchRequest(query, limit)
	if err != nil {
		return nil, err
	}

	backendStart := c.now()
	result, err := retry.Execute(ctx, c.retry, "search_backend", func(ctx context.Context) (*domain.BackendResult, error) {
		return c.backend.Query(ctx, domain.BackendQuery{Query: req.Query, TopK: req.Limit})
	})
	backendElapsed := c.now().Sub(backendStart)

	var hits []domain.RawSearchHit
	if err == nil {
		hits = toRawHits(result, req.Limit)
	}
	total := c.now().Sub(start)

	fields := map[string]any{
		"query_length": len([]rune(req.Query)),
		"limit":        req.Limit,
		"backend_ms":   backendElapsed.Milliseconds(),
		"total_ms":     total.Milliseconds(),
		"hits":         len(hits),
	}
	if result != nil {
		fields["backend_took_ms"] = result.TookMs
	}
	c.events.Emit(ctx, events.Event{
		Kind:      events.BackendCall,
		Level:     slog.LevelInfo,
		Component: "search_client",
		Message:   "search backend call completed",
		Fields:    fields,
	})

	if total > c.slowThreshold {
		c.events.Emit(ctx, events.Event{
			Kind:      events.SlowOperation,
			Level:     slog.LevelWarn,
			Component: "search_client",
			Message:   "search exceeded latency threshold",
			Fields: map[string]any{
				"operation":    "search",
				"total_ms":     total.Milliseconds(),
				"backend_ms":   backendElapsed.Milliseconds(),
				"threshold_ms": c.slowThreshold.Milliseconds(),
			},
		})
	}

	if err != nil {
		return nil, err
	}
	return hits, nil
}

// toRawHits treats a nil result as an empty result set.
func toRawHits(result *domain.BackendResult, limit int) []domain.RawSearchHit {
	if result == nil {
		return []domain.RawSearchHit{}
	}
	hits := make([]domain.RawSearchHit, 0, len(result.Results))
	for _, h := range result.Results {
		if len(hits) == limit {
			break
		}
		hits = append(hits, domain.RawSearchHit{
			Content:     h.Content,
			Score:       clampScore(h.Score),
			StoragePath: h.Path,
		})
	}
	return hits
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
