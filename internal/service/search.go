package service

import (
	"context"
	"time"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/telemetry"
)

// SearchService runs the full search pipeline: query, enrich, map.
type SearchService struct {
	client   *SearchClient
	enricher *Enricher
	mapper   *Mapper
	now      func() time.Time
}

func NewSearchService(client *SearchClient, enricher *Enricher, mapper *Mapper) *SearchService {
	return &SearchService{client: client, enricher: enricher, mapper: mapper, now: time.Now}
}

// Search executes req. took_ms is measured from acceptedAt.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest, acceptedAt time.Time) (*domain.SearchResponse, error) {
	queryCtx, span := telemetry.StartSpan(ctx, "search.query", telemetry.SpanAttributes{Operation: "search"})
	hits, err := s.client.Search(queryCtx, req.Query, req.Limit)
	span.SetData("hits", len(hits))
	span.End()
	if err != nil {
		return nil, err
	}

	enrichCtx, span := telemetry.StartSpan(ctx, "search.enrich", telemetry.SpanAttributes{Operation: "enrich"})
	enriched := s.enricher.Enrich(enrichCtx, hits)
	span.End()

	resp := s.mapper.MapToResponse(enriched, s.now().Sub(acceptedAt).Milliseconds())
	return &resp, nil
}
