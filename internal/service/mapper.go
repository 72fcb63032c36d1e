package service

import (
	"time"

	"github.com/govreposcrape/govsearch/internal/domain"
)

// UnknownLanguage is published when no language was recorded.
const UnknownLanguage = "Unknown"

// Mapper converts enriched results into the published response.
type Mapper struct {
	now func() time.Time
}

func NewMapper() *Mapper {
	return &Mapper{now: time.Now}
}

// MapToResponse preserves order and count. elapsedMs below zero is reported
// as zero.
func (m *Mapper) MapToResponse(enriched []domain.EnrichedResult, elapsedMs int64) domain.SearchResponse {
	results := make([]domain.SearchResult, 0, len(enriched))
	for _, e := range enriched {
		results = append(results, m.mapOne(e))
	}
	return domain.SearchResponse{Results: results, TookMs: max(elapsedMs, 0)}
}

func (m *Mapper) mapOne(e domain.EnrichedResult) domain.SearchResult {
	language := domain.Defaulted(UnknownLanguage)
	lastUpdated := domain.Defaulted(m.now().UTC().Format(time.RFC3339))

	if e.Metadata != nil {
		if e.Metadata.Language != "" {
			language = domain.Known(e.Metadata.Language)
		}
		if e.Metadata.PushedAt != "" {
			lastUpdated = domain.Known(e.Metadata.PushedAt)
		} else if e.Metadata.ProcessedAt != "" {
			lastUpdated = domain.Known(e.Metadata.ProcessedAt)
		}
	}

	return domain.SearchResult{
		Repository:     e.Repository.FullName,
		FilePath:       FilePathFromStoragePath(e.StoragePath),
		MatchSnippet:   e.Content,
		RelevanceScore: e.Score,
		Metadata: domain.ResultMetadata{
			Language:    language,
			Stars:       domain.Defaulted(0),
			LastUpdated: lastUpdated,
			GitHubURL:   e.Links.Primary,
		},
	}
}
