package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	giturls "github.com/whilp/git-urls"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
)

const DefaultMetadataTimeout = 2 * time.Second

// EnricherConfig configures the Enricher
type EnricherConfig struct {
	CacheTTL        time.Duration
	MetadataTimeout time.Duration
}

// Enricher joins raw hits with repository identity, links and object
// metadata. It never fails: anything it cannot derive is left absent.
type Enricher struct {
	cache   *metadataCache
	events  events.Emitter
	timeout time.Duration
}

// NewEnricher creates an Enricher. store may be nil, in which case metadata
// is always absent.
func NewEnricher(store MetadataStore, emitter events.Emitter, cfg EnricherConfig) *Enricher {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	e := &Enricher{events: events.OrNop(emitter), timeout: cfg.MetadataTimeout}
	if store != nil {
		e.cache = newMetadataCache(store, cfg.CacheTTL)
	}
	return e
}

// Enrich processes every hit concurrently and returns results in input order.
func (e *Enricher) Enrich(ctx context.Context, hits []domain.RawSearchHit) []domain.EnrichedResult {
	results := make([]domain.EnrichedResult, len(hits))

	var wg sync.WaitGroup
	for i, hit := range hits {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.enrichOne(ctx, hit)
		}()
	}
	wg.Wait()

	return results
}

func (e *Enricher) enrichOne(ctx context.Context, hit domain.RawSearchHit) domain.EnrichedResult {
	id, known := ParseStoragePath(hit.StoragePath)
	md := e.fetchMetadata(ctx, hit.StoragePath)

	if !known && md != nil {
		if fromURL, ok := identityFromURL(md.SourceURL); ok {
			id = fromURL
		}
	}

	return domain.EnrichedResult{
		Content:     hit.Content,
		Score:       hit.Score,
		StoragePath: hit.StoragePath,
		Repository:  id,
		Links:       BuildLinks(id),
		Metadata:    md,
	}
}

func (e *Enricher) fetchMetadata(ctx context.Context, key string) (md *domain.ObjectMetadata) {
	if e.cache == nil || key == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.miss(ctx, key, fmt.Errorf("metadata lookup panicked: %v", r))
			md = nil
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	md, err := e.cache.get(ctx, key)
	if err != nil {
		e.miss(ctx, key, err)
		return nil
	}
	if md == nil {
		e.miss(ctx, key, nil)
	}
	return md
}

func (e *Enricher) miss(ctx context.Context, key string, err error) {
	fields := map[string]any{"storage_path": key}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.events.Emit(ctx, events.Event{
		Kind:      events.MetadataMiss,
		Level:     slog.LevelWarn,
		Component: "enricher",
		Message:   "summary metadata unavailable",
		Fields:    fields,
	})
}

// identityFromURL derives an identity from a repository clone URL.
func identityFromURL(raw string) (domain.RepositoryIdentity, bool) {
	if raw == "" {
		return domain.RepositoryIdentity{}, false
	}
	u, err := giturls.Parse(raw)
	if err != nil {
		return domain.RepositoryIdentity{}, false
	}
	p := strings.TrimSuffix(strings.Trim(u.Path, "/"), ".git")
	org, name, ok := strings.Cut(p, "/")
	if !ok || strings.Contains(name, "/") || !segmentPattern.MatchString(org) || !segmentPattern.MatchString(name) {
		return domain.RepositoryIdentity{}, false
	}
	return domain.NewRepositoryIdentity(org, name), true
}
