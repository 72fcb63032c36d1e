package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/govreposcrape/govsearch/internal/domain"
	"github.com/govreposcrape/govsearch/internal/events"
	"github.com/govreposcrape/govsearch/internal/storage"
)

// Cache decision reasons
const (
	ReasonCacheHit   = "cache-hit"
	ReasonCacheMiss  = "cache-miss"
	ReasonStaleCache = "stale-cache"
)

// ShouldReprocess reports whether a repository must be summarised again.
// Any difference between the two timestamps counts, including one that
// moved backwards; an absent record always does.
func ShouldReprocess(candidatePushedAt, recordedPushedAt *string) bool {
	if recordedPushedAt == nil {
		return true
	}
	if candidatePushedAt == nil {
		return true
	}
	return *candidatePushedAt != *recordedPushedAt
}

// ObjectProber reads object metadata without fetching the body.
type ObjectProber interface {
	HeadObject(ctx context.Context, key string) (*storage.ObjectInfo, error)
}

type CacheDecision struct {
	Reprocess bool
	Reason    string
	// RecordedPushedAt is empty when nothing was recorded.
	RecordedPushedAt string
}

// CacheGate compares a feed entry with what was recorded on its last upload.
type CacheGate struct {
	store  ObjectProber
	events events.Emitter
}

func NewCacheGate(store ObjectProber, emitter events.Emitter) *CacheGate {
	return &CacheGate{store: store, events: events.OrNop(emitter)}
}

// Check never fails: a read error is treated as an absent record.
func (g *CacheGate) Check(ctx context.Context, org, name, pushedAt string) CacheDecision {
	key := storage.SummaryKey(org, name)

	var recorded *string
	info, err := g.store.HeadObject(ctx, key)
	switch {
	case err == nil:
		if v := storage.DecodeMetadata(info.Metadata).PushedAt; v != "" {
			recorded = &v
		}
	case errors.Is(err, domain.ErrObjectNotFound):
	default:
		g.events.Emit(ctx, events.Event{
			Kind:      events.CacheDecision,
			Level:     slog.LevelWarn,
			Component: "cache_gate",
			Message:   "cache record unreadable, treating as absent",
			Fields:    map[string]any{"key": key, "error": err.Error()},
		})
	}

	var candidate *string
	if pushedAt != "" {
		candidate = &pushedAt
	}

	decision := CacheDecision{Reprocess: ShouldReprocess(candidate, recorded)}
	switch {
	case recorded == nil:
		decision.Reason = ReasonCacheMiss
	case decision.Reprocess:
		decision.Reason = ReasonStaleCache
		decision.RecordedPushedAt = *recorded
	default:
		decision.Reason = ReasonCacheHit
		decision.RecordedPushedAt = *recorded
	}

	g.events.Emit(ctx, events.Event{
		Kind:      events.CacheDecision,
		Level:     slog.LevelDebug,
		Component: "cache_gate",
		Fields: map[string]any{
			"repository": org + "/" + name,
			"reason":     decision.Reason,
			"pushed_at":  pushedAt,
			"recorded":   decision.RecordedPushedAt,
		},
	})
	return decision
}
