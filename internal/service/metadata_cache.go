package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/govreposcrape/govsearch/internal/domain"
)

const (
	DefaultMetadataCacheTTL = 5 * time.Minute
	maxCachedObjects        = 10000
)

// MetadataStore reads summary metadata. A nil result with a nil error means
// the object has no metadata.
type MetadataStore interface {
	GetMetadata(ctx context.Context, key string) (*domain.ObjectMetadata, error)
}

type cachedMetadata struct {
	md        *domain.ObjectMetadata
	expiresAt time.Time
}

// metadataCache fronts a MetadataStore with a TTL cache. Concurrent lookups
// of the same key share one store call. Errors are never cached.
type metadataCache struct {
	store MetadataStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cachedMetadata
	group   singleflight.Group
}

func newMetadataCache(store MetadataStore, ttl time.Duration) *metadataCache {
	return &metadataCache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedMetadata),
	}
}

func (c *metadataCache) get(ctx context.Context, key string) (*domain.ObjectMetadata, error) {
	if c.ttl <= 0 {
		return c.store.GetMetadata(ctx, key)
	}

	if md, ok := c.lookup(key); ok {
		return md, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		md, err := c.store.GetMetadata(ctx, key)
		if err != nil {
			return nil, err
		}
		c.put(key, md)
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	md, _ := v.(*domain.ObjectMetadata)
	return md, nil
}

func (c *metadataCache) lookup(key string) (*domain.ObjectMetadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.md, true
}

func (c *metadataCache) put(key string, md *domain.ObjectMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.entries) >= maxCachedObjects {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= maxCachedObjects {
			clear(c.entries)
		}
	}
	c.entries[key] = cachedMetadata{md: md, expiresAt: now.Add(c.ttl)}
}
