package cache

import (
	"context"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"kakeibo/internal/core"
	"kakeibo/internal/metrics"
)

// DocumentCache remembers each session's document list for a short time so
// page reloads do not hit Drive every time. Failed listings are not cached.
type DocumentCache struct {
	lru *LRUCache[[]core.DocumentRef]
}

func NewDocumentCache(maxSessions int, ttl time.Duration, clock clockwork.Clock) *DocumentCache {
	return &DocumentCache{lru: NewLRUCache[[]core.DocumentRef](maxSessions, ttl, clock)}
}

// Documents returns the cached list for sessionID or calls load and caches its result.
func (c *DocumentCache) Documents(ctx context.Context, sessionID string, load func(context.Context) ([]core.DocumentRef, error)) ([]core.DocumentRef, error) {
	if docs, ok := c.lru.Get(sessionID); ok {
		metrics.DocumentCacheHits.Inc()
		return slices.Clone(docs), nil
	}
	metrics.DocumentCacheMisses.Inc()
	docs, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.lru.Set(sessionID, slices.Clone(docs))
	return docs, nil
}

// Forget drops a session's entry, e.g. on sign-out.
func (c *DocumentCache) Forget(sessionID string) {
	c.lru.Delete(sessionID)
}

func (c *DocumentCache) CleanExpired() int {
	return c.lru.CleanExpired()
}
