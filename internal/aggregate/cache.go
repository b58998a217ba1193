package aggregate

import (
	"context"
	"sync"
	"time"

	"presence/pkg/platform/sentinel"
	"presence/pkg/requestcontext"
)

// ReportCache memoizes computed reports. Entries are advisory: a miss or a
// cache failure only costs a recompute.
type ReportCache interface {
	// Get returns the cached report or sentinel.ErrNotFound.
	Get(ctx context.Context, key string) (Cached, error)
	Put(ctx context.Context, key string, value Cached) error
}

// InMemoryReportCache is the single-process cache used in tests and when no
// Redis is configured.
type InMemoryReportCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoEntry
}

type memoEntry struct {
	value    Cached
	storedAt time.Time
}

func NewInMemoryReportCache(ttl time.Duration) *InMemoryReportCache {
	return &InMemoryReportCache{ttl: ttl, entries: make(map[string]memoEntry)}
}

func (c *InMemoryReportCache) Get(ctx context.Context, key string) (Cached, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return Cached{}, sentinel.ErrNotFound
	}
	if requestcontext.Now(ctx).Sub(entry.storedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return Cached{}, sentinel.ErrNotFound
	}
	return entry.value, nil
}

func (c *InMemoryReportCache) Put(ctx context.Context, key string, value Cached) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoEntry{value: value, storedAt: requestcontext.Now(ctx)}
	return nil
}
