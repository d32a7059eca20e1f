package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/bratishka/bratishka/internal/interval"
	"github.com/bratishka/bratishka/internal/models"
)

// resultCache is a small in-memory TTL cache of summary results. A repeated
// request for the same chat and lookback within the TTL is served without
// touching the store or the backend.
type resultCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result  models.SummaryResult
	expires time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey buckets by the window's shape, not its exact bounds. Sliding
// windows are anchored at request time, so keying on raw timestamps would
// never repeat; two "за 2 часа" requests a minute apart share a key.
func cacheKey(chatID string, res interval.Resolution) string {
	switch res.Kind {
	case interval.KindYesterday:
		// Calendar-anchored: stable until the day rolls over.
		return fmt.Sprintf("%s|%s|%d", chatID, res.Kind, res.Window.Start.UnixNano())
	case interval.KindAllTime:
		return fmt.Sprintf("%s|%s", chatID, res.Kind)
	default:
		return fmt.Sprintf("%s|%s|%d", chatID, res.Kind, int64(res.Window.Duration()/time.Second))
	}
}

func (c *resultCache) get(key string, now time.Time) (models.SummaryResult, bool) {
	if c.ttl <= 0 {
		return models.SummaryResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return models.SummaryResult{}, false
	}
	if now.After(entry.expires) {
		delete(c.entries, key)
		return models.SummaryResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) set(key string, result models.SummaryResult, now time.Time) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Lazy sweep keeps the map from accumulating dead windows.
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{result: result, expires: now.Add(c.ttl)}
}
