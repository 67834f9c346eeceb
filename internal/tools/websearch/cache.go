package websearch

import (
	"sync"
	"time"
)

// defaultCacheSize limits the number of cached results to prevent unbounded memory growth.
const defaultCacheSize = 1000

type cacheEntry struct {
	text      string
	expiresAt time.Time
}

// resultCache is a TTL cache keyed by source and query variant.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newResultCache(ttl time.Duration, maxSize int) *resultCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &resultCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func cacheKey(source, query string) string { return source + "\x00" + query }

// get returns a cached result if it exists and hasn't expired.
func (c *resultCache) get(source, query string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(source, query)]
	if !ok || c.now().After(entry.expiresAt) {
		return "", false
	}
	return entry.text, true
}

// put stores a result, clearing expired entries and evicting the entries
// closest to expiry when full.
func (c *resultCache) put(source, query, text string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}

	for len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		for k, v := range c.entries {
			if oldestKey == "" || v.expiresAt.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.expiresAt
			}
		}
		if oldestKey == "" {
			break
		}
		delete(c.entries, oldestKey)
	}

	c.entries[cacheKey(source, query)] = &cacheEntry{text: text, expiresAt: now.Add(c.ttl)}
}

func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
