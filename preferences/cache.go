package preferences

import "sync"

// ContentCache caches derived content (for example AI-generated item
// descriptions) keyed by item code only. The cache is shared across all users
// so identical content is never recomputed per user.
//
// There is no TTL or eviction: entries live for the process lifetime. That is
// an accepted gap for the ephemeral deployment model; a production deployment
// should bound this cache.
type ContentCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewContentCache returns an empty cache.
func NewContentCache() *ContentCache {
	return &ContentCache{entries: make(map[string]string)}
}

// Get returns the cached content for the given item code, if any.
func (c *ContentCache) Get(code string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[code]
	return v, ok
}

// Put stores content for the given item code, replacing any previous entry.
// Empty codes are ignored.
func (c *ContentCache) Put(code, content string) {
	if code == "" {
		return
	}
	c.mu.Lock()
	c.entries[code] = content
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
