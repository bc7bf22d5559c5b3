package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"docquery/internal/domain"
)

// DefaultCacheSize bounds the process-wide embedding cache.
const DefaultCacheSize = 1000

// fifoCache is a bounded map keyed by a hash of the embedded text. Eviction
// is strictly first-in-first-out: on overflow the oldest inserted entry goes,
// regardless of how recently it was read. Last-write-wins on concurrent
// inserts of the same key is fine because embeddings for identical text are
// deterministic per provider.
type fifoCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*domain.Embedding
	order   []string
}

func newFIFOCache(max int) *fifoCache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &fifoCache{
		max:     max,
		entries: make(map[string]*domain.Embedding, max),
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *fifoCache) get(key string) (*domain.Embedding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *fifoCache) put(key string, e *domain.Embedding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = e
		return
	}
	if len(c.entries) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = e
	c.order = append(c.order, key)
}

func (c *fifoCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
