// Package embedding provides the content-keyed embedding cache and the
// batching client in front of the external embedding provider.
package embedding

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritract/docpipe/internal/domain"
)

// Default cache bounds.
const (
	DefaultCacheMaxEntries = 10000
	DefaultCacheMaxAge     = time.Hour
)

// CacheStats is a point-in-time snapshot of cache accounting.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Entries int
}

type cacheEntry struct {
	value    domain.CachedEmbedding
	storedAt time.Time
}

// Cache is an in-memory, content-keyed embedding cache with age and count
// eviction. It is a pure performance optimization: the system stays correct
// with an always-empty cache. Entries never survive a process restart.
//
// Keys hash the normalized text together with the input type, so
// semantically identical inputs hit regardless of incidental formatting.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	order      []string // insertion order, oldest first
	maxEntries int
	maxAge     time.Duration
	hits       uint64
	misses     uint64
	cacheTotal *prometheus.CounterVec
	now        func() time.Time
}

// NewCache creates a cache with the given bounds. cacheTotal is the
// hit/miss counter vec (label "result"), may be nil.
func NewCache(maxEntries int, maxAge time.Duration, cacheTotal *prometheus.CounterVec) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultCacheMaxAge
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		cacheTotal: cacheTotal,
		now:        time.Now,
	}
}

// Get returns the cached embedding for a text, if present and fresh.
func (c *Cache) Get(text string, inputType domain.InputType) (domain.CachedEmbedding, bool) {
	key := domain.CacheKey(text, inputType)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

// GetBatch returns cached embeddings for the given texts, keyed by input
// index. Absent indices are cache misses.
func (c *Cache) GetBatch(texts []string, inputType domain.InputType) map[int]domain.CachedEmbedding {
	out := make(map[int]domain.CachedEmbedding, len(texts))

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range texts {
		if v, ok := c.lookup(domain.CacheKey(t, inputType)); ok {
			out[i] = v
		}
	}
	return out
}

// lookup must be called with the lock held. Counts the hit or miss.
func (c *Cache) lookup(key string) (domain.CachedEmbedding, bool) {
	e, ok := c.entries[key]
	if ok && c.now().Sub(e.storedAt) <= c.maxAge {
		c.hits++
		c.count("hit")
		return e.value, true
	}
	c.misses++
	c.count("miss")
	return domain.CachedEmbedding{}, false
}

// Put stores an embedding, evicting expired and oldest entries to stay
// within bounds.
func (c *Cache) Put(text string, inputType domain.InputType, emb []float32, tokens int) {
	key := domain.CacheKey(text, inputType)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{
		value:    domain.CachedEmbedding{Embedding: emb, Tokens: tokens},
		storedAt: c.now(),
	}
	c.evict()
}

// evict must be called with the lock held.
func (c *Cache) evict() {
	cutoff := c.now().Add(-c.maxAge)
	kept := c.order[:0]
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		if e.storedAt.Before(cutoff) {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept

	for len(c.entries) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Clear resets the store and the hit/miss counters atomically.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
	c.hits = 0
	c.misses = 0
}

// Stats returns current cache accounting.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{Hits: c.hits, Misses: c.misses, HitRate: rate, Entries: len(c.entries)}
}

func (c *Cache) count(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
