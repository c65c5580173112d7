package lookup

import (
	"sync"
	"time"
)

// CacheMetrics tracks cache performance
type CacheMetrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	mu        sync.RWMutex
}

// GetHitRatio returns the cache hit ratio
func (m *CacheMetrics) GetHitRatio() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

func (m *CacheMetrics) recordHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Hits++
}

func (m *CacheMetrics) recordMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Misses++
}

func (m *CacheMetrics) recordEviction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Evictions++
}

// Snapshot returns a copy safe to read without locking.
func (m *CacheMetrics) Snapshot() CacheMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CacheMetrics{Hits: m.Hits, Misses: m.Misses, Evictions: m.Evictions}
}

type cacheEntry struct {
	items     []Item
	timestamp time.Time
	accessed  time.Time
}

// Cache is a bounded TTL cache of lookup tables keyed by group.
type Cache struct {
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	metrics *CacheMetrics
	mu      sync.Mutex
}

// NewCache creates a cache holding at most maxSize groups for ttl each.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		metrics: &CacheMetrics{},
	}
}

// Get returns the cached items for group if they have not expired.
func (c *Cache) Get(group string) ([]Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[group]
	if !ok {
		c.metrics.recordMiss()
		return nil, false
	}
	now := c.now()
	if c.ttl > 0 && now.Sub(entry.timestamp) > c.ttl {
		delete(c.entries, group)
		c.metrics.recordMiss()
		return nil, false
	}
	entry.accessed = now
	c.metrics.recordHit()
	return entry.items, true
}

// Set stores items for group, evicting the least recently used group when
// the cache is full.
func (c *Cache) Set(group string, items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[group]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	now := c.now()
	c.entries[group] = &cacheEntry{items: items, timestamp: now, accessed: now}
}

// Invalidate drops group, or everything when group is empty.
func (c *Cache) Invalidate(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if group == "" {
		c.entries = make(map[string]*cacheEntry)
		return
	}
	delete(c.entries, group)
}

// Metrics returns the cache metrics.
func (c *Cache) Metrics() *CacheMetrics {
	return c.metrics
}

func (c *Cache) evictLRU() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.accessed.Before(oldest) {
			oldestKey, oldest = key, entry.accessed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.metrics.recordEviction()
	}
}
