package resources

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/concave-dev/pfbatch/internal/logging"
)

// FetchFunc produces a fresh set of snapshots, keyed by node name.
type FetchFunc func() (map[string]*HostResources, error)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Errors    int64     `json:"errors"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Cache holds the last fleet-wide resource collection for a TTL. A fleet
// query waits for every member to answer, so the API serves repeated reads
// from here. When a refresh fails the previous collection is served.
type Cache struct {
	ttl   time.Duration
	fetch FetchFunc
	now   func() time.Time

	mu        sync.Mutex
	data      map[string]*HostResources
	fetchedAt time.Time

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewCache creates a cache. A zero ttl disables caching.
func NewCache(ttl time.Duration, fetch FetchFunc) *Cache {
	return &Cache{ttl: ttl, fetch: fetch, now: time.Now}
}

// Get returns the cached collection or fetches a new one.
func (c *Cache) Get() (map[string]*HostResources, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.data != nil && c.ttl > 0 && now.Sub(c.fetchedAt) < c.ttl {
		c.hits.Add(1)
		return c.data, nil
	}

	c.misses.Add(1)
	data, err := c.fetch()
	if err != nil {
		c.errors.Add(1)
		if c.data != nil {
			logging.Warn("Resource refresh failed, serving data from %v: %v", c.fetchedAt, err)
			return c.data, nil
		}
		return nil, err
	}

	c.data = data
	c.fetchedAt = now
	return data, nil
}

// Invalidate drops the cached collection. Called on membership changes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.data = nil
	c.mu.Unlock()
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	fetchedAt := c.fetchedAt
	c.mu.Unlock()

	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Errors:    c.errors.Load(),
		FetchedAt: fetchedAt,
	}
}
