package session

import (
	"sync"
	"time"

	"github.com/rideops/fleet-backoffice/internal/metrics"
)

// CacheKey names an identity cache entry.
type CacheKey string

const (
	KeyCurrentUser CacheKey = "currentUser"
	KeyTokenValid  CacheKey = "tokenValid"
)

// CacheEntry is one memoized response and the time it was stored.
type CacheEntry struct {
	Data      any
	Timestamp time.Time
}

// IdentityCache memoizes the current-user and token-validity responses for
// a short freshness window. Each Session owns its own cache.
type IdentityCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[CacheKey]CacheEntry
}

// NewIdentityCache creates a cache whose entries are fresh for ttl. A nil now
// uses time.Now.
func NewIdentityCache(ttl time.Duration, now func() time.Time) *IdentityCache {
	if now == nil {
		now = time.Now
	}
	return &IdentityCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[CacheKey]CacheEntry, 2),
	}
}

// Get returns the entry for key if it is younger than the TTL. Stale entries
// are dropped.
func (c *IdentityCache) Get(key CacheKey) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().Sub(e.Timestamp) >= c.ttl {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		metrics.IdentityCacheTotal.WithLabelValues(string(key), "miss").Inc()
		return nil, false
	}
	metrics.IdentityCacheTotal.WithLabelValues(string(key), "hit").Inc()
	return e.Data, true
}

// Put stores data under key, stamped now.
func (c *IdentityCache) Put(key CacheKey, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry{Data: data, Timestamp: c.now()}
}

// Invalidate drops every entry.
func (c *IdentityCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
