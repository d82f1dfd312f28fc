// Package cache is the TTL response cache in front of the read paths.
// It is a pure key/value layer: it never touches the store or the network.
package cache

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"marketcore/internal/metrics"
)

// TTL classes by route kind.
const (
	TTLRealtime   = 30 * time.Second
	TTLHistorical = 5 * time.Minute
	TTLSearch     = time.Hour
)

// DefaultSize is the per-class entry limit.
const DefaultSize = 1024

type entry struct {
	payload   []byte
	expiresAt time.Time
}

type class struct {
	name string
	ttl  time.Duration
	lru  *expirable.LRU[string, entry]
}

// Cache keeps one expirable LRU per TTL class. An entry lands in the
// shortest class whose TTL covers it and also carries its own deadline, so an
// arbitrary ttl is honoured exactly.
type Cache struct {
	// mu makes Set's remove-then-add across classes atomic with respect to
	// Invalidate. Each LRU is independently safe for concurrent use.
	mu      sync.RWMutex
	classes []*class
	now     func() time.Time
}

// New creates a cache holding up to size entries per TTL class.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	mk := func(name string, ttl time.Duration) *class {
		return &class{name: name, ttl: ttl, lru: expirable.NewLRU[string, entry](size, nil, ttl)}
	}
	return &Cache{
		classes: []*class{
			mk("realtime", TTLRealtime),
			mk("historical", TTLHistorical),
			mk("search", TTLSearch),
		},
		now: time.Now,
	}
}

func (c *Cache) classFor(ttl time.Duration) *class {
	for _, cl := range c.classes {
		if ttl <= cl.ttl {
			return cl
		}
	}
	return c.classes[len(c.classes)-1]
}

// Get returns the payload stored under key if it has not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	for _, cl := range c.classes {
		e, ok := cl.lru.Get(key)
		if !ok {
			continue
		}
		if !now.Before(e.expiresAt) {
			cl.lru.Remove(key)
			break
		}
		metrics.CacheHits.WithLabelValues(cl.name).Inc()
		return e.payload, true
	}
	metrics.CacheMisses.Inc()
	return nil, false
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
// Class TTLs above TTLSearch are capped at TTLSearch.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	target := c.classFor(ttl)
	if ttl > target.ttl {
		ttl = target.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range c.classes {
		if cl != target {
			cl.lru.Remove(key)
		}
	}
	target.lru.Add(key, entry{payload: value, expiresAt: c.now().Add(ttl)})
}

// Invalidate removes every entry whose key contains pattern and returns how
// many were removed. An empty pattern clears the cache.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, cl := range c.classes {
		if pattern == "" {
			removed += cl.lru.Len()
			cl.lru.Purge()
			continue
		}
		for _, k := range cl.lru.Keys() {
			if strings.Contains(k, pattern) && cl.lru.Remove(k) {
				removed++
			}
		}
	}
	metrics.CacheInvalidations.Add(float64(removed))
	return removed
}

// Len returns the number of live entries across all classes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, cl := range c.classes {
		n += cl.lru.Len()
	}
	return n
}

// Key derives the cache key for a request: the route followed by the query
// parameters sorted by name and value.
func Key(route string, params url.Values) string {
	if len(params) == 0 {
		return route
	}
	sorted := make(url.Values, len(params))
	for k, vs := range params {
		cp := append([]string(nil), vs...)
		sort.Strings(cp)
		sorted[k] = cp
	}
	// Encode sorts by key.
	return route + "?" + sorted.Encode()
}
