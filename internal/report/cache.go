package report

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// resultCache memoizes computed analytics responses. Keys carry the dataset
// version (latest import batch id), so a new import naturally misses; entries
// from older versions are evicted on sight. A TTL bounds staleness for the
// degenerate case of a database modified outside the import path.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	version string
}

type cacheEntry struct {
	value   interface{}
	expires time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey builds the exact memoization key: dataset version, the individual
// set (order-insensitive), date range, season and unit. Nothing else may
// influence a cached result.
func cacheKey(version string, individuals []string, start, end time.Time, season, unit string) string {
	sorted := make([]string, len(individuals))
	copy(sorted, individuals)
	sort.Strings(sorted)

	parts := []string{
		version,
		strings.Join(sorted, ","),
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		season,
		unit,
	}
	return strings.Join(parts, "|")
}

// get returns the cached value for key under the given dataset version.
func (c *resultCache) get(version, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictOnVersionChange(version)

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// put stores a computed value under key for the given dataset version.
func (c *resultCache) put(version, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictOnVersionChange(version)
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}

// evictOnVersionChange drops every entry when the dataset version moves.
// Keys embed the version so stale entries could never be returned anyway;
// this just keeps the map from accumulating dead generations.
func (c *resultCache) evictOnVersionChange(version string) {
	if c.version == version {
		return
	}
	c.version = version
	c.entries = make(map[string]cacheEntry)
}
