package search

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sha1n/policy-search-server/internal/domain"
)

const (
	// DefaultCacheSize is the number of timestamps kept
	DefaultCacheSize = 1024

	// DefaultCacheTTL is how long a cached timestamp is trusted
	DefaultCacheTTL = 5 * time.Minute
)

// CacheKey identifies one cached last-updated timestamp.
type CacheKey struct {
	TenantAlias string
	Environment domain.Environment
	Entity      domain.EntityType
	Fields      string
}

// NewCacheKey builds the key of a timestamp computed over fields.
func NewCacheKey(tenantAlias string, env domain.Environment, entity domain.EntityType, fields ...string) CacheKey {
	return CacheKey{
		TenantAlias: tenantAlias,
		Environment: env,
		Entity:      entity,
		Fields:      strings.Join(fields, ","),
	}
}

// TimestampCache holds the newest timestamps seen in live indexes.
// It is safe for concurrent use.
type TimestampCache struct {
	entries *expirable.LRU[CacheKey, int64]
}

// NewTimestampCache creates a cache holding up to size entries for ttl each.
func NewTimestampCache(size int, ttl time.Duration) *TimestampCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &TimestampCache{
		entries: expirable.NewLRU[CacheKey, int64](size, nil, ttl),
	}
}

// Get returns a cached timestamp.
func (c *TimestampCache) Get(key CacheKey) (int64, bool) {
	return c.entries.Get(key)
}

// Set caches a timestamp.
func (c *TimestampCache) Set(key CacheKey, ticks int64) {
	c.entries.Add(key, ticks)
}

// Invalidate drops every timestamp of one index, whatever fields it was computed over.
func (c *TimestampCache) Invalidate(tenantAlias string, env domain.Environment, entity domain.EntityType) {
	for _, key := range c.entries.Keys() {
		if key.TenantAlias == tenantAlias && key.Environment == env && key.Entity == entity {
			c.entries.Remove(key)
		}
	}
}

// Len returns the number of cached timestamps.
func (c *TimestampCache) Len() int {
	return c.entries.Len()
}
