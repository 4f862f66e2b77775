package cache

import (
	"context"
	"time"
)

// ttlCache overrides the time-to-live of every write.
type ttlCache struct {
	Cache
	ttl time.Duration
}

// WithTTL returns a Cache that stores every entry with ttl, regardless of
// the ttl passed to Set. A non-positive ttl returns c unchanged.
func WithTTL(c Cache, ttl time.Duration) Cache {
	if ttl <= 0 {
		return c
	}
	return &ttlCache{Cache: c, ttl: ttl}
}

// Set stores data with the configured ttl.
func (c *ttlCache) Set(ctx context.Context, key string, data []byte, _ time.Duration) error {
	return c.Cache.Set(ctx, key, data, c.ttl)
}
