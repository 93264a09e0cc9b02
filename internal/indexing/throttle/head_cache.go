package throttle

import (
	"context"
	"sync"
	"time"
)

// HeadSource reports the latest block number of a network.
type HeadSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
}

// HeadCache caches the chain head so the pipeline and the health monitor
// of one network share a single eth_blockNumber call per TTL.
type HeadCache struct {
	src HeadSource
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	cached   uint64
	cachedAt time.Time
}

// NewHeadCache creates a head cache. A non-positive TTL disables caching.
func NewHeadCache(src HeadSource, ttl time.Duration) *HeadCache {
	return &HeadCache{src: src, ttl: ttl, now: time.Now}
}

// LatestBlock returns the cached head while it is fresh, otherwise fetches it.
func (c *HeadCache) LatestBlock(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached > 0 && c.now().Sub(c.cachedAt) < c.ttl {
		return c.cached, nil
	}

	head, err := c.src.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	c.cached = head
	c.cachedAt = c.now()
	return head, nil
}

// Invalidate forces the next call to fetch.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
