package dataset

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	DefaultCacheTTL      = 30 * time.Minute
	DefaultCacheCapacity = 64
)

// Cache keeps recent uploads between HTTP requests. It is safe for concurrent
// use. Each dataset costs one unit, so capacity is a dataset count.
type Cache struct {
	c   *ristretto.Cache[string, *Dataset]
	ttl time.Duration
}

// NewCache builds a cache for up to capacity datasets, each expiring after ttl.
// Non-positive arguments fall back to the defaults.
func NewCache(capacity int64, ttl time.Duration) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *Dataset]{
		NumCounters: capacity * 10,
		MaxCost:     capacity,
		BufferItems: 64,
		// Costs are dataset counts; ristretto's own metadata cost would
		// otherwise exceed a small MaxCost.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: new cache: %w", err)
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Put stores d under d.ID. It reports false when the admission policy
// rejected the item.
func (c *Cache) Put(d *Dataset) bool {
	ok := c.c.SetWithTTL(d.ID, d, 1, c.ttl)
	c.c.Wait()
	return ok
}

func (c *Cache) Get(id string) (*Dataset, bool) {
	return c.c.Get(id)
}

func (c *Cache) Delete(id string) {
	c.c.Del(id)
}

func (c *Cache) Close() {
	c.c.Close()
}
