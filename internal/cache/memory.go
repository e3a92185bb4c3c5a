package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process tier. Values are copied on the way in and out
// so callers can never alias stored bytes. Expired entries are hidden on read
// and dropped by go-cache's janitor.
type MemoryCache struct {
	items *gocache.Cache
	bytes atomic.Int64
}

// NewMemoryCache creates a memory tier; ttl is used when Set gets ttl 0
func NewMemoryCache(ttl, sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{items: gocache.New(ttl, sweepInterval)}
	c.items.OnEvicted(func(_ string, v interface{}) {
		c.bytes.Add(-int64(len(v.([]byte))))
	})
	return c
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v.([]byte)...), true
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	// go-cache's Set replaces silently; Delete first so the eviction hook
	// releases the old size, expired or not
	c.items.Delete(key)
	stored := append([]byte(nil), value...)
	c.items.Set(key, stored, ttl)
	c.bytes.Add(int64(len(stored)))
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	if _, ok := c.items.Get(key); !ok {
		return ErrNotFound
	}
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	c.bytes.Store(0)
	return nil
}

// Len returns the number of stored items, including expired ones not yet swept
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}

// Bytes returns the payload size held by the tier
func (c *MemoryCache) Bytes() int64 {
	return c.bytes.Load()
}
