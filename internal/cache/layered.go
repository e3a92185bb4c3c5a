package cache

import (
	"errors"
	"time"
)

// Tier identifies which layer answered a lookup
type Tier string

const (
	TierMemory  Tier = "memory"
	TierDurable Tier = "durable"
	TierMiss    Tier = "miss"
)

// LayeredCache checks a fast tier before a durable one
type LayeredCache struct {
	memory  Cache
	durable Cache
}

// NewLayeredCache creates a layered cache; durable may be nil for memory-only operation
func NewLayeredCache(memory, durable Cache) *LayeredCache {
	return &LayeredCache{
		memory:  memory,
		durable: durable,
	}
}

// Lookup checks memory first, then durable, and reports the answering tier.
// Durable hits are promoted to memory.
func (c *LayeredCache) Lookup(key string) ([]byte, Tier) {
	if val, found := c.memory.Get(key); found {
		return val, TierMemory
	}

	if c.durable != nil {
		if val, found := c.durable.Get(key); found {
			_ = c.memory.Set(key, val, 0)
			return val, TierDurable
		}
	}

	return nil, TierMiss
}

// SetMemory stores a value in the fast tier only
func (c *LayeredCache) SetMemory(key string, value []byte, ttl time.Duration) error {
	return c.memory.Set(key, value, ttl)
}

// SetDurable stores a value in the durable tier only
func (c *LayeredCache) SetDurable(key string, value []byte, ttl time.Duration) error {
	if c.durable == nil {
		return nil
	}
	return c.durable.Set(key, value, ttl)
}

// Delete removes a value from both tiers. A key missing from either tier is
// not an error.
func (c *LayeredCache) Delete(key string) error {
	if err := c.memory.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if c.durable != nil {
		if err := c.durable.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// Clear removes all values from both tiers
func (c *LayeredCache) Clear() error {
	if err := c.memory.Clear(); err != nil {
		return err
	}
	if c.durable != nil {
		return c.durable.Clear()
	}
	return nil
}
