package cache

import (
	"errors"
	"time"
)

// LayeredCache stacks caches from fastest to slowest. Reads stop at the
// first tier holding the key and copy the value into every faster tier;
// writes and deletes go to all tiers.
type LayeredCache struct {
	tiers []Cache
}

// NewLayeredCache is the usual stack: process memory in front of the
// on-disk store
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayeredCacheFrom(
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	)
}

// NewLayeredCacheFrom stacks existing caches, fastest first
func NewLayeredCacheFrom(tiers ...Cache) *LayeredCache {
	return &LayeredCache{tiers: tiers}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, tier := range c.tiers {
		val, ok := tier.Get(key)
		if !ok {
			continue
		}
		for _, faster := range c.tiers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set writes every tier. A failed tier does not stop the others.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.each(func(tier Cache) error { return tier.Set(key, value, ttl) })
}

func (c *LayeredCache) Delete(key string) error {
	return c.each(func(tier Cache) error { return tier.Delete(key) })
}

func (c *LayeredCache) Clear() error {
	return c.each(Cache.Clear)
}

func (c *LayeredCache) each(op func(Cache) error) error {
	errs := make([]error, 0, len(c.tiers))
	for _, tier := range c.tiers {
		errs = append(errs, op(tier))
	}
	return errors.Join(errs...)
}
