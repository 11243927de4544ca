package forge

import (
	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes resolved scenarios by name. The store resolves a scenario's
// inheritance chain once and serves later runs from the cache; registration
// and Clear invalidate it. Users can supply their own implementation when
// scenario definitions live outside the process.
type Cache interface {
	// Get retrieves a value from the cache.
	Get(key string) (any, bool)

	// Set stores a value in the cache.
	Set(key string, value any)

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all values from the cache.
	Clear()
}

// memoCache is the default Cache, backed by patrickmn/go-cache with no
// expiration.
type memoCache struct {
	c *gocache.Cache
}

// NewCache returns the default in-memory Cache.
func NewCache() Cache {
	return &memoCache{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *memoCache) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *memoCache) Set(key string, value any) {
	m.c.Set(key, value, gocache.NoExpiration)
}

func (m *memoCache) Delete(key string) {
	m.c.Delete(key)
}

func (m *memoCache) Clear() {
	m.c.Flush()
}
