package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache defines the interface for caching operations
type Cache interface {
	// Get retrieves a value from the cache
	// Returns the value and a boolean indicating whether the key was found
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set adds a value to the cache with the specified expiration
	// If expiration is 0, the default expiration is used
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)

	// Flush removes all items from the cache
	Flush(ctx context.Context)
}

// Predefined cache key prefixes for different entity types
const (
	PrefixTenant = "tenant:v1:"
)

const (
	defaultExpiration = 5 * time.Minute
	cleanupInterval   = 10 * time.Minute
)

type inMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache creates a process-local cache
func NewInMemoryCache() Cache {
	return &inMemoryCache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *inMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *inMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	c.store.Set(key, value, expiration)
}

func (c *inMemoryCache) Delete(_ context.Context, key string) {
	c.store.Delete(key)
}

func (c *inMemoryCache) Flush(_ context.Context) {
	c.store.Flush()
}
