package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a content-addressed memo table. Entries are keyed on a function
// name plus its canonicalized arguments and are only dropped by expiry or by
// an explicit Invalidate/InvalidateFunc/Flush call.
type Cache struct {
	items *gocache.Cache
}

// New creates a cache whose entries live for ttl (ttl <= 0 means no expiry).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := 10 * time.Minute
	if ttl > 0 && ttl < cleanup {
		cleanup = ttl
	}
	return &Cache{
		items: gocache.New(ttl, cleanup),
	}
}

// Key canonicalizes fn and args into a stable key of the form
// "fn:<sha256 of the JSON-encoded args>". Arguments must be JSON encodable;
// map keys are sorted by encoding/json so equal maps give equal keys.
func Key(fn string, args ...any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		payload = []byte(fmt.Sprintf("%#v", args))
	}
	sum := sha256.Sum256(payload)
	return fn + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached value for key.
func (c *Cache) Get(key string) (any, bool) {
	return c.items.Get(key)
}

// Set stores value under key with the default ttl.
func (c *Cache) Set(key string, value any) {
	c.items.Set(key, value, gocache.DefaultExpiration)
}

// Invalidate drops a single key.
func (c *Cache) Invalidate(key string) {
	c.items.Delete(key)
}

// InvalidateFunc drops every entry memoized for fn and returns how many were removed.
func (c *Cache) InvalidateFunc(fn string) int {
	prefix := fn + ":"
	removed := 0
	for key := range c.items.Items() {
		if strings.HasPrefix(key, prefix) {
			c.items.Delete(key)
			removed++
		}
	}
	return removed
}

// Flush empties the cache.
func (c *Cache) Flush() {
	c.items.Flush()
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Errors are never cached.
func GetOrLoad[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	if c != nil {
		if v, ok := c.Get(key); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if c != nil {
		c.Set(key, v)
	}
	return v, nil
}
