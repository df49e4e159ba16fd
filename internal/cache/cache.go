// Package cache provides a small string-keyed TTL memoization used to absorb
// repeated status checks. Expiry is checked lazily at read time; there is no
// background sweep.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a process-local TTL cache. TTL policy is the caller's decision,
// not the cache's. Values are overwritten silently on the next Set for the
// same key; expiry is the only other removal path.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty Cache.
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Cache with an injected clock. Tests use this to
// advance time without sleeping.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the stored value for key if present and not expired. An expired
// entry is removed and reported as a miss; a miss is indistinguishable from
// a key that was never set.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with an absolute expiry of now + ttl,
// overwriting any prior entry. A non-positive ttl stores nothing.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Len returns the number of entries currently held, including any whose
// expiry has passed but which no read has evicted yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
