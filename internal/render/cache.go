package render

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type cacheEntry struct {
	c       *compiled
	expires time.Time
}

// cache is an in-process TTL cache of compiled templates. Expiry is checked
// lazily on get; the clock is injectable so tests control time.
type cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]cacheEntry
}

func newCache(ttl time.Duration) *cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]cacheEntry),
	}
}

func (c *cache) get(id uuid.UUID) (*compiled, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, id)
		return nil, false
	}
	return e.c, true
}

func (c *cache) put(id uuid.UUID, v *compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cacheEntry{c: v, expires: c.now().Add(c.ttl)}
}
