package github

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// maxExtensions bounds how often a hit may push an entry's expiry out, so
// hot entries are still refreshed eventually.
const maxExtensions = 6

type cacheEntry[V any] struct {
	value       V
	expiration  time.Time
	accessCount int
	originalTTL time.Duration
}

// ttlCache is a session cache with a sliding expiry window.
type ttlCache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	return &ttlCache[V]{
		entries: make(map[string]*cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return zero, false
	}

	now := c.now()
	if now.After(entry.expiration) {
		delete(c.entries, key)
		log.Debug().Str("key", key).Msg("Cache entry expired")
		return zero, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	if entry.accessCount < maxExtensions {
		entry.expiration = now.Add(entry.originalTTL)
		entry.accessCount++
		log.Trace().Str("key", key).Int("count", entry.accessCount).Msg("Extended cache TTL")
	}
	return entry.value, true
}

func (c *ttlCache[V]) add(key string, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry[V]{
		value:       value,
		expiration:  c.now().Add(c.ttl),
		originalTTL: c.ttl,
		accessCount: 1,
	}
	log.Debug().Str("key", key).Dur("ttl", c.ttl).Msg("Added to cache")
}

func (c *ttlCache[V]) len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
