// Package cache provides a small TTL cache used to avoid repeating paid
// upstream lookups (Ahrefs domain data) for the same target.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	// KeyHashLen is the length of the hashed key (16 hex chars = 64-bit key space).
	KeyHashLen = 16

	// DefaultCleanupInterval controls how often stale entries are purged.
	DefaultCleanupInterval = 10 * time.Minute
)

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache stores values by normalized key for a fixed lifetime.
// A zero or negative TTL disables the cache: Set is a no-op and Get always misses.
type TTLCache[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]entry[V]

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache with the given TTL and starts a background purge loop.
// Call Close to stop the loop.
func New[V any](ttl time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
		stop:    make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop(DefaultCleanupInterval)
	}
	return c
}

// hashKey creates a stable, case-insensitive key from text content.
func hashKey(key string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(key))))
	return hex.EncodeToString(h[:])[:KeyHashLen]
}

// Get returns the cached value for key when present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	k := hashKey(key)
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.mu.Lock()
		if cur, still := c.entries[k]; still && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *TTLCache[V]) Set(key string, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[hashKey(key)] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge removes expired entries and returns how many were removed.
func (c *TTLCache[V]) Purge() int {
	if c == nil || c.ttl <= 0 {
		return 0
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Close stops the background purge loop. It is safe to call more than once.
func (c *TTLCache[V]) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *TTLCache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
