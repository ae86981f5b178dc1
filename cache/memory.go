package cache

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 4096

// MemoryCache is the single-instance fallback used when no Redis address is
// configured. It holds at most maxEntries keys; when full, expired entries
// are swept first and then the entry closest to expiry is evicted.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: defaultMaxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value; ttl <= 0 keeps it until overwritten or evicted.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.makeRoom(now)
	}
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// makeRoom must be called with mu held.
func (c *MemoryCache) makeRoom(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var victim string
	var soonest memoryEntry
	found := false
	for k, e := range c.entries {
		if !found || e.expiresBefore(soonest) {
			victim, soonest, found = k, e, true
		}
	}
	delete(c.entries, victim)
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// expiresBefore orders entries by expiry; entries without a ttl sort last.
func (e memoryEntry) expiresBefore(o memoryEntry) bool {
	switch {
	case e.expiresAt.IsZero():
		return false
	case o.expiresAt.IsZero():
		return true
	default:
		return e.expiresAt.Before(o.expiresAt)
	}
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
