package engine

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// CacheEntry holds a cached task result with its absolute expiration.
type CacheEntry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

func (e *CacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Cache is the result cache: fingerprint → result with TTL expiry and
// least-recently-used eviction above a configured capacity. Reads of
// unexpired entries only take a read lock; structural mutation
// (insert, evict, recency promotion) takes the write lock.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	logger   *slog.Logger
}

// NewCache creates a result cache. A capacity of zero or below means
// unbounded (no LRU eviction).
func NewCache(capacity int, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		logger:   logger,
	}
}

// Get returns the cached value for key, or false on a miss. An entry
// past its expiration behaves as a miss and is dropped; stale data is
// never returned.
func (c *Cache) Get(key string) ([]byte, bool) {
	now := time.Now()

	c.mu.RLock()
	elem, ok := c.entries[key]
	var value []byte
	var stale bool
	if ok {
		entry := elem.Value.(*CacheEntry)
		if entry.expired(now) {
			stale = true
		} else {
			value = entry.Value
		}
	}
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if stale {
		c.remove(key)
		return nil, false
	}

	c.touch(key)
	return value, true
}

// Set stores value under key with expiration now + ttl, overwriting
// any existing entry. When a capacity is configured, the least
// recently used entries are evicted until the cache fits again.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*CacheEntry)
		entry.Value = value
		entry.ExpiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&CacheEntry{Key: key, Value: value, ExpiresAt: expiresAt})
	c.entries[key] = elem

	for c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*CacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.Key)
		c.logger.Debug("evicted cache entry",
			"key", evicted.Key,
			"capacity", c.capacity)
	}
}

// Invalidate removes key from the cache. Removing an absent key is a
// no-op; returns whether an entry was present.
func (c *Cache) Invalidate(key string) bool {
	return c.remove(key)
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

func (c *Cache) remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.entries, key)
	return true
}

// touch promotes key to most recently used. The entry may have been
// removed between the caller's read and this call; that is fine.
func (c *Cache) touch(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
	}
}
