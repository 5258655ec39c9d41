package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	cache := NewCache(0, setupTestLogger())

	cache.Set("k1", []byte("v1"), time.Minute)

	value, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), value)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	cache := NewCache(0, setupTestLogger())

	_, ok := cache.Get("nope")
	assert.False(t, ok)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	cache := NewCache(0, setupTestLogger())

	cache.Set("k1", []byte("v1"), 10*time.Millisecond)

	_, ok := cache.Get("k1")
	require.True(t, ok, "entry must be readable before expiry")

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get("k1")
	assert.False(t, ok, "expired entry must behave as a miss")
	assert.Equal(t, 0, cache.Len(), "expired entry is dropped on read")
}

func TestCache_SetOverwrites(t *testing.T) {
	cache := NewCache(0, setupTestLogger())

	cache.Set("k1", []byte("old"), time.Minute)
	cache.Set("k1", []byte("new"), time.Minute)

	value, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), value)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_SetRefreshesExpiry(t *testing.T) {
	cache := NewCache(0, setupTestLogger())

	cache.Set("k1", []byte("v1"), 10*time.Millisecond)
	cache.Set("k1", []byte("v1"), time.Minute)

	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("k1")
	assert.True(t, ok, "overwrite must replace the expiration")
}

func TestCache_LRUEviction(t *testing.T) {
	cache := NewCache(2, setupTestLogger())

	cache.Set("a", []byte("1"), time.Minute)
	cache.Set("b", []byte("2"), time.Minute)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Set("c", []byte("3"), time.Minute)

	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")

	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache(0, setupTestLogger())

	cache.Set("k1", []byte("v1"), time.Minute)

	assert.True(t, cache.Invalidate("k1"))
	assert.False(t, cache.Invalidate("k1"), "second invalidation is a no-op")

	_, ok := cache.Get("k1")
	assert.False(t, ok)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache(64, setupTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("key-%d", j%32)
				cache.Set(key, []byte(key), time.Minute)
				cache.Get(key)
				if j%17 == 0 {
					cache.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 64)
}
