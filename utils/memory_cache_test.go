package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheSetGet(t *testing.T) {
	cache := NewMemoryCache()

	cache.Set("key", "value", time.Minute)

	got, ok := cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = cache.Get("missing")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()

	cache.Set("key", "value", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	cache := NewMemoryCache()

	cache.Set("user-1/inbox", 1, time.Minute)
	cache.Set("user-1/starred", 2, time.Minute)
	cache.Set("user-2/inbox", 3, time.Minute)

	cache.DeletePrefix("user-1/")

	_, ok := cache.Get("user-1/inbox")
	assert.False(t, ok)
	_, ok = cache.Get("user-1/starred")
	assert.False(t, ok)
	_, ok = cache.Get("user-2/inbox")
	assert.True(t, ok)
}

func TestMemoryCacheClear(t *testing.T) {
	cache := NewMemoryCache()

	cache.Set("a", 1, time.Minute)
	cache.Set("b", 2, time.Minute)
	cache.Clear()

	assert.Equal(t, 0, cache.Size())
}
