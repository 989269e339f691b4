package lru_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/blame/pkg/alg/lru"
)

func TestCache_GetPut(t *testing.T) {
	t.Parallel()

	cache := lru.New[string, int](2)

	cache.Put("a", 1)
	cache.Put("b", 2)

	val, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, val)

	_, ok = cache.Get("missing")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	cache := lru.New[string, int](2)

	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Get("a")
	cache.Put("c", 3)

	_, ok := cache.Get("b")
	assert.False(t, ok, "b was least recently used")

	_, ok = cache.Get("a")
	assert.True(t, ok)

	_, ok = cache.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_UpdateExisting(t *testing.T) {
	t.Parallel()

	cache := lru.New[string, int](1)

	cache.Put("a", 1)
	cache.Put("a", 5)

	val, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 5, val)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](4)
	cache.Put(1, 1)
	cache.Clear()

	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](16)

	var wg sync.WaitGroup

	for worker := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 100 {
				cache.Put(worker*100+i, i)
				cache.Get(i)
			}
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 16)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[string, string](0) })
}
