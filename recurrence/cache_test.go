package recurrence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCollection(n int) Collection {
	c := make(Collection, n)
	for i := range c {
		start := day(2024, 1, 1+i)
		c[i] = Recurrence{Start: start, End: start.Add(time.Hour), Index: i + 1}
	}
	return c
}

func TestRecurrenceCache_BasicOperations(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	result, found := cache.Get("daily")
	assert.False(t, found)
	assert.Nil(t, result)

	cache.Set("daily", sampleCollection(3))

	result, found = cache.Get("daily")
	require.True(t, found)
	assert.Equal(t, sampleCollection(3), result)
}

func TestRecurrenceCache_ReturnsCopies(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	stored := sampleCollection(2)
	cache.Set("k", stored)
	stored[0].Index = 99

	first, _ := cache.Get("k")
	first[1].Index = 42

	second, _ := cache.Get("k")
	assert.Equal(t, sampleCollection(2), second)
}

func TestRecurrenceCache_TTLExpiration(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             100 * time.Millisecond,
		MaxEntries:      100,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer cache.Close()

	cache.Set("k", sampleCollection(1))
	_, found := cache.Get("k")
	require.True(t, found)

	time.Sleep(150 * time.Millisecond)

	_, found = cache.Get("k")
	assert.False(t, found)
}

func TestRecurrenceCache_MaxEntriesEviction(t *testing.T) {
	cache := NewRecurrenceCache(CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      3,
		CleanupInterval: time.Minute,
	})
	defer cache.Close()

	for i := 0; i < 3; i++ {
		cache.Set(fmt.Sprintf("k%d", i), sampleCollection(1))
		time.Sleep(2 * time.Millisecond)
	}
	// Touch k0 so k1 becomes the least recently used entry.
	_, found := cache.Get("k0")
	require.True(t, found)
	time.Sleep(2 * time.Millisecond)

	cache.Set("k3", sampleCollection(1))

	assert.Equal(t, 3, cache.Stats().TotalEntries)
	_, found = cache.Get("k1")
	assert.False(t, found, "least recently used entry should be evicted")
	_, found = cache.Get("k0")
	assert.True(t, found)
}

func TestRecurrenceCache_ConcurrentAccess(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	defer cache.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("k%d-%d", g, i%5)
				cache.Set(key, sampleCollection(2))
				_, _ = cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 40, cache.Stats().ActiveEntries)
}

func TestRecurrenceCache_CloseTwice(t *testing.T) {
	cache := NewRecurrenceCache(DefaultCacheConfig)
	cache.Set("k", sampleCollection(1))
	cache.Close()
	assert.NotPanics(t, cache.Close)
	assert.Zero(t, cache.Stats().TotalEntries)
}

func TestEngine_CachesWithoutConstraint(t *testing.T) {
	engine := NewEngineWithConfig(CachedEngineConfig)
	defer engine.Close()

	rule, err := ParseRule("FREQ=WEEKLY;COUNT=4;DTSTART=20240101T090000Z", nil)
	require.NoError(t, err)

	first, err := engine.Transform(context.Background(), rule, DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.CacheStats().TotalEntries)

	second, err := engine.Transform(context.Background(), rule, DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, engine.CacheStats().TotalEntries)

	// Different options and constrained calls get their own results.
	opts := DefaultExpansionOptions
	opts.VirtualLimit = 2
	limited, err := engine.Transform(context.Background(), rule, opts)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, 2, engine.CacheStats().TotalEntries)

	constrained, err := engine.Transform(context.Background(), rule,
		DefaultExpansionOptions.WithConstraint(AfterConstraint{After: day(2024, 1, 10)}))
	require.NoError(t, err)
	assert.Len(t, constrained, 2)
	assert.Equal(t, 2, engine.CacheStats().TotalEntries)
}

func TestEngine_CacheKeyTracksRuleChanges(t *testing.T) {
	engine := NewEngineWithConfig(CachedEngineConfig)
	defer engine.Close()

	rule, err := ParseRule("FREQ=DAILY;COUNT=2;DTSTART=20240101T090000Z", nil)
	require.NoError(t, err)
	_, err = engine.Transform(context.Background(), rule, DefaultExpansionOptions)
	require.NoError(t, err)

	require.NoError(t, rule.SetCount(3))
	result, err := engine.Transform(context.Background(), rule, DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Len(t, result, 3)
}
