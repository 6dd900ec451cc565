package recurrence

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/mo"
)

// cacheEntry is one cached expansion.
type cacheEntry struct {
	result     Collection
	expiresAt  time.Time
	accessedAt time.Time
}

// RecurrenceCache keeps expansion results keyed by rule text and options.
type RecurrenceCache struct {
	entries         map[string]*cacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often expired entries are dropped
}

// DefaultCacheConfig keeps up to 1000 results for 15 minutes.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache starts a cache and its cleanup goroutine. Zero fields in
// config fall back to DefaultCacheConfig.
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &RecurrenceCache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// cacheKey hashes everything that influences an expansion result. Rules
// without DTSTART depend on the clock and are never cached.
func cacheKey(rule *Rule, opts ExpansionOptions, lastDayFix bool, emptyYearLimit int) string {
	hasher := sha256.New()

	hasher.Write([]byte(rule.String()))
	hasher.Write([]byte{0})
	hasher.Write([]byte(rule.Location().String()))
	for _, o := range []mo.Option[time.Time]{rule.StartDate(), rule.EndDate(), rule.Until()} {
		if t, ok := o.Get(); ok {
			hasher.Write([]byte(t.Format(time.RFC3339Nano)))
			hasher.Write([]byte(t.Location().String()))
		}
		hasher.Write([]byte{0})
	}
	fmt.Fprintf(hasher, "%d|%t|%t|%d", opts.VirtualLimit, opts.CountConstraintFailures, lastDayFix, emptyYearLimit)

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get returns a copy of a live entry.
func (c *RecurrenceCache) Get(key string) (Collection, bool) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, false
	}

	c.mutex.Lock()
	entry.accessedAt = now
	c.mutex.Unlock()

	return slices.Clone(entry.result), true
}

// Set stores a copy of result, evicting old entries when over capacity.
func (c *RecurrenceCache) Set(key string, result Collection) {
	now := time.Now()
	entry := &cacheEntry{
		result:     slices.Clone(result),
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry
	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup drops expired entries, then the least recently used ones until
// the cache fits. Callers hold the write lock.
func (c *RecurrenceCache) cleanup() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return c.entries[a].accessedAt.Compare(c.entries[b].accessedAt)
	})
	for _, key := range keys[:len(keys)-c.maxEntries] {
		delete(c.entries, key)
	}
}

func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and empties the cache. It is safe to
// call more than once.
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	expired := 0
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}

	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}

// CacheStats provides information about cache usage
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
