package sandbox

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// DefaultCacheSize is used when the configured cache size is not positive.
const DefaultCacheSize = 512

// programCache is an LRU cache of compiled programs keyed by language and
// script digest.
type programCache struct {
	maxEntries int

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List

	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key     string
	program Program
}

// CacheStats holds program cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

func newProgramCache(maxEntries int) *programCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &programCache{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		eviction:   list.New(),
	}
}

func cacheKey(language, script string) string {
	sum := sha256.Sum256([]byte(script))
	return language + ":" + hex.EncodeToString(sum[:])
}

func (c *programCache) get(key string) (Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.eviction.MoveToFront(elem)
	atomic.AddInt64(&c.hits, 1)
	return elem.Value.(*cacheEntry).program, true
}

func (c *programCache) put(key string, program Program) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.eviction.MoveToFront(elem)
		elem.Value = &cacheEntry{key: key, program: program}
		return c.eviction.Len()
	}

	c.items[key] = c.eviction.PushFront(&cacheEntry{key: key, program: program})
	for c.eviction.Len() > c.maxEntries {
		oldest := c.eviction.Back()
		c.eviction.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
		atomic.AddInt64(&c.evictions, 1)
	}
	return c.eviction.Len()
}

func (c *programCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
}

func (c *programCache) stats() CacheStats {
	c.mu.Lock()
	size := c.eviction.Len()
	c.mu.Unlock()

	return CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      size,
	}
}
