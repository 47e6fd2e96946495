package expression

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig defines configuration options for the result cache
type CacheConfig struct {
	MaxSize         int64         // maximum memory size in bytes
	TTL             time.Duration // time to live for cache entries
	CleanupInterval time.Duration // interval for the cleanup routine
}

// Cache is a thread-safe LRU cache with a memory limit and TTL
type Cache struct {
	items     map[string]*list.Element
	evictList *list.List
	size      int64
	config    *CacheConfig
	mu        sync.Mutex
}

type cacheEntry struct {
	key    string
	value  any
	size   int64
	expiry time.Time
}

// NewCache creates a cache with the given configuration
func NewCache(config *CacheConfig) *Cache {
	if config == nil {
		config = &CacheConfig{
			MaxSize:         1024 * 1024,
			TTL:             time.Hour,
			CleanupInterval: 5 * time.Minute,
		}
	}
	c := &Cache{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		config:    config,
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := ent.Value.(*cacheEntry)
	if !entry.expiry.IsZero() && time.Now().After(entry.expiry) {
		c.removeElement(ent)
		return nil, false
	}
	c.evictList.MoveToFront(ent)
	return entry.value, true
}

// Set adds or updates a value in the cache
func (c *Cache) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := estimateSize(value) + int64(len(key))
	if size > c.config.MaxSize {
		return fmt.Errorf("item size %d exceeds cache max size %d", size, c.config.MaxSize)
	}

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
	for c.size+size > c.config.MaxSize {
		if !c.evictOldest() {
			return fmt.Errorf("cannot make room for item with size %d", size)
		}
	}

	entry := &cacheEntry{key: key, value: value, size: size}
	if c.config.TTL > 0 {
		entry.expiry = time.Now().Add(c.config.TTL)
	}
	c.items[key] = c.evictList.PushFront(entry)
	c.size += size
	return nil
}

// Len returns the number of cached items
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	entry := e.Value.(*cacheEntry)
	delete(c.items, entry.key)
	c.size -= entry.size
}

func (c *Cache) evictOldest() bool {
	ent := c.evictList.Back()
	if ent == nil {
		return false
	}
	c.removeElement(ent)
	return true
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for _, ent := range c.items {
			entry := ent.Value.(*cacheEntry)
			if !entry.expiry.IsZero() && now.After(entry.expiry) {
				c.removeElement(ent)
			}
		}
		c.mu.Unlock()
	}
}
