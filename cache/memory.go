package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCache implements an in-memory cache with automatic expiration
// and bounded entry count.
//
// Thread Safety: Safe for concurrent use. All operations are protected
// by a mutex. A cleanup goroutine removes expired entries every minute;
// call Close() to stop it.
type MemoryCache struct {
	data       map[string]*entry
	order      []string // insertion order, for FIFO eviction
	maxEntries int
	mu         sync.Mutex
	done       chan struct{}
	wg         sync.WaitGroup
}

// entry represents a cached value with expiration.
type entry struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a new in-memory cache.
//
// maxEntries bounds the number of cached responses; 0 means unlimited.
// When the bound is reached, the oldest entry is evicted.
//
// Example:
//
//	c := cache.NewMemoryCache(1024)
//	defer c.Close()
func NewMemoryCache(maxEntries int) *MemoryCache {
	c := &MemoryCache{
		data:       make(map[string]*entry),
		maxEntries: maxEntries,
		done:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanup()

	return c
}

// Get retrieves a value from the cache.
// Returns an error if the key is not found or has expired.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.data[key]
	if !exists {
		return nil, fmt.Errorf("key not found")
	}
	if !e.expiration.IsZero() && time.Now().After(e.expiration) {
		return nil, fmt.Errorf("key expired")
	}
	return e.value, nil
}

// Set stores a value in the cache with TTL.
// A TTL of 0 means the entry never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		if c.maxEntries > 0 && len(c.data) >= c.maxEntries {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}

	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}
	c.data[key] = &entry{value: value, expiration: expiration}
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	c.removeFromOrderLocked(key)
	return nil
}

// Clear removes all values from the cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*entry)
	c.order = nil
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// It is safe to call Close multiple times.
func (c *MemoryCache) Close() error {
	select {
	case <-c.done:
		// already closed
	default:
		close(c.done)
	}
	c.wg.Wait()
	return nil
}

// Len returns the number of entries currently stored.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *MemoryCache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.data, oldest)
}

func (c *MemoryCache) removeFromOrderLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// cleanup periodically removes expired entries.
func (c *MemoryCache) cleanup() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.data {
				if !e.expiration.IsZero() && now.After(e.expiration) {
					delete(c.data, key)
					c.removeFromOrderLocked(key)
				}
			}
			c.mu.Unlock()
		}
	}
}
