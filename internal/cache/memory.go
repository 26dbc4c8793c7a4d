package cache

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type memoryEntry struct {
	value     []byte
	count     int64
	expiresAt time.Time
}

// MemoryCache is an in-process Cache implementation. It backs rate limiting
// in tests and single-process deployments. Counters are coarse fixed-window:
// concurrent increments from the same key are serialized by the mutex, but
// the window semantics stay best-effort, matching the Redis implementation.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a MemoryCache and starts its periodic sweep of
// expired windows.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Close stops the sweep goroutine.
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	e, ok := c.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memoryEntry{}
		c.entries[key] = e
	}
	e.count++
	e.expiresAt = now.Add(expiry)
	return e.count, nil
}
