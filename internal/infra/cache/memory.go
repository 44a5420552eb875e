package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache: реализация Once в памяти процесса для запуска без Redis.
type MemoryCache struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemory создаёт пустой кэш.
func NewMemory() *MemoryCache {
	return &MemoryCache{expires: make(map[string]time.Time), now: time.Now}
}

// Once выполняет функцию, если ключ ещё не задан или истёк.
func (c *MemoryCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	c.mu.Lock()
	now := c.now()
	if exp, ok := c.expires[key]; ok && now.Before(exp) {
		c.mu.Unlock()
		return nil
	}
	c.expires[key] = now.Add(ttl)
	c.mu.Unlock()

	if err := fn(); err != nil {
		c.mu.Lock()
		delete(c.expires, key)
		c.mu.Unlock()
		return err
	}
	return nil
}
