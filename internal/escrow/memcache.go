package escrow

import (
	"context"
	"sync"
)

// MemCache is the in-process Cache used when no Postgres DSN is configured.
type MemCache struct {
	mu sync.RWMutex
	m  map[string][]byte
}

var _ Cache = (*MemCache)(nil)

func NewMemCache() *MemCache {
	return &MemCache{m: make(map[string][]byte)}
}

func (c *MemCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

func (c *MemCache) Put(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := make([]byte, len(value))
	copy(raw, value)
	c.m[key] = raw
	return nil
}

func (c *MemCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}
