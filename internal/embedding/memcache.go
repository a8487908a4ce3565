package embedding

import (
	"context"
	"sync"

	"github.com/pgvector/pgvector-go"
)

// MemCache is an in-process, content-addressed embedding cache: once a text
// hash is seen its vector never changes, so unlike the teacher's
// internal/authz GrantCache there is no TTL or eviction loop here.
type MemCache struct {
	mu      sync.RWMutex
	entries map[string]pgvector.Vector
}

// NewMemCache constructs an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]pgvector.Vector)}
}

// Get implements Cache.
func (c *MemCache) Get(_ context.Context, textHash string) (pgvector.Vector, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[textHash]
	return vec, ok, nil
}

// Put implements Cache.
func (c *MemCache) Put(_ context.Context, textHash string, vec pgvector.Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[textHash] = vec
	return nil
}
