package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helixir/scholar-aggregator/internal/domain"
)

// DefaultMemorySize is the entry capacity used when none is configured.
const DefaultMemorySize = 1024

type memoryEntry struct {
	papers    []*domain.Paper
	expiresAt time.Time
}

// MemoryCache is a size-bounded LRU whose entries also expire by TTL.
// Values are deep-copied on the way in and out so callers cannot mutate
// cached state. Safe for concurrent use.
type MemoryCache struct {
	lru *lru.Cache[string, memoryEntry]
	now Clock
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates an LRU cache holding at most size entries.
// A nil clock uses time.Now.
func NewMemoryCache(size int, now Clock) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if now == nil {
		now = time.Now
	}
	l, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryCache{lru: l, now: now}, nil
}

// Get returns the entry for key if it has not expired. Expired entries are
// evicted on read.
func (c *MemoryCache) Get(_ context.Context, key string) ([]*domain.Paper, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return clonePapers(entry.papers), true, nil
}

// Set stores papers under key until now+ttl. A non-positive ttl is a no-op.
func (c *MemoryCache) Set(_ context.Context, key string, papers []*domain.Paper, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.lru.Add(key, memoryEntry{
		papers:    clonePapers(papers),
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
