// Package caching provides the in-memory funnel definition cache.
package caching

import (
	"sync"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/domain/funnel"
)

type definitionEntry struct {
	definition *funnel.Definition
	loadedAt   time.Time
}

// DefinitionCache caches funnel definitions by slug with a TTL. Definitions
// change rarely and every funnel load and event resolution reads them, so
// they stay hot between database hits.
type DefinitionCache struct {
	entries map[string]*definitionEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewDefinitionCache creates a definition cache with the given TTL.
func NewDefinitionCache(ttl time.Duration) *DefinitionCache {
	return &DefinitionCache{
		entries: make(map[string]*definitionEntry),
		ttl:     ttl,
	}
}

// Get retrieves a cached definition by slug, honoring the TTL.
func (c *DefinitionCache) Get(slug string) (*funnel.Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[slug]
	if !exists {
		return nil, false
	}
	if time.Since(entry.loadedAt) > c.ttl {
		return nil, false
	}
	return entry.definition, true
}

// Set stores a definition under its slug.
func (c *DefinitionCache) Set(slug string, def *funnel.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[slug] = &definitionEntry{
		definition: def,
		loadedAt:   time.Now().UTC(),
	}
}

// Invalidate drops one slug from the cache.
func (c *DefinitionCache) Invalidate(slug string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, slug)
}

// Cleanup removes expired entries. Called periodically from the container's
// maintenance loop.
func (c *DefinitionCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for slug, entry := range c.entries {
		if time.Since(entry.loadedAt) > c.ttl {
			delete(c.entries, slug)
			removed++
		}
	}
	return removed
}
