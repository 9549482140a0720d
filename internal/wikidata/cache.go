package wikidata

import (
	"sync"

	"github.com/lysyi3m/onthisday/internal/model"
)

type cacheKey struct {
	id       string
	language string
	baseURL  string
}

// Cache remembers resolved entities and permanent misses for the lifetime of
// one process. It is safe for concurrent use.
type Cache struct {
	mu     sync.Mutex
	hits   map[cacheKey]*model.WikidataEntitySummary
	misses map[cacheKey]struct{}
}

func NewCache() *Cache {
	return &Cache{
		hits:   make(map[cacheKey]*model.WikidataEntitySummary),
		misses: make(map[cacheKey]struct{}),
	}
}

// lookup reports (entity, true) for a hit, (nil, true) for a known miss and
// (nil, false) when the id was never resolved.
func (c *Cache) lookup(k cacheKey) (*model.WikidataEntitySummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.hits[k]; ok {
		return e, true
	}
	if _, ok := c.misses[k]; ok {
		return nil, true
	}
	return nil, false
}

func (c *Cache) storeHit(k cacheKey, e *model.WikidataEntitySummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[k] = e
	delete(c.misses, k)
}

func (c *Cache) storeMiss(k cacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses[k] = struct{}{}
}

func (c *Cache) Len() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hits), len(c.misses)
}
