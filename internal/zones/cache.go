package zones

import (
	"sync"
	"time"

	"swiftdrop-backend/internal/models"
)

// zoneCache is a small TTL cache keyed by grid cell, bounding Overpass
// traffic while the driver stays in the same area.
type zoneCache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	maxEntries int
	ttl        time.Duration
}

type cacheEntry struct {
	zones     []models.Zone
	createdAt time.Time
}

func newZoneCache(ttl time.Duration) *zoneCache {
	return &zoneCache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: 256,
		ttl:        ttl,
	}
}

func (c *zoneCache) get(key string) ([]models.Zone, bool) {
	c.mu.RLock()
	entry, found := c.entries[key]
	c.mu.RUnlock()

	if !found {
		return nil, false
	}
	if time.Since(entry.createdAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return append([]models.Zone(nil), entry.zones...), true
}

func (c *zoneCache) put(key string, zones []models.Zone) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict the oldest entry when full.
	if len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey = k
				oldest = e.createdAt
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = &cacheEntry{
		zones:     append([]models.Zone(nil), zones...),
		createdAt: time.Now(),
	}
}
