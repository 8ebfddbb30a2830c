package capability

import (
	"context"
	"sync"
)

// Cache holds one detected snapshot for the life of the process. Feature
// support does not change mid-session, so callers read the cached snapshot
// and re-probe only on explicit request. The cache is constructed and passed
// down; there is no package-level instance.
type Cache struct {
	probes     Probes
	production bool

	mu       sync.Mutex
	snapshot Snapshot
	detected bool
}

// NewCache constructs an empty cache bound to one probe set.
func NewCache(probes Probes, production bool) *Cache {
	return &Cache{probes: probes, production: production}
}

// Get returns the cached snapshot, detecting on first use.
func (c *Cache) Get(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.detected {
		c.snapshot = Detect(ctx, c.probes, c.production)
		c.detected = true
	}
	return c.snapshot
}

// Refresh discards the cached snapshot and re-probes immediately.
func (c *Cache) Refresh(ctx context.Context) Snapshot {
	snap := Detect(ctx, c.probes, c.production)
	c.mu.Lock()
	c.snapshot = snap
	c.detected = true
	c.mu.Unlock()
	return snap
}

// Clear resets the cache so the next Get re-probes.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.detected = false
	c.snapshot = Snapshot{}
	c.mu.Unlock()
}
