package authz

import "sync"

// Cache holds per-user authorization snapshots. Entries are invalidated
// synchronously whenever a membership mutation commits, so a revocation
// response never races a stale grant.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]*Grants
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[int64]*Grants),
	}
}

func (c *Cache) Get(userID int64) (*Grants, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.entries[userID]
	return g, ok
}

func (c *Cache) Put(userID int64, grants *Grants) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = grants
}

func (c *Cache) Invalidate(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]*Grants)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
