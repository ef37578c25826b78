package sessions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/tabkeeper/platform"
)

// Cache is the tab/group observation cache: a best-effort in-memory mirror
// of live state, keyed by ephemeral platform ids. It exists so that
// information about a tab or group is still available one event-cycle after
// the platform has discarded it. Lookups are last-writer-wins.
//
// The cache is never authoritative for entities the platform can still
// report on directly.
type Cache struct {
	mu     sync.Mutex
	tabs   map[platform.TabID]TabRecord
	groups map[platform.GroupID]GroupRecord
	logger *slog.Logger
}

// NewCache creates an empty Cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		tabs:   make(map[platform.TabID]TabRecord),
		groups: make(map[platform.GroupID]GroupRecord),
		logger: logger,
	}
}

// UpsertTab records a live tab unless the filter policy excludes it.
func (c *Cache) UpsertTab(t platform.Tab) {
	if shouldFilterTab(t) {
		return
	}
	c.mu.Lock()
	c.tabs[t.ID] = tabRecordFrom(t, t.WindowID)
	c.mu.Unlock()
}

// UpsertGroup records a live group.
func (c *Cache) UpsertGroup(g platform.Group) {
	c.mu.Lock()
	c.groups[g.ID] = groupRecordFrom(g, g.WindowID)
	c.mu.Unlock()
}

// Tab reports the cached record for id.
func (c *Cache) Tab(id platform.TabID) (TabRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.tabs[id]
	return rec, ok
}

// Group reports the cached record for id.
func (c *Cache) Group(id platform.GroupID) (GroupRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.groups[id]
	return rec, ok
}

// DeleteTab drops a cached tab, typically after a closed-session capture
// consumed it.
func (c *Cache) DeleteTab(id platform.TabID) {
	c.mu.Lock()
	delete(c.tabs, id)
	c.mu.Unlock()
}

// GroupRemoved retags every cached tab that referenced the group as
// ungrouped, so a later snapshot treats them as individual tabs instead of
// members of an orphaned group. The group entry itself is kept for closed
// captures still in flight.
func (c *Cache) GroupRemoved(id platform.GroupID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for tabID, rec := range c.tabs {
		if rec.GroupID == int64(id) {
			rec.GroupID = int64(platform.NoGroup)
			c.tabs[tabID] = rec
			n++
		}
	}
	return n
}

// Refresh re-queries the platform and upserts every tab and group. It never
// clears: ids removed since the last refresh remain available for lookup
// until consumed.
func (c *Cache) Refresh(ctx context.Context, plat platform.Platform) {
	tabs, err := plat.AllTabs(ctx)
	if err != nil {
		c.logger.Error("sessions: cache refresh tabs", "error", err)
		return
	}
	for _, t := range tabs {
		c.UpsertTab(t)
	}

	groups, err := plat.AllGroups(ctx)
	if err != nil {
		c.logger.Error("sessions: cache refresh groups", "error", err)
		return
	}
	for _, g := range groups {
		c.UpsertGroup(g)
	}
}

// Sizes reports the cached tab and group counts.
func (c *Cache) Sizes() (tabs, groups int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tabs), len(c.groups)
}
