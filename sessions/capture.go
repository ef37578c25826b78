package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tabkeeper/idgen"
	"github.com/hazyhaar/tabkeeper/platform"
)

// autoSaveThrottle is the minimum spacing between auto captures, shared by
// every trigger path. A capture arriving inside the window is dropped, not
// queued.
const autoSaveThrottle = 5 * time.Second

// Capturer builds snapshots from live platform state and stores them. One
// Capturer serves all three capture paths.
type Capturer struct {
	plat   platform.Platform
	store  *SnapStore
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastAuto time.Time
}

// NewCapturer wires a capturer to a platform, store and observation cache.
func NewCapturer(plat platform.Platform, store *SnapStore, cache *Cache, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		plat:   plat,
		store:  store,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// localTime renders a timestamp for default snapshot names.
func localTime(t time.Time) string {
	return t.Format("1/2/2006, 3:04:05 PM")
}

// clockTime renders the HH:MM form used for placeholder tab titles.
func clockTime(t time.Time) string {
	return t.Format("15:04")
}

// CaptureManual snapshots the current window on user request. An empty name
// gets a timestamped default. Zero surviving tabs still produce a stored
// snapshot: an intentionally saved empty window is not an error.
func (c *Capturer) CaptureManual(ctx context.Context, name string) (*Snapshot, error) {
	active, err := c.plat.ActiveTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("sessions: capture manual: %w", err)
	}
	if active == nil {
		return nil, ErrNoActiveWindow
	}

	tabs, groups, err := c.windowRecords(ctx, active.WindowID)
	if err != nil {
		return nil, fmt.Errorf("sessions: capture manual: %w", err)
	}

	now := c.now()
	if name == "" {
		name = "Session " + localTime(now)
	}
	snap := &Snapshot{
		ID:          idgen.SessionID(idgen.PrefixManual, now),
		Name:        name,
		CreatedAt:   now.UnixMilli(),
		Tabs:        tabs,
		Groups:      groups,
		TabCount:    len(tabs),
		GroupCount:  len(groups),
		WindowCount: 1,
	}
	if err := c.store.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("sessions: capture manual: %w", err)
	}
	c.logger.Info("sessions: manual session saved", "id", snap.ID, "name", snap.Name, "tabs", snap.TabCount)
	return snap, nil
}

// CaptureAuto snapshots the active window, or every window when allWindows
// is set. Returns (nil, nil) when the call is throttled or nothing survives
// the filter; both are silent by design of the trigger paths.
func (c *Capturer) CaptureAuto(ctx context.Context, allWindows bool) (*Snapshot, error) {
	c.mu.Lock()
	if since := c.now().Sub(c.lastAuto); since < autoSaveThrottle {
		c.mu.Unlock()
		c.logger.Debug("sessions: auto-save throttled", "since", since)
		return nil, nil
	}
	c.mu.Unlock()

	var (
		tabs        []TabRecord
		groups      []GroupRecord
		windowCount int
	)
	if allWindows {
		windows, err := c.plat.Windows(ctx)
		if err != nil {
			return nil, fmt.Errorf("sessions: capture auto: %w", err)
		}
		for _, w := range windows {
			wt, wg, err := c.windowRecords(ctx, w.ID)
			if err != nil {
				return nil, fmt.Errorf("sessions: capture auto: %w", err)
			}
			tabs = append(tabs, wt...)
			groups = append(groups, wg...)
		}
		windowCount = len(windows)
	} else {
		active, err := c.plat.ActiveTab(ctx)
		if err != nil {
			return nil, fmt.Errorf("sessions: capture auto: %w", err)
		}
		if active == nil {
			return nil, nil
		}
		tabs, groups, err = c.windowRecords(ctx, active.WindowID)
		if err != nil {
			return nil, fmt.Errorf("sessions: capture auto: %w", err)
		}
		windowCount = 1
	}

	if len(tabs) == 0 {
		return nil, nil
	}

	now := c.now()
	snap := &Snapshot{
		ID:             idgen.SessionID(idgen.PrefixAuto, now),
		Name:           "Auto-saved " + localTime(now),
		CreatedAt:      now.UnixMilli(),
		IsAutoSaved:    true,
		SaveAllWindows: allWindows,
		Tabs:           tabs,
		Groups:         groups,
		TabCount:       len(tabs),
		GroupCount:     len(groups),
		WindowCount:    windowCount,
	}
	if err := c.store.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("sessions: capture auto: %w", err)
	}

	c.mu.Lock()
	c.lastAuto = c.now()
	c.mu.Unlock()

	c.logger.Info("sessions: auto session saved",
		"id", snap.ID, "tabs", snap.TabCount, "windows", windowCount)
	return snap, nil
}

// CaptureClosed preserves what was lost when a tab or window closed. The
// platform reports only ids at that point, so content is resolved from, in
// order, the latest auto snapshot, the observation cache, and finally a
// synthesized placeholder. A window close that matches nothing is dropped
// silently; a single closed tab always yields a snapshot.
func (c *Capturer) CaptureClosed(ctx context.Context, tabID platform.TabID, windowID platform.WindowID, windowClosing bool) (*Snapshot, error) {
	latest, err := c.store.LatestAuto(ctx)
	if err != nil {
		return nil, fmt.Errorf("sessions: capture closed: %w", err)
	}

	now := c.now()
	if windowClosing {
		snap := closedWindowSnapshot(latest, windowID, now)
		if snap == nil {
			c.logger.Debug("sessions: closed window had no recoverable tabs", "window", windowID)
			return nil, nil
		}
		if err := c.store.Insert(ctx, snap); err != nil {
			return nil, fmt.Errorf("sessions: capture closed: %w", err)
		}
		c.logger.Info("sessions: closed window saved", "id", snap.ID, "tabs", snap.TabCount)
		return snap, nil
	}

	tab, group := resolveClosedTab(latest, c.cache, tabID, windowID)
	name := "Closed tab: " + clockTime(now)
	if tab == nil {
		// Nothing knew this tab. Keep a visible trace of the close anyway.
		tab = &TabRecord{
			ID:             int64(tabID),
			URL:            "chrome://newtab/",
			Title:          fmt.Sprintf("Closed tab (%s)", clockTime(now)),
			GroupID:        int64(platform.NoGroup),
			SourceWindowID: int64(windowID),
		}
	} else if tab.Title != "" {
		name = "Closed tab: " + tab.Title
	}

	snap := &Snapshot{
		ID:              idgen.SessionID(idgen.PrefixClosed, now),
		Name:            name,
		CreatedAt:       now.UnixMilli(),
		IsClosedSession: true,
		Tabs:            []TabRecord{*tab},
		TabCount:        1,
	}
	if group != nil {
		snap.Groups = []GroupRecord{*group}
		snap.GroupCount = 1
	}
	if err := c.store.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("sessions: capture closed: %w", err)
	}

	c.cache.DeleteTab(tabID)
	c.logger.Info("sessions: closed tab saved", "id", snap.ID, "name", snap.Name)
	return snap, nil
}

// windowRecords collects one window's surviving tabs and its groups, tagged
// with the source window.
func (c *Capturer) windowRecords(ctx context.Context, windowID platform.WindowID) ([]TabRecord, []GroupRecord, error) {
	live, err := c.plat.Tabs(ctx, windowID)
	if err != nil {
		return nil, nil, err
	}
	var tabs []TabRecord
	for _, t := range live {
		if shouldFilterTab(t) {
			continue
		}
		tabs = append(tabs, tabRecordFrom(t, windowID))
	}

	liveGroups, err := c.plat.Groups(ctx, windowID)
	if err != nil {
		return nil, nil, err
	}
	var groups []GroupRecord
	for _, g := range liveGroups {
		groups = append(groups, groupRecordFrom(g, windowID))
	}
	return tabs, groups, nil
}

// closedWindowSnapshot extracts a closing window's tabs from the latest auto
// snapshot. Returns nil when no auto snapshot covers that window.
func closedWindowSnapshot(latest *Snapshot, windowID platform.WindowID, now time.Time) *Snapshot {
	if latest == nil {
		return nil
	}
	var tabs []TabRecord
	for _, t := range latest.Tabs {
		if t.SourceWindowID == int64(windowID) && !shouldFilterRecord(t) {
			tabs = append(tabs, t)
		}
	}
	if len(tabs) == 0 {
		return nil
	}
	var groups []GroupRecord
	for _, g := range latest.Groups {
		if g.SourceWindowID == int64(windowID) {
			groups = append(groups, g)
		}
	}
	return &Snapshot{
		ID:              idgen.SessionID(idgen.PrefixClosed, now),
		Name:            "Closed window " + localTime(now),
		CreatedAt:       now.UnixMilli(),
		IsClosedSession: true,
		Tabs:            tabs,
		Groups:          groups,
		TabCount:        len(tabs),
		GroupCount:      len(groups),
		WindowCount:     1,
	}
}

// resolveClosedTab finds the best available record of a closed tab: the
// latest auto snapshot first, then the observation cache. The returned group
// is the tab's group record when one is known.
func resolveClosedTab(latest *Snapshot, cache *Cache, tabID platform.TabID, windowID platform.WindowID) (*TabRecord, *GroupRecord) {
	if latest != nil {
		for i := range latest.Tabs {
			t := latest.Tabs[i]
			if t.ID != int64(tabID) || t.SourceWindowID != int64(windowID) {
				continue
			}
			if shouldFilterRecord(t) {
				break
			}
			var group *GroupRecord
			if t.GroupID != int64(platform.NoGroup) {
				for j := range latest.Groups {
					if latest.Groups[j].ID == t.GroupID {
						group = &latest.Groups[j]
						break
					}
				}
			}
			return &t, group
		}
	}

	if rec, ok := cache.Tab(tabID); ok && !shouldFilterRecord(rec) {
		var group *GroupRecord
		if rec.GroupID != int64(platform.NoGroup) {
			if g, ok := cache.Group(platform.GroupID(rec.GroupID)); ok {
				group = &g
			}
		}
		return &rec, group
	}
	return nil, nil
}
