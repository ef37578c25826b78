// Package platformtest provides an in-memory Platform implementation for
// engine tests. It behaves like a small single-process browser: tabs, groups
// and windows live in maps, mutations allocate fresh ids, and tests can
// inject per-URL creation failures or push change events by hand.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hazyhaar/tabkeeper/platform"
)

// Fake is an in-memory Platform. Zero value is not usable; call New.
type Fake struct {
	mu      sync.Mutex
	nextTab platform.TabID
	nextGrp platform.GroupID
	nextWin platform.WindowID

	tabs    map[platform.TabID]*platform.Tab
	groups  map[platform.GroupID]*platform.Group
	windows map[platform.WindowID]bool

	// FailURLs makes CreateTab fail for these URLs.
	FailURLs map[string]bool
	// BlankTabOnNewWindow mimics the browser opening a new-tab page in
	// every fresh window. On by default.
	BlankTabOnNewWindow bool

	events chan platform.Event
}

// New creates a Fake with one empty window.
func New() *Fake {
	f := &Fake{
		nextTab:             1,
		nextGrp:             1,
		nextWin:             1,
		tabs:                make(map[platform.TabID]*platform.Tab),
		groups:              make(map[platform.GroupID]*platform.Group),
		windows:             make(map[platform.WindowID]bool),
		FailURLs:            make(map[string]bool),
		BlankTabOnNewWindow: true,
		events:              make(chan platform.Event, 64),
	}
	f.windows[f.nextWin] = true
	f.nextWin++
	return f
}

// AddWindow opens an extra window and returns its id.
func (f *Fake) AddWindow() platform.WindowID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextWin
	f.nextWin++
	f.windows[id] = true
	return id
}

// AddTab seeds a tab and returns it. A zero WindowID defaults to window 1.
func (f *Fake) AddTab(t platform.Tab) platform.Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.WindowID == 0 {
		t.WindowID = 1
	}
	if t.GroupID == 0 {
		t.GroupID = platform.NoGroup
	}
	t.ID = f.nextTab
	f.nextTab++
	t.Index = f.countTabsLocked(t.WindowID) - 1
	f.tabs[t.ID] = &t
	return t
}

// AddGroup seeds a group and returns it.
func (f *Fake) AddGroup(g platform.Group) platform.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g.WindowID == 0 {
		g.WindowID = 1
	}
	g.ID = f.nextGrp
	f.nextGrp++
	f.groups[g.ID] = &g
	return g
}

// PushEvent delivers an event to the engine under test.
func (f *Fake) PushEvent(ev platform.Event) { f.events <- ev }

// DropTab removes a tab without emitting an event, simulating a close the
// platform can no longer report on.
func (f *Fake) DropTab(id platform.TabID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tabs, id)
}

// Tab reports a live tab by id, or nil.
func (f *Fake) Tab(id platform.TabID) *platform.Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tabs[id]; ok {
		cp := *t
		return &cp
	}
	return nil
}

// CreatedGroup reports a live group by id, or nil.
func (f *Fake) CreatedGroup(id platform.GroupID) *platform.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.groups[id]; ok {
		cp := *g
		return &cp
	}
	return nil
}

func (f *Fake) countTabsLocked(w platform.WindowID) int {
	n := 0
	for _, t := range f.tabs {
		if t.WindowID == w {
			n++
		}
	}
	return n + 1
}

func (f *Fake) Tabs(_ context.Context, windowID platform.WindowID) ([]platform.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Tab
	for _, t := range f.tabs {
		if t.WindowID == windowID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) AllTabs(_ context.Context) ([]platform.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Tab
	for _, t := range f.tabs {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) Groups(_ context.Context, windowID platform.WindowID) ([]platform.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Group
	for _, g := range f.groups {
		if g.WindowID == windowID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) AllGroups(_ context.Context) ([]platform.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Group
	for _, g := range f.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) Windows(_ context.Context) ([]platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Window
	for id := range f.windows {
		out = append(out, platform.Window{ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) Window(_ context.Context, id platform.WindowID) (*platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.windows[id] {
		return nil, fmt.Errorf("platformtest: window %d not found", id)
	}
	return &platform.Window{ID: id}, nil
}

func (f *Fake) ActiveTab(_ context.Context) (*platform.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tabs {
		if t.Active {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *Fake) CreateWindow(_ context.Context) (platform.WindowID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextWin
	f.nextWin++
	f.windows[id] = true
	if f.BlankTabOnNewWindow {
		t := &platform.Tab{
			ID:       f.nextTab,
			URL:      "chrome://newtab/",
			Title:    "New Tab",
			GroupID:  platform.NoGroup,
			WindowID: id,
		}
		f.nextTab++
		f.tabs[t.ID] = t
	}
	return id, nil
}

func (f *Fake) CreateTab(_ context.Context, req platform.CreateTab) (*platform.Tab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailURLs[req.URL] {
		return nil, fmt.Errorf("platformtest: create tab %s: injected failure", req.URL)
	}
	if !f.windows[req.WindowID] {
		return nil, fmt.Errorf("platformtest: window %d not found", req.WindowID)
	}
	t := &platform.Tab{
		ID:       f.nextTab,
		URL:      req.URL,
		Title:    req.URL,
		Active:   req.Active,
		Pinned:   req.Pinned,
		GroupID:  platform.NoGroup,
		WindowID: req.WindowID,
		Index:    f.countTabsLocked(req.WindowID) - 1,
	}
	f.nextTab++
	f.tabs[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *Fake) ActivateTab(_ context.Context, id platform.TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tabs[id]
	if !ok {
		return fmt.Errorf("platformtest: tab %d not found", id)
	}
	for _, other := range f.tabs {
		other.Active = false
	}
	t.Active = true
	return nil
}

func (f *Fake) RemoveTabs(_ context.Context, ids []platform.TabID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.tabs, id)
	}
	return nil
}

func (f *Fake) GroupTabs(_ context.Context, windowID platform.WindowID, ids []platform.TabID) (platform.GroupID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ids) == 0 {
		return platform.NoGroup, fmt.Errorf("platformtest: group with no tabs")
	}
	g := &platform.Group{ID: f.nextGrp, Color: platform.ColorGrey, WindowID: windowID}
	f.nextGrp++
	f.groups[g.ID] = g
	for _, id := range ids {
		if t, ok := f.tabs[id]; ok {
			t.GroupID = g.ID
		}
	}
	return g.ID, nil
}

func (f *Fake) UpdateGroup(_ context.Context, id platform.GroupID, upd platform.UpdateGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return fmt.Errorf("platformtest: group %d not found", id)
	}
	g.Title = upd.Title
	g.Color = upd.Color
	g.Collapsed = upd.Collapsed
	return nil
}

func (f *Fake) Events() <-chan platform.Event { return f.events }
