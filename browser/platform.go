package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/tabkeeper/platform"
)

// Chrome implements platform.Platform over the DevTools protocol. Tabs are
// CDP page targets. The protocol has no notion of tab groups or pinning,
// and headless Chrome reports every target in one window, so groups, pins
// and window membership are kept in a registry here: authoritative for this
// process, invisible to the browser chrome itself.
type Chrome struct {
	logger *slog.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	nextTab    platform.TabID
	nextGroup  platform.GroupID
	nextWindow platform.WindowID
	seq        int

	tabs    map[proto.TargetTargetID]*tabState
	byID    map[platform.TabID]*tabState
	groups  map[platform.GroupID]*platform.Group
	windows map[platform.WindowID]bool

	defaultWin platform.WindowID
	events     chan platform.Event
}

var _ platform.Platform = (*Chrome)(nil)

type tabState struct {
	id     platform.TabID
	target proto.TargetTargetID
	url    string
	title  string
	window platform.WindowID
	group  platform.GroupID
	pinned bool
	active bool
	seq    int // creation order within the process, drives Index
}

// NewChrome creates an unbound adapter with one (empty) default window.
// Call Bind and Watch once the browser is up.
func NewChrome(logger *slog.Logger) *Chrome {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chrome{
		logger:     logger,
		nextTab:    1,
		nextGroup:  1,
		nextWindow: 1,
		tabs:       make(map[proto.TargetTargetID]*tabState),
		byID:       make(map[platform.TabID]*tabState),
		groups:     make(map[platform.GroupID]*platform.Group),
		windows:    make(map[platform.WindowID]bool),
		events:     make(chan platform.Event, 128),
	}
	c.defaultWin = c.nextWindow
	c.windows[c.defaultWin] = true
	c.nextWindow++
	return c
}

// Bind attaches the adapter to a browser handle. After a recycle the old
// targets are gone; the registry is reset to match.
func (c *Chrome) Bind(b *rod.Browser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browser = b
	c.tabs = make(map[proto.TargetTargetID]*tabState)
	c.byID = make(map[platform.TabID]*tabState)
	c.groups = make(map[platform.GroupID]*platform.Group)
	c.windows = map[platform.WindowID]bool{c.defaultWin: true}
}

// Watch adopts the browser's existing page targets and subscribes to target
// lifecycle events. It returns once the subscription is installed; the pump
// runs until the browser context ends.
func (c *Chrome) Watch(ctx context.Context) error {
	b := c.rod()
	if b == nil {
		return fmt.Errorf("browser: not bound")
	}

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		return fmt.Errorf("browser: discover targets: %w", err)
	}

	existing, err := proto.TargetGetTargets{}.Call(b)
	if err != nil {
		return fmt.Errorf("browser: list targets: %w", err)
	}
	for _, info := range existing.TargetInfos {
		if info.Type == "page" {
			c.adoptTarget(info.TargetID, info.URL, info.Title, c.defaultWin, false)
		}
	}

	go b.Context(ctx).EachEvent(
		func(e *proto.TargetTargetCreated) { c.onTargetCreated(e.TargetInfo) },
		func(e *proto.TargetTargetInfoChanged) { c.onTargetChanged(e.TargetInfo) },
		func(e *proto.TargetTargetDestroyed) { c.onTargetDestroyed(e.TargetID) },
	)()

	c.logger.Info("browser: target watch started", "existing", len(existing.TargetInfos))
	return nil
}

// Events is the platform change stream.
func (c *Chrome) Events() <-chan platform.Event { return c.events }

func (c *Chrome) rod() *rod.Browser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser
}

// emit never blocks the event pump; a stalled consumer loses events, and
// the periodic cache refresh repairs what that costs.
func (c *Chrome) emit(ev platform.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("browser: event dropped", "kind", string(ev.Kind))
	}
}

// adoptTarget upserts a target into the registry and reports its state.
// Window assignment from an API call wins over the event-pump default.
func (c *Chrome) adoptTarget(id proto.TargetTargetID, url, title string, window platform.WindowID, pinned bool) *tabState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.tabs[id]
	if !ok {
		st = &tabState{
			id:     c.nextTab,
			target: id,
			group:  platform.NoGroup,
			seq:    c.seq,
		}
		c.nextTab++
		c.seq++
		c.tabs[id] = st
		c.byID[st.id] = st
	}
	st.url = url
	st.title = title
	st.window = window
	st.pinned = pinned
	c.windows[window] = true
	return st
}

func (c *Chrome) onTargetCreated(info *proto.TargetTargetInfo) {
	if info == nil || info.Type != "page" {
		return
	}
	c.mu.Lock()
	_, known := c.tabs[info.TargetID]
	c.mu.Unlock()
	if known {
		return
	}
	st := c.adoptTarget(info.TargetID, info.URL, info.Title, c.defaultWin, false)
	c.emit(platform.Event{Kind: platform.TabCreated, Tab: c.tabOf(st)})
}

func (c *Chrome) onTargetChanged(info *proto.TargetTargetInfo) {
	if info == nil || info.Type != "page" {
		return
	}
	c.mu.Lock()
	st, ok := c.tabs[info.TargetID]
	if !ok {
		c.mu.Unlock()
		return
	}
	oldURL := st.url
	st.url = info.URL
	st.title = info.Title
	tab := c.tabLocked(st)
	c.mu.Unlock()

	c.emit(platform.Event{Kind: platform.TabUpdated, Tab: &tab, OldURL: oldURL})
}

func (c *Chrome) onTargetDestroyed(id proto.TargetTargetID) {
	c.mu.Lock()
	st, ok := c.tabs[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.tabs, id)
	delete(c.byID, st.id)

	remaining := 0
	for _, other := range c.tabs {
		if other.window == st.window {
			remaining++
		}
	}
	windowClosing := remaining == 0
	if windowClosing && st.window != c.defaultWin {
		delete(c.windows, st.window)
	}

	// The browser focuses a neighbour when the active tab goes away.
	if st.active && remaining > 0 {
		var next *tabState
		for _, other := range c.tabs {
			if other.window != st.window {
				continue
			}
			if next == nil || other.seq < next.seq {
				next = other
			}
		}
		if next != nil {
			next.active = true
		}
	}

	var emptiedGroup platform.GroupID = platform.NoGroup
	if st.group != platform.NoGroup {
		members := 0
		for _, other := range c.tabs {
			if other.group == st.group {
				members++
			}
		}
		if members == 0 {
			emptiedGroup = st.group
			delete(c.groups, st.group)
		}
	}
	c.mu.Unlock()

	c.emit(platform.Event{
		Kind:          platform.TabRemoved,
		TabID:         st.id,
		WindowID:      st.window,
		WindowClosing: windowClosing,
	})
	if emptiedGroup != platform.NoGroup {
		c.emit(platform.Event{Kind: platform.GroupRemoved, GroupID: emptiedGroup})
	}
}

func (c *Chrome) tabLocked(st *tabState) platform.Tab {
	index := 0
	for _, other := range c.tabs {
		if other.window == st.window && other.seq < st.seq {
			index++
		}
	}
	return platform.Tab{
		ID:       st.id,
		URL:      st.url,
		Title:    st.title,
		Index:    index,
		Active:   st.active,
		Pinned:   st.pinned,
		GroupID:  st.group,
		WindowID: st.window,
	}
}

func (c *Chrome) tabOf(st *tabState) *platform.Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	tab := c.tabLocked(st)
	return &tab
}

func (c *Chrome) Tabs(_ context.Context, windowID platform.WindowID) ([]platform.Tab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.Tab
	for _, st := range c.tabs {
		if st.window == windowID {
			out = append(out, c.tabLocked(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (c *Chrome) AllTabs(_ context.Context) ([]platform.Tab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.Tab
	for _, st := range c.tabs {
		out = append(out, c.tabLocked(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Chrome) Groups(_ context.Context, windowID platform.WindowID) ([]platform.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.Group
	for _, g := range c.groups {
		if g.WindowID == windowID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Chrome) AllGroups(_ context.Context) ([]platform.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.Group
	for _, g := range c.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Chrome) Windows(_ context.Context) ([]platform.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []platform.Window
	for id := range c.windows {
		out = append(out, platform.Window{ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Chrome) Window(_ context.Context, id platform.WindowID) (*platform.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.windows[id] {
		return nil, fmt.Errorf("browser: window %d not found", id)
	}
	return &platform.Window{ID: id}, nil
}

func (c *Chrome) ActiveTab(_ context.Context) (*platform.Tab, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.tabs {
		if st.active {
			tab := c.tabLocked(st)
			return &tab, nil
		}
	}
	return nil, nil
}

// CreateWindow allocates a window and opens its initial blank page, the way
// a real window comes up.
func (c *Chrome) CreateWindow(ctx context.Context) (platform.WindowID, error) {
	b := c.rod()
	if b == nil {
		return 0, fmt.Errorf("browser: not bound")
	}

	c.mu.Lock()
	id := c.nextWindow
	c.nextWindow++
	c.windows[id] = true
	c.mu.Unlock()

	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return 0, fmt.Errorf("browser: create window: %w", err)
	}
	c.adoptTarget(page.TargetID, "about:blank", "", id, false)
	return id, nil
}

// CreateTab opens a stealth page and navigates it. The page is adopted into
// the requested window before navigation so events land on the right side
// of the registry.
func (c *Chrome) CreateTab(ctx context.Context, req platform.CreateTab) (*platform.Tab, error) {
	b := c.rod()
	if b == nil {
		return nil, fmt.Errorf("browser: not bound")
	}
	c.mu.Lock()
	known := c.windows[req.WindowID]
	c.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("browser: window %d not found", req.WindowID)
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	st := c.adoptTarget(page.TargetID, req.URL, "", req.WindowID, req.Pinned)

	if req.URL != "" {
		if err := page.Context(ctx).Navigate(req.URL); err != nil {
			_ = page.Close()
			c.dropTarget(page.TargetID)
			return nil, fmt.Errorf("browser: navigate %s: %w", req.URL, err)
		}
	}
	if req.Active {
		if err := c.ActivateTab(ctx, st.id); err != nil {
			c.logger.Warn("browser: activate created tab", "tab", st.id, "error", err)
		}
	}
	return c.tabOf(st), nil
}

func (c *Chrome) dropTarget(id proto.TargetTargetID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.tabs[id]; ok {
		delete(c.tabs, id)
		delete(c.byID, st.id)
	}
}

func (c *Chrome) ActivateTab(_ context.Context, id platform.TabID) error {
	c.mu.Lock()
	st, ok := c.byID[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("browser: tab %d not found", id)
	}
	for _, other := range c.tabs {
		other.active = false
	}
	st.active = true
	target := st.target
	b := c.browser
	c.mu.Unlock()

	if b == nil {
		return nil
	}
	if err := (proto.TargetActivateTarget{TargetID: target}).Call(b); err != nil {
		return fmt.Errorf("browser: activate target: %w", err)
	}
	return nil
}

func (c *Chrome) RemoveTabs(_ context.Context, ids []platform.TabID) error {
	b := c.rod()
	if b == nil {
		return fmt.Errorf("browser: not bound")
	}
	for _, id := range ids {
		c.mu.Lock()
		st, ok := c.byID[id]
		c.mu.Unlock()
		if !ok {
			continue
		}
		if _, err := (proto.TargetCloseTarget{TargetID: st.target}).Call(b); err != nil {
			c.logger.Warn("browser: close target", "tab", id, "error", err)
		}
	}
	return nil
}

func (c *Chrome) GroupTabs(_ context.Context, windowID platform.WindowID, ids []platform.TabID) (platform.GroupID, error) {
	if len(ids) == 0 {
		return platform.NoGroup, fmt.Errorf("browser: group with no tabs")
	}

	c.mu.Lock()
	for _, id := range ids {
		if _, ok := c.byID[id]; !ok {
			c.mu.Unlock()
			return platform.NoGroup, fmt.Errorf("browser: tab %d not found", id)
		}
	}
	g := &platform.Group{
		ID:       c.nextGroup,
		Color:    platform.ColorGrey,
		WindowID: windowID,
	}
	c.nextGroup++
	c.groups[g.ID] = g
	for _, id := range ids {
		c.byID[id].group = g.ID
	}
	group := *g
	c.mu.Unlock()

	c.emit(platform.Event{Kind: platform.GroupCreated, Group: &group})
	return group.ID, nil
}

func (c *Chrome) UpdateGroup(_ context.Context, id platform.GroupID, upd platform.UpdateGroup) error {
	c.mu.Lock()
	g, ok := c.groups[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("browser: group %d not found", id)
	}
	g.Title = upd.Title
	g.Color = upd.Color
	g.Collapsed = upd.Collapsed
	group := *g
	c.mu.Unlock()

	c.emit(platform.Event{Kind: platform.GroupUpdated, Group: &group})
	return nil
}
