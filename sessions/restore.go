package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/tabkeeper/platform"
)

// Restore pacing defaults. The platform stays responsive when tab creation
// is spread out; tests zero these.
const (
	defaultTabDelay      = 100 * time.Millisecond
	defaultGroupTabDelay = 200 * time.Millisecond
	defaultWindowSettle  = 500 * time.Millisecond
)

// Restorer rebuilds windows, tabs and groups from a stored snapshot.
type Restorer struct {
	plat   platform.Platform
	store  *SnapStore
	logger *slog.Logger

	// Pacing between platform mutations. Zero disables the pause.
	TabDelay      time.Duration
	GroupTabDelay time.Duration
	WindowSettle  time.Duration
}

// NewRestorer wires a restorer with default pacing.
func NewRestorer(plat platform.Platform, store *SnapStore, logger *slog.Logger) *Restorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{
		plat:          plat,
		store:         store,
		logger:        logger,
		TabDelay:      defaultTabDelay,
		GroupTabDelay: defaultGroupTabDelay,
		WindowSettle:  defaultWindowSettle,
	}
}

// RestoreResult reports what a restore actually achieved. TabsRequested
// counts the tabs eligible for creation after restricted URLs were dropped;
// Degraded marks a partial outcome the caller may want to surface.
type RestoreResult struct {
	TabsCreated   int
	TabsRequested int
	GroupsCreated int
	Degraded      bool
}

// RestoreSession reopens every tab and group of a snapshot, into a fresh
// window or the currently focused one. Individual tab failures degrade the
// result instead of aborting it; only zero created tabs is an error.
func (r *Restorer) RestoreSession(ctx context.Context, id string, newWindow bool) (*RestoreResult, error) {
	snap, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	windowID, err := r.targetWindow(ctx, newWindow)
	if err != nil {
		return nil, err
	}

	eligible := restorableTabs(snap.Tabs)
	res := &RestoreResult{TabsRequested: len(eligible)}

	created, byRecordID, activeNew := r.createTabs(ctx, windowID, eligible, r.TabDelay)
	res.TabsCreated = len(created)
	if res.TabsCreated == 0 {
		return nil, fmt.Errorf("sessions: restore %s: no tabs could be restored", id)
	}
	res.Degraded = res.TabsCreated < res.TabsRequested

	for _, g := range snap.Groups {
		var members []platform.TabID
		for _, rec := range eligible {
			if rec.GroupID != g.ID {
				continue
			}
			if newID, ok := byRecordID[rec.ID]; ok {
				members = append(members, newID)
			}
		}
		if len(members) == 0 {
			continue
		}
		if r.recreateGroup(ctx, windowID, g, members) {
			res.GroupsCreated++
		}
		r.pause(ctx, r.GroupTabDelay)
	}

	if activeNew != 0 {
		if err := r.plat.ActivateTab(ctx, activeNew); err != nil {
			r.logger.Warn("sessions: reactivate restored tab", "tab", activeNew, "error", err)
		}
	}
	if newWindow {
		r.cleanupBlankTabs(ctx, windowID, created)
	}

	r.logger.Info("sessions: session restored", "id", id,
		"tabs", res.TabsCreated, "of", res.TabsRequested, "groups", res.GroupsCreated)
	return res, nil
}

// RestoreGroup reopens one group of a snapshot. When the snapshot has no
// record for the group itself, display attributes fall back to an ad hoc
// group derived from the member tabs.
func (r *Restorer) RestoreGroup(ctx context.Context, id string, groupID int64, newWindow bool) (*RestoreResult, error) {
	snap, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	var members []TabRecord
	for _, rec := range snap.Tabs {
		if rec.GroupID == groupID {
			members = append(members, rec)
		}
	}
	if len(members) == 0 {
		return nil, ErrGroupNotFound
	}

	group := GroupRecord{
		ID:    groupID,
		Title: fmt.Sprintf("Restored Group (%d tabs)", len(members)),
		Color: platform.ColorBlue,
	}
	for _, g := range snap.Groups {
		if g.ID == groupID {
			group = g
			break
		}
	}

	windowID, err := r.targetWindow(ctx, newWindow)
	if err != nil {
		return nil, err
	}

	eligible := restorableTabs(members)
	res := &RestoreResult{TabsRequested: len(eligible)}

	created, _, _ := r.createTabs(ctx, windowID, eligible, r.GroupTabDelay)
	res.TabsCreated = len(created)
	if res.TabsCreated == 0 {
		return nil, fmt.Errorf("sessions: restore group %d of %s: no tabs could be restored", groupID, id)
	}
	res.Degraded = res.TabsCreated < res.TabsRequested

	if r.recreateGroup(ctx, windowID, group, created) {
		res.GroupsCreated = 1
	}

	if err := r.plat.ActivateTab(ctx, created[0]); err != nil {
		r.logger.Warn("sessions: activate restored group tab", "tab", created[0], "error", err)
	}
	if newWindow {
		r.cleanupBlankTabs(ctx, windowID, created)
	}

	r.logger.Info("sessions: group restored", "session", id, "group", groupID,
		"tabs", res.TabsCreated, "of", res.TabsRequested)
	return res, nil
}

// targetWindow resolves where restored tabs go: a freshly created window
// (confirmed to exist after the settle pause) or the focused tab's window.
func (r *Restorer) targetWindow(ctx context.Context, newWindow bool) (platform.WindowID, error) {
	if newWindow {
		id, err := r.plat.CreateWindow(ctx)
		if err != nil {
			return 0, fmt.Errorf("sessions: create window: %w", err)
		}
		r.pause(ctx, r.WindowSettle)
		if _, err := r.plat.Window(ctx, id); err != nil {
			return 0, fmt.Errorf("sessions: new window vanished: %w", err)
		}
		return id, nil
	}

	active, err := r.plat.ActiveTab(ctx)
	if err != nil {
		return 0, fmt.Errorf("sessions: resolve target window: %w", err)
	}
	if active == nil {
		return 0, ErrNoActiveWindow
	}
	return active.WindowID, nil
}

// restorableTabs drops records the platform refuses to open.
func restorableTabs(records []TabRecord) []TabRecord {
	var out []TabRecord
	for _, rec := range records {
		if RestrictedURL(rec.URL) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// createTabs opens records sequentially, inactive, with pacing. Failures are
// skipped. Returns the created ids in order, the record-id mapping used for
// group reassembly, and the new id of the originally active tab.
func (r *Restorer) createTabs(ctx context.Context, windowID platform.WindowID, records []TabRecord, delay time.Duration) ([]platform.TabID, map[int64]platform.TabID, platform.TabID) {
	var (
		created    []platform.TabID
		byRecordID = make(map[int64]platform.TabID, len(records))
		activeNew  platform.TabID
	)
	for i, rec := range records {
		tab, err := r.plat.CreateTab(ctx, platform.CreateTab{
			WindowID: windowID,
			URL:      rec.URL,
			Pinned:   rec.Pinned,
		})
		if err != nil {
			r.logger.Warn("sessions: restore tab failed", "url", rec.URL, "error", err)
			continue
		}
		created = append(created, tab.ID)
		byRecordID[rec.ID] = tab.ID
		if rec.Active {
			activeNew = tab.ID
		}
		if i < len(records)-1 {
			r.pause(ctx, delay)
		}
	}
	return created, byRecordID, activeNew
}

// recreateGroup groups the member tabs and applies the stored display
// attributes. Reports whether the group exists afterwards.
func (r *Restorer) recreateGroup(ctx context.Context, windowID platform.WindowID, g GroupRecord, members []platform.TabID) bool {
	newID, err := r.plat.GroupTabs(ctx, windowID, members)
	if err != nil {
		r.logger.Warn("sessions: recreate group failed", "title", g.Title, "error", err)
		return false
	}
	upd := platform.UpdateGroup{Title: g.Title, Color: g.Color, Collapsed: g.Collapsed}
	if upd.Color == "" {
		upd.Color = platform.ColorGrey
	}
	if err := r.plat.UpdateGroup(ctx, newID, upd); err != nil {
		r.logger.Warn("sessions: style restored group", "group", newID, "error", err)
	}
	return true
}

// cleanupBlankTabs closes the new-tab pages a fresh window starts with,
// leaving every tab this restore created untouched.
func (r *Restorer) cleanupBlankTabs(ctx context.Context, windowID platform.WindowID, created []platform.TabID) {
	keep := make(map[platform.TabID]bool, len(created))
	for _, id := range created {
		keep[id] = true
	}

	tabs, err := r.plat.Tabs(ctx, windowID)
	if err != nil {
		r.logger.Warn("sessions: list tabs for cleanup", "window", windowID, "error", err)
		return
	}
	var blank []platform.TabID
	for _, t := range tabs {
		if keep[t.ID] {
			continue
		}
		if t.URL == "" || t.URL == "about:blank" || strings.Contains(t.URL, "chrome://newtab") {
			blank = append(blank, t.ID)
		}
	}
	if len(blank) == 0 {
		return
	}
	if err := r.plat.RemoveTabs(ctx, blank); err != nil {
		r.logger.Warn("sessions: close blank tabs", "window", windowID, "error", err)
	}
}

// pause waits for d unless the context ends first.
func (r *Restorer) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
