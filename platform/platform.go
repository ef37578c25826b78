// Package platform defines the boundary between the session engine and the
// browser it manages: tab/group/window records, change events, and the
// Platform interface for querying and mutating live browser state.
//
// Identifiers are ephemeral. A TabID, GroupID, or WindowID is only valid
// while the underlying browser entity exists; the session engine never keeps
// one across a suspension point without re-resolving it.
package platform

import "context"

// TabID identifies a live tab. Invalid once the tab closes.
type TabID int64

// GroupID identifies a live tab group. NoGroup marks an ungrouped tab.
type GroupID int64

// WindowID identifies a live browser window.
type WindowID int64

// NoGroup is the group-membership sentinel for ungrouped tabs.
const NoGroup GroupID = -1

// GroupColor is one of the fixed group palette colors.
type GroupColor string

const (
	ColorGrey   GroupColor = "grey"
	ColorBlue   GroupColor = "blue"
	ColorRed    GroupColor = "red"
	ColorYellow GroupColor = "yellow"
	ColorGreen  GroupColor = "green"
	ColorPink   GroupColor = "pink"
	ColorPurple GroupColor = "purple"
	ColorCyan   GroupColor = "cyan"
	ColorOrange GroupColor = "orange"
)

// Tab is a live tab as reported by the browser.
type Tab struct {
	ID       TabID
	URL      string
	Title    string
	Index    int
	Active   bool
	Pinned   bool
	GroupID  GroupID
	WindowID WindowID
	Favicon  string
}

// Group is a live tab group.
type Group struct {
	ID        GroupID
	Title     string
	Color     GroupColor
	Collapsed bool
	WindowID  WindowID
}

// Window is a live browser window.
type Window struct {
	ID WindowID
}

// CreateTab holds the parameters for opening a new tab.
type CreateTab struct {
	WindowID WindowID
	URL      string
	Pinned   bool
	Active   bool
}

// UpdateGroup holds the display attributes applied to a group after creation.
type UpdateGroup struct {
	Title     string
	Color     GroupColor
	Collapsed bool
}

// Platform is the tab/window/group management API the session engine
// consumes. Every call is an independent suspension point: state read before
// a call may be stale after it, so callers tolerate missing entities rather
// than assuming continuity.
type Platform interface {
	// Tabs lists the tabs of one window.
	Tabs(ctx context.Context, windowID WindowID) ([]Tab, error)
	// AllTabs lists every tab across all windows.
	AllTabs(ctx context.Context) ([]Tab, error)
	// Groups lists the groups of one window.
	Groups(ctx context.Context, windowID WindowID) ([]Group, error)
	// AllGroups lists every group across all windows.
	AllGroups(ctx context.Context) ([]Group, error)
	// Windows lists all open windows.
	Windows(ctx context.Context) ([]Window, error)
	// Window reports one window, or an error if it no longer exists.
	Window(ctx context.Context, id WindowID) (*Window, error)
	// ActiveTab reports the focused tab of the last-focused window, or nil
	// if no window has an active tab.
	ActiveTab(ctx context.Context) (*Tab, error)

	// CreateWindow opens a new empty window.
	CreateWindow(ctx context.Context) (WindowID, error)
	// CreateTab opens a new tab.
	CreateTab(ctx context.Context, req CreateTab) (*Tab, error)
	// ActivateTab focuses a tab.
	ActivateTab(ctx context.Context, id TabID) error
	// RemoveTabs closes tabs. Unknown ids are ignored.
	RemoveTabs(ctx context.Context, ids []TabID) error

	// GroupTabs forms a new group in windowID from the given tabs.
	GroupTabs(ctx context.Context, windowID WindowID, ids []TabID) (GroupID, error)
	// UpdateGroup applies display attributes to a group.
	UpdateGroup(ctx context.Context, id GroupID, upd UpdateGroup) error

	// Events is the change-notification stream. Delivery order is preserved
	// per entity but not globally serialized against timers.
	Events() <-chan Event
}
