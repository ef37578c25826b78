package platform

// EventKind discriminates platform change notifications.
type EventKind string

const (
	TabCreated   EventKind = "tab_created"
	TabUpdated   EventKind = "tab_updated"
	TabMoved     EventKind = "tab_moved"
	TabAttached  EventKind = "tab_attached"
	TabDetached  EventKind = "tab_detached"
	TabRemoved   EventKind = "tab_removed"
	GroupCreated EventKind = "group_created"
	GroupUpdated EventKind = "group_updated"
	GroupMoved   EventKind = "group_moved"
	GroupRemoved EventKind = "group_removed"
)

// Event is one platform change notification. Which fields are meaningful
// depends on Kind:
//
//   - tab_* events carry Tab (except tab_removed, which carries only TabID,
//     WindowID and WindowClosing — the tab is already gone).
//   - tab_updated additionally carries OldURL when the URL changed.
//   - group_* events carry Group (group_removed carries only GroupID).
type Event struct {
	Kind EventKind

	Tab    *Tab
	OldURL string

	TabID         TabID
	WindowID      WindowID
	WindowClosing bool

	Group   *Group
	GroupID GroupID
}
