// Package sessions implements the tabkeeper core: it mirrors live tab and
// group state in an observation cache, captures session snapshots (manual,
// auto, closed) under a trigger policy, keeps them in bounded per-category
// stores, and rebuilds windows, tabs and groups from a stored snapshot.
//
// The pipeline:
//
//	platform events → Cache update → (policy) → Capturer → SnapStore
//	restore request → SnapStore lookup → Restorer → platform mutations
//
// Snapshot-local ids and live platform ids are disjoint spaces: a record's
// id only relates tabs and groups within one snapshot, and is never assumed
// to still name a live entity.
package sessions

import (
	"errors"

	"github.com/hazyhaar/tabkeeper/platform"
)

// Category partitions snapshot storage. Each category has its own capacity
// and trigger.
type Category string

const (
	CategoryManual Category = "manual"
	CategoryAuto   Category = "auto"
	CategoryClosed Category = "closed"
)

// Per-category capacities. Fixed ring-buffer semantics, independent of each
// other.
const (
	manualCap = 20
	autoCap   = 50
	closedCap = 20
)

// ErrNotFound is returned when no store holds the requested snapshot. The
// message is part of the caller-facing contract.
var ErrNotFound = errors.New("Session not found")

// ErrGroupNotFound is returned when a snapshot has no tabs in the requested
// group. The message is part of the caller-facing contract.
var ErrGroupNotFound = errors.New("Group not found in session")

// ErrNoActiveWindow is returned when a restore targets the current window
// but no window has an active tab.
var ErrNoActiveWindow = errors.New("no active tab found")

// TabRecord is one tab as persisted in a snapshot. ID and SourceWindowID are
// snapshot-local: they relate records within this snapshot and are invalid
// as live identifiers.
type TabRecord struct {
	ID             int64             `json:"id"`
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	Index          int               `json:"index"`
	Active         bool              `json:"active"`
	Pinned         bool              `json:"pinned"`
	GroupID        int64             `json:"groupId"`
	SourceWindowID int64             `json:"sourceWindowId,omitempty"`
	Favicon        *string           `json:"favicon"`
}

// GroupRecord is one tab group as persisted in a snapshot. A GroupRecord
// with no referencing tabs is retained but produces no group on restore.
type GroupRecord struct {
	ID             int64               `json:"id"`
	Title          string              `json:"title"`
	Color          platform.GroupColor `json:"color"`
	Collapsed      bool                `json:"collapsed"`
	SourceWindowID int64               `json:"sourceWindowId,omitempty"`
}

// Snapshot is the unit of persistence: a point-in-time record of tabs and
// groups. Immutable once stored, except for rename in the manual category.
type Snapshot struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	CreatedAt       int64         `json:"createdAt"` // unix milliseconds
	IsAutoSaved     bool          `json:"isAutoSaved,omitempty"`
	IsClosedSession bool          `json:"isClosedSession,omitempty"`
	SaveAllWindows  bool          `json:"saveAllWindows,omitempty"`
	Tabs            []TabRecord   `json:"tabs"`
	Groups          []GroupRecord `json:"groups"`
	TabCount        int           `json:"tabCount"`
	GroupCount      int           `json:"groupCount"`
	WindowCount     int           `json:"windowCount"`
}

// Category reports which store partition a snapshot belongs to.
func (s *Snapshot) Category() Category {
	switch {
	case s.IsClosedSession:
		return CategoryClosed
	case s.IsAutoSaved:
		return CategoryAuto
	default:
		return CategoryManual
	}
}

// tabRecordFrom converts a live tab into its snapshot form. sourceWindow
// overrides the tab's own window when the capture spans multiple windows.
func tabRecordFrom(t platform.Tab, sourceWindow platform.WindowID) TabRecord {
	rec := TabRecord{
		ID:             int64(t.ID),
		URL:            t.URL,
		Title:          t.Title,
		Index:          t.Index,
		Active:         t.Active,
		Pinned:         t.Pinned,
		GroupID:        int64(t.GroupID),
		SourceWindowID: int64(sourceWindow),
	}
	if t.Favicon != "" {
		fav := t.Favicon
		rec.Favicon = &fav
	}
	return rec
}

func groupRecordFrom(g platform.Group, sourceWindow platform.WindowID) GroupRecord {
	return GroupRecord{
		ID:             int64(g.ID),
		Title:          g.Title,
		Color:          g.Color,
		Collapsed:      g.Collapsed,
		SourceWindowID: int64(sourceWindow),
	}
}
