package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hazyhaar/tabkeeper/internal/store"
)

// Storage keys, one bounded list per category.
const (
	keyManual = "savedSessions"
	keyAuto   = "autoSavedSessions"
	keyClosed = "closedSessions"
)

// SnapStore keeps the three bounded, ordered snapshot collections in the
// local persistence scope. Auto and closed lists are newest-first; the
// manual list is kept in insertion order and reversed for display.
type SnapStore struct {
	kv     *store.Store
	logger *slog.Logger
}

// NewSnapStore wraps an opened store.
func NewSnapStore(kv *store.Store, logger *slog.Logger) *SnapStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapStore{kv: kv, logger: logger}
}

func keyFor(cat Category) (string, int) {
	switch cat {
	case CategoryManual:
		return keyManual, manualCap
	case CategoryClosed:
		return keyClosed, closedCap
	default:
		return keyAuto, autoCap
	}
}

func (ss *SnapStore) load(ctx context.Context, key string) ([]Snapshot, error) {
	var list []Snapshot
	err := ss.kv.GetJSON(ctx, store.ScopeLocal, key, &list)
	if errors.Is(err, store.ErrNoKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (ss *SnapStore) save(ctx context.Context, key string, list []Snapshot) error {
	if list == nil {
		list = []Snapshot{}
	}
	return ss.kv.SetJSON(ctx, store.ScopeLocal, key, list)
}

// Insert stores a snapshot in its category, evicting per that category's
// fixed capacity. Manual snapshots are appended (oldest evicted from the
// front); auto and closed snapshots are prepended (tail truncated).
func (ss *SnapStore) Insert(ctx context.Context, snap *Snapshot) error {
	key, capacity := keyFor(snap.Category())

	list, err := ss.load(ctx, key)
	if err != nil {
		return err
	}

	if snap.Category() == CategoryManual {
		list = append(list, *snap)
		if len(list) > capacity {
			list = list[len(list)-capacity:]
		}
	} else {
		list = append([]Snapshot{*snap}, list...)
		if len(list) > capacity {
			list = list[:capacity]
		}
	}

	if err := ss.save(ctx, key, list); err != nil {
		return err
	}
	ss.logger.Debug("sessions: snapshot stored",
		"id", snap.ID, "category", string(snap.Category()), "tabs", snap.TabCount)
	return nil
}

// Find locates a snapshot by id, scanning manual, then auto, then closed.
// First match wins.
func (ss *SnapStore) Find(ctx context.Context, id string) (*Snapshot, error) {
	for _, key := range []string{keyManual, keyAuto, keyClosed} {
		list, err := ss.load(ctx, key)
		if err != nil {
			return nil, err
		}
		for i := range list {
			if list[i].ID == id {
				return &list[i], nil
			}
		}
	}
	return nil, ErrNotFound
}

// LatestAuto reports the most recent auto-saved snapshot, or nil when none
// exists.
func (ss *SnapStore) LatestAuto(ctx context.Context) (*Snapshot, error) {
	list, err := ss.load(ctx, keyAuto)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// List returns one category's snapshots in stored order.
func (ss *SnapStore) List(ctx context.Context, cat Category) ([]Snapshot, error) {
	key, _ := keyFor(cat)
	return ss.load(ctx, key)
}

// ListManual returns manual snapshots newest-first for display.
func (ss *SnapStore) ListManual(ctx context.Context) ([]Snapshot, error) {
	list, err := ss.load(ctx, keyManual)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt > list[j].CreatedAt })
	return list, nil
}

// Rename changes a manual snapshot's display name. Missing ids report
// ErrNotFound. Only the manual category supports rename.
func (ss *SnapStore) Rename(ctx context.Context, id, newName string) error {
	list, err := ss.load(ctx, keyManual)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			list[i].Name = newName
			return ss.save(ctx, keyManual, list)
		}
	}
	return ErrNotFound
}

// DeleteManual removes a manual snapshot by id alone. A missing id is a
// no-op: manual sessions never share id-space with other categories, and
// the original contract reports success either way.
func (ss *SnapStore) DeleteManual(ctx context.Context, id string) error {
	list, err := ss.load(ctx, keyManual)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, s := range list {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	return ss.save(ctx, keyManual, kept)
}

// Delete removes a snapshot from the auto or closed category, selected by
// the caller's explicit category argument ("closed" selects closed,
// anything else selects auto). Missing ids report ErrNotFound. This is
// deliberately a different contract from DeleteManual.
func (ss *SnapStore) Delete(ctx context.Context, id string, category string) error {
	key := keyAuto
	if category == string(CategoryClosed) {
		key = keyClosed
	}

	list, err := ss.load(ctx, key)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			list = append(list[:i], list[i+1:]...)
			return ss.save(ctx, key, list)
		}
	}
	return ErrNotFound
}

// Clear wipes the auto or closed category. The manual category has no bulk
// clear.
func (ss *SnapStore) Clear(ctx context.Context, category string) error {
	key := keyAuto
	if category == string(CategoryClosed) {
		key = keyClosed
	}
	if err := ss.save(ctx, key, nil); err != nil {
		return fmt.Errorf("sessions: clear %s: %w", category, err)
	}
	return nil
}
