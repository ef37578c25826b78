package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/hazyhaar/tabkeeper/platform"
	"github.com/hazyhaar/tabkeeper/internal/store"
)

// Keeper timing defaults.
const (
	defaultCacheRefresh    = 10 * time.Second
	defaultSettleDelay     = time.Second
	defaultSettingsBackoff = time.Second
)

// KeeperOptions tunes the keeper's timers. CacheRefresh and SettingsBackoff
// fall back to the defaults when non-positive. SettleDelay falls back only
// when negative; zero means capture immediately on a change trigger.
type KeeperOptions struct {
	CacheRefresh    time.Duration
	SettleDelay     time.Duration
	SettingsBackoff time.Duration
}

// Keeper is the orchestrator: it owns the event loop that mirrors platform
// changes into the observation cache, fires capture triggers under the
// current settings, and exposes the message-facing session operations.
//
// All trigger-driven capture work runs on the loop goroutine. The exported
// operation methods are safe to call concurrently with the loop; they share
// state only through the mutex-guarded cache and the store.
type Keeper struct {
	plat     platform.Platform
	kv       *store.Store
	cache    *Cache
	snaps    *SnapStore
	capturer *Capturer
	restorer *Restorer
	logger   *slog.Logger

	refreshEvery    time.Duration
	settleDelay     time.Duration
	settingsBackoff time.Duration

	mu            sync.Mutex
	settings      AutoSaveSettings
	settlePending bool

	settleCh chan struct{}
	reconfig chan struct{}
}

// NewKeeper assembles a keeper and its engine parts over an opened store.
func NewKeeper(plat platform.Platform, kv *store.Store, logger *slog.Logger, opts KeeperOptions) *Keeper {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CacheRefresh <= 0 {
		opts.CacheRefresh = defaultCacheRefresh
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.SettingsBackoff <= 0 {
		opts.SettingsBackoff = defaultSettingsBackoff
	}

	cache := NewCache(logger)
	snaps := NewSnapStore(kv, logger)
	return &Keeper{
		plat:            plat,
		kv:              kv,
		cache:           cache,
		snaps:           snaps,
		capturer:        NewCapturer(plat, snaps, cache, logger),
		restorer:        NewRestorer(plat, snaps, logger),
		logger:          logger,
		refreshEvery:    opts.CacheRefresh,
		settleDelay:     opts.SettleDelay,
		settingsBackoff: opts.SettingsBackoff,
		settings:        DefaultSettings(),
		settleCh:        make(chan struct{}, 1),
		reconfig:        make(chan struct{}, 1),
	}
}

// Run loads settings, primes the cache, and processes events and timers
// until ctx ends or the platform closes its event stream.
func (k *Keeper) Run(ctx context.Context) error {
	k.setSettings(LoadSettings(ctx, k.kv, k.logger, k.settingsBackoff))
	k.cache.Refresh(ctx, k.plat)

	refresh := time.NewTicker(k.refreshEvery)
	defer refresh.Stop()
	interval := time.NewTicker(k.intervalDuration())
	defer interval.Stop()

	k.logger.Info("sessions: keeper running",
		"cache_refresh", k.refreshEvery, "settle", k.settleDelay)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-k.plat.Events():
			if !ok {
				return nil
			}
			k.handleEvent(ctx, ev)
		case <-refresh.C:
			k.cache.Refresh(ctx, k.plat)
		case <-interval.C:
			k.intervalCapture(ctx)
		case <-k.settleCh:
			k.changeCapture(ctx)
		case <-k.reconfig:
			interval.Reset(k.intervalDuration())
		}
	}
}

func (k *Keeper) handleEvent(ctx context.Context, ev platform.Event) {
	switch ev.Kind {
	case platform.TabCreated:
		if ev.Tab != nil {
			k.cache.UpsertTab(*ev.Tab)
		}
		k.scheduleChangeCapture(func(s AutoSaveSettings) bool { return s.DetectTabCreate })

	case platform.TabUpdated:
		if ev.Tab == nil {
			return
		}
		k.cache.UpsertTab(*ev.Tab)
		if urlChanged(ev.OldURL, ev.Tab.URL) {
			k.scheduleChangeCapture(func(s AutoSaveSettings) bool { return s.DetectURLChange })
		}

	case platform.TabMoved, platform.TabAttached, platform.TabDetached:
		if ev.Tab != nil {
			k.cache.UpsertTab(*ev.Tab)
		}

	case platform.TabRemoved:
		// The closed-session trail is kept regardless of auto-save settings.
		if _, err := k.capturer.CaptureClosed(ctx, ev.TabID, ev.WindowID, ev.WindowClosing); err != nil {
			k.logger.Error("sessions: closed capture", "tab", ev.TabID, "error", err)
		}
		k.scheduleChangeCapture(func(s AutoSaveSettings) bool { return s.DetectTabClose })

	case platform.GroupCreated, platform.GroupUpdated, platform.GroupMoved:
		if ev.Group != nil {
			k.cache.UpsertGroup(*ev.Group)
		}

	case platform.GroupRemoved:
		if n := k.cache.GroupRemoved(ev.GroupID); n > 0 {
			k.logger.Debug("sessions: group removed, tabs retagged", "group", ev.GroupID, "tabs", n)
		}
	}
}

// scheduleChangeCapture arms the settle timer when the current settings
// enable change-triggered capture for this event. Repeated triggers inside
// the settle window coalesce into one capture.
func (k *Keeper) scheduleChangeCapture(detect func(AutoSaveSettings) bool) {
	k.mu.Lock()
	s := k.settings
	if !s.Enabled || s.Trigger != TriggerChange || !detect(s) || k.settlePending {
		k.mu.Unlock()
		return
	}
	k.settlePending = true
	k.mu.Unlock()

	time.AfterFunc(k.settleDelay, func() {
		select {
		case k.settleCh <- struct{}{}:
		default:
		}
	})
}

func (k *Keeper) changeCapture(ctx context.Context) {
	k.mu.Lock()
	k.settlePending = false
	s := k.settings
	k.mu.Unlock()
	if !s.Enabled || s.Trigger != TriggerChange {
		return
	}
	if _, err := k.capturer.CaptureAuto(ctx, s.AllWindows); err != nil {
		k.logger.Error("sessions: change-triggered capture", "error", err)
	}
}

func (k *Keeper) intervalCapture(ctx context.Context) {
	s := k.Settings()
	if !s.Enabled || s.Trigger != TriggerTime {
		return
	}
	if _, err := k.capturer.CaptureAuto(ctx, s.AllWindows); err != nil {
		k.logger.Error("sessions: interval capture", "error", err)
	}
}

func (k *Keeper) intervalDuration() time.Duration {
	s := k.Settings()
	if s.Interval < 1 {
		return time.Second
	}
	return time.Duration(s.Interval) * time.Second
}

// urlChanged reports whether a navigation actually moved the tab: hash and
// query churn on the same page does not count.
func urlChanged(oldURL, newURL string) bool {
	if oldURL == newURL {
		return false
	}
	if oldURL == "" || newURL == "" {
		return true
	}
	a, errA := url.Parse(oldURL)
	b, errB := url.Parse(newURL)
	if errA != nil || errB != nil {
		return true
	}
	return a.Host != b.Host || a.Path != b.Path
}

func (k *Keeper) setSettings(s AutoSaveSettings) {
	k.mu.Lock()
	k.settings = s
	k.mu.Unlock()
}

// Settings reports the current auto-save settings.
func (k *Keeper) Settings() AutoSaveSettings {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.settings
}

// SetSettings persists new settings and reschedules the interval timer.
func (k *Keeper) SetSettings(ctx context.Context, s AutoSaveSettings) error {
	if s.Trigger != TriggerTime && s.Trigger != TriggerChange {
		return fmt.Errorf("sessions: unknown trigger %q", s.Trigger)
	}
	if err := SaveSettings(ctx, k.kv, s); err != nil {
		return err
	}
	k.setSettings(s)
	select {
	case k.reconfig <- struct{}{}:
	default:
	}
	k.logger.Info("sessions: auto-save settings updated",
		"enabled", s.Enabled, "trigger", s.Trigger, "interval", s.Interval)
	return nil
}

// ToggleAutoSave flips the master enable switch.
func (k *Keeper) ToggleAutoSave(ctx context.Context, enabled bool) (AutoSaveSettings, error) {
	s := k.Settings()
	s.Enabled = enabled
	if err := k.SetSettings(ctx, s); err != nil {
		return AutoSaveSettings{}, err
	}
	return s, nil
}

// SaveSession captures the current window as a named manual session.
func (k *Keeper) SaveSession(ctx context.Context, name string) (*Snapshot, error) {
	return k.capturer.CaptureManual(ctx, name)
}

// RestoreSession reopens a stored session.
func (k *Keeper) RestoreSession(ctx context.Context, id string, newWindow bool) (*RestoreResult, error) {
	return k.restorer.RestoreSession(ctx, id, newWindow)
}

// RestoreGroup reopens one group of a stored session.
func (k *Keeper) RestoreGroup(ctx context.Context, id string, groupID int64, newWindow bool) (*RestoreResult, error) {
	return k.restorer.RestoreGroup(ctx, id, groupID, newWindow)
}

// SavedSessions lists manual sessions newest-first.
func (k *Keeper) SavedSessions(ctx context.Context) ([]Snapshot, error) {
	return k.snaps.ListManual(ctx)
}

// Sessions lists one category in stored order.
func (k *Keeper) Sessions(ctx context.Context, cat Category) ([]Snapshot, error) {
	return k.snaps.List(ctx, cat)
}

// DeleteSession removes an auto or closed session by id and category.
func (k *Keeper) DeleteSession(ctx context.Context, id, category string) error {
	return k.snaps.Delete(ctx, id, category)
}

// DeleteSavedSession removes a manual session by id.
func (k *Keeper) DeleteSavedSession(ctx context.Context, id string) error {
	return k.snaps.DeleteManual(ctx, id)
}

// ClearSessions wipes the auto or closed category.
func (k *Keeper) ClearSessions(ctx context.Context, category string) error {
	return k.snaps.Clear(ctx, category)
}

// RenameSession renames a manual session.
func (k *Keeper) RenameSession(ctx context.Context, id, newName string) error {
	return k.snaps.Rename(ctx, id, newName)
}
