package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/tabkeeper/internal/store"
)

// Auto-save trigger modes.
const (
	TriggerTime   = "time"
	TriggerChange = "change"
)

// Sync-scope settings keys, one per field.
const (
	keyEnabled         = "autoSaveEnabled"
	keyTrigger         = "autoSaveTrigger"
	keyInterval        = "autoSaveInterval"
	keyDetectTabClose  = "detectTabClose"
	keyDetectTabCreate = "detectTabCreate"
	keyDetectURLChange = "detectUrlChange"
	keyAllWindows      = "autoSaveAllWindows"
)

// AutoSaveSettings is the process-wide capture policy. It has exactly one
// logical writer: the keeper loop, on behalf of user settings messages.
type AutoSaveSettings struct {
	Enabled         bool   `json:"enabled"`
	Trigger         string `json:"trigger"`  // time | change
	Interval        int    `json:"interval"` // seconds, time mode
	DetectTabClose  bool   `json:"detectTabClose"`
	DetectTabCreate bool   `json:"detectTabCreate"`
	DetectURLChange bool   `json:"detectUrlChange"`
	AllWindows      bool   `json:"allWindows"`
}

// DefaultSettings is the hardcoded fallback: the system must never run with
// an undefined trigger policy.
func DefaultSettings() AutoSaveSettings {
	return AutoSaveSettings{
		Enabled:         true,
		Trigger:         TriggerTime,
		Interval:        60,
		DetectTabClose:  true,
		DetectTabCreate: true,
		DetectURLChange: true,
	}
}

// LoadSettings reads persisted settings, retrying up to three times with
// linear backoff (1×, 2×, 3× the unit) before falling back to defaults.
// Keys that were never written keep their default values; only storage
// failures trigger the retry path.
func LoadSettings(ctx context.Context, kv *store.Store, logger *slog.Logger, backoffUnit time.Duration) AutoSaveSettings {
	if logger == nil {
		logger = slog.Default()
	}

	const maxRetries = 3
	for attempt := 0; ; attempt++ {
		s, err := readSettings(ctx, kv)
		if err == nil {
			logger.Info("sessions: auto-save settings loaded",
				"enabled", s.Enabled, "trigger", s.Trigger, "interval", s.Interval)
			return s
		}

		if attempt >= maxRetries {
			logger.Error("sessions: settings load failed after retries, using defaults", "error", err)
			return DefaultSettings()
		}

		wait := backoffUnit * time.Duration(attempt+1)
		logger.Warn("sessions: settings load failed, retrying",
			"attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return DefaultSettings()
		case <-time.After(wait):
		}
	}
}

func readSettings(ctx context.Context, kv *store.Store) (AutoSaveSettings, error) {
	s := DefaultSettings()

	read := func(key string, v any) error {
		err := kv.GetJSON(ctx, store.ScopeSync, key, v)
		if errors.Is(err, store.ErrNoKey) {
			return nil
		}
		return err
	}

	for key, dst := range map[string]any{
		keyEnabled:         &s.Enabled,
		keyTrigger:         &s.Trigger,
		keyInterval:        &s.Interval,
		keyDetectTabClose:  &s.DetectTabClose,
		keyDetectTabCreate: &s.DetectTabCreate,
		keyDetectURLChange: &s.DetectURLChange,
		keyAllWindows:      &s.AllWindows,
	} {
		if err := read(key, dst); err != nil {
			return s, fmt.Errorf("sessions: read %s: %w", key, err)
		}
	}
	return s, nil
}

// SaveSettings persists every field under its own sync key.
func SaveSettings(ctx context.Context, kv *store.Store, s AutoSaveSettings) error {
	for key, v := range map[string]any{
		keyEnabled:         s.Enabled,
		keyTrigger:         s.Trigger,
		keyInterval:        s.Interval,
		keyDetectTabClose:  s.DetectTabClose,
		keyDetectTabCreate: s.DetectTabCreate,
		keyDetectURLChange: s.DetectURLChange,
		keyAllWindows:      s.AllWindows,
	} {
		if err := kv.SetJSON(ctx, store.ScopeSync, key, v); err != nil {
			return fmt.Errorf("sessions: save %s: %w", key, err)
		}
	}
	return nil
}
