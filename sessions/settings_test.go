package sessions

import (
	"context"
	"testing"

	"github.com/hazyhaar/tabkeeper/internal/store"
)

func TestSettingsRoundTrip(t *testing.T) {
	kv := store.OpenMemory(t)
	ctx := context.Background()

	want := AutoSaveSettings{
		Enabled:         false,
		Trigger:         TriggerChange,
		Interval:        120,
		DetectTabClose:  true,
		DetectTabCreate: false,
		DetectURLChange: true,
		AllWindows:      true,
	}
	if err := SaveSettings(ctx, kv, want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got := LoadSettings(ctx, kv, testLogger(t), 0)
	if got != want {
		t.Fatalf("LoadSettings = %+v, want %+v", got, want)
	}
}

func TestSettingsDefaultsWhenUnset(t *testing.T) {
	kv := store.OpenMemory(t)

	got := LoadSettings(context.Background(), kv, testLogger(t), 0)
	if got != DefaultSettings() {
		t.Fatalf("LoadSettings on empty store = %+v, want defaults %+v", got, DefaultSettings())
	}
	if !got.Enabled || got.Trigger != TriggerTime || got.Interval != 60 {
		t.Fatalf("defaults drifted: %+v", got)
	}
}

func TestSettingsPartialOverride(t *testing.T) {
	kv := store.OpenMemory(t)
	ctx := context.Background()

	// Only one key written; the rest must stay at defaults.
	if err := kv.SetJSON(ctx, store.ScopeSync, keyInterval, 300); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	got := LoadSettings(ctx, kv, testLogger(t), 0)
	if got.Interval != 300 {
		t.Fatalf("Interval = %d, want 300", got.Interval)
	}
	if !got.Enabled || got.Trigger != TriggerTime || !got.DetectTabClose {
		t.Fatalf("untouched fields drifted: %+v", got)
	}
}

func TestSettingsFallbackAfterRetries(t *testing.T) {
	kv := store.OpenMemory(t)
	kv.Close() // every read now fails

	got := LoadSettings(context.Background(), kv, testLogger(t), 0)
	if got != DefaultSettings() {
		t.Fatalf("LoadSettings on broken store = %+v, want defaults", got)
	}
}
