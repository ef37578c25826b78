package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/tabkeeper/platform"
	"github.com/hazyhaar/tabkeeper/platform/platformtest"
	"github.com/hazyhaar/tabkeeper/internal/store"
)

func testCapturer(t *testing.T, fake *platformtest.Fake) (*Capturer, *SnapStore, *Cache) {
	t.Helper()
	kv := store.OpenMemory(t)
	snaps := NewSnapStore(kv, testLogger(t))
	cache := NewCache(testLogger(t))
	return NewCapturer(fake, snaps, cache, testLogger(t)), snaps, cache
}

func TestCaptureManual(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	fake.AddTab(platform.Tab{URL: "https://b.example/", Title: "B"})
	fake.AddTab(platform.Tab{URL: "chrome://settings/", Title: "Settings"})

	c, snaps, _ := testCapturer(t, fake)
	snap, err := c.CaptureManual(context.Background(), "")
	if err != nil {
		t.Fatalf("CaptureManual: %v", err)
	}

	if !strings.HasPrefix(snap.ID, "session_") {
		t.Fatalf("id = %s, want session_ prefix", snap.ID)
	}
	if !strings.HasPrefix(snap.Name, "Session ") {
		t.Fatalf("default name = %q", snap.Name)
	}
	if snap.TabCount != 2 {
		t.Fatalf("TabCount = %d, want 2 (privileged tab filtered)", snap.TabCount)
	}
	if snap.WindowCount != 1 {
		t.Fatalf("WindowCount = %d, want 1", snap.WindowCount)
	}

	stored, err := snaps.Find(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("Find after capture: %v", err)
	}
	if stored.Category() != CategoryManual {
		t.Fatalf("category = %s, want manual", stored.Category())
	}
}

func TestCaptureManualNoActiveWindow(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A"}) // not active

	c, _, _ := testCapturer(t, fake)
	if _, err := c.CaptureManual(context.Background(), "x"); err != ErrNoActiveWindow {
		t.Fatalf("err = %v, want ErrNoActiveWindow", err)
	}
}

func TestCaptureAutoThrottle(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})

	c, snaps, _ := testCapturer(t, fake)
	clock := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return clock }

	first, err := c.CaptureAuto(context.Background(), false)
	if err != nil || first == nil {
		t.Fatalf("first capture = %v, %v", first, err)
	}

	clock = clock.Add(2 * time.Second)
	second, err := c.CaptureAuto(context.Background(), false)
	if err != nil {
		t.Fatalf("throttled capture errored: %v", err)
	}
	if second != nil {
		t.Fatal("capture inside the throttle window must be dropped")
	}

	clock = clock.Add(10 * time.Second)
	third, err := c.CaptureAuto(context.Background(), false)
	if err != nil || third == nil {
		t.Fatalf("post-throttle capture = %v, %v", third, err)
	}

	list, err := snaps.List(context.Background(), CategoryAuto)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("stored auto snapshots = %d, want 2", len(list))
	}
}

func TestCaptureAutoAllWindows(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	w2 := fake.AddWindow()
	fake.AddTab(platform.Tab{URL: "https://b.example/", Title: "B", WindowID: w2})
	fake.AddGroup(platform.Group{Title: "Work", Color: platform.ColorBlue, WindowID: w2})

	c, _, _ := testCapturer(t, fake)
	snap, err := c.CaptureAuto(context.Background(), true)
	if err != nil || snap == nil {
		t.Fatalf("CaptureAuto = %v, %v", snap, err)
	}

	if snap.WindowCount != 2 {
		t.Fatalf("WindowCount = %d, want 2", snap.WindowCount)
	}
	if !snap.SaveAllWindows || !snap.IsAutoSaved {
		t.Fatalf("flags: %+v", snap)
	}
	windows := map[int64]bool{}
	for _, tab := range snap.Tabs {
		windows[tab.SourceWindowID] = true
	}
	if len(windows) != 2 {
		t.Fatalf("source windows recorded = %v, want both", windows)
	}
	if snap.GroupCount != 1 || snap.Groups[0].SourceWindowID != int64(w2) {
		t.Fatalf("group tagging: %+v", snap.Groups)
	}
}

func TestCaptureAutoAbortsWithNoTabs(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "chrome://newtab/", Title: "New Tab", Active: true})

	c, snaps, _ := testCapturer(t, fake)
	snap, err := c.CaptureAuto(context.Background(), false)
	if err != nil {
		t.Fatalf("CaptureAuto: %v", err)
	}
	if snap != nil {
		t.Fatal("nothing survived the filter, capture must abort silently")
	}
	list, _ := snaps.List(context.Background(), CategoryAuto)
	if len(list) != 0 {
		t.Fatalf("stored snapshots = %d, want 0", len(list))
	}
}

func TestCaptureClosedFromAutoSnapshot(t *testing.T) {
	fake := platformtest.New()
	g := fake.AddGroup(platform.Group{Title: "Research", Color: platform.ColorGreen})
	tab := fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true, GroupID: g.ID})

	c, snaps, _ := testCapturer(t, fake)
	if _, err := c.CaptureAuto(context.Background(), false); err != nil {
		t.Fatalf("CaptureAuto: %v", err)
	}

	fake.DropTab(tab.ID)
	snap, err := c.CaptureClosed(context.Background(), tab.ID, tab.WindowID, false)
	if err != nil {
		t.Fatalf("CaptureClosed: %v", err)
	}

	if snap.Name != "Closed tab: A" {
		t.Fatalf("name = %q", snap.Name)
	}
	if !snap.IsClosedSession || snap.TabCount != 1 {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.GroupCount != 1 || snap.Groups[0].Title != "Research" {
		t.Fatalf("group record not carried: %+v", snap.Groups)
	}
	if snap.WindowCount != 0 {
		t.Fatalf("WindowCount = %d, want 0 for single tab", snap.WindowCount)
	}

	if _, err := snaps.Find(context.Background(), snap.ID); err != nil {
		t.Fatalf("Find closed snapshot: %v", err)
	}
}

func TestCaptureClosedWindow(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	w2 := fake.AddWindow()
	fake.AddTab(platform.Tab{URL: "https://b.example/", Title: "B", WindowID: w2})
	fake.AddTab(platform.Tab{URL: "https://c.example/", Title: "C", WindowID: w2})

	c, _, _ := testCapturer(t, fake)
	if _, err := c.CaptureAuto(context.Background(), true); err != nil {
		t.Fatalf("CaptureAuto: %v", err)
	}

	snap, err := c.CaptureClosed(context.Background(), 0, w2, true)
	if err != nil {
		t.Fatalf("CaptureClosed: %v", err)
	}
	if snap == nil {
		t.Fatal("window with auto-saved tabs must produce a closed session")
	}
	if !strings.HasPrefix(snap.Name, "Closed window ") {
		t.Fatalf("name = %q", snap.Name)
	}
	if snap.TabCount != 2 || snap.WindowCount != 1 {
		t.Fatalf("snapshot: %+v", snap)
	}

	// A window the auto snapshot never saw produces nothing.
	unknown, err := c.CaptureClosed(context.Background(), 0, 99, true)
	if err != nil {
		t.Fatalf("CaptureClosed unknown window: %v", err)
	}
	if unknown != nil {
		t.Fatal("unrecoverable window close must be dropped silently")
	}
}

func TestCaptureClosedCacheFallback(t *testing.T) {
	fake := platformtest.New()
	c, _, cache := testCapturer(t, fake)

	cache.UpsertTab(platform.Tab{ID: 42, URL: "https://a.example/", Title: "Cached A", WindowID: 1})

	snap, err := c.CaptureClosed(context.Background(), 42, 1, false)
	if err != nil {
		t.Fatalf("CaptureClosed: %v", err)
	}
	if snap.Name != "Closed tab: Cached A" {
		t.Fatalf("name = %q", snap.Name)
	}
	if snap.Tabs[0].URL != "https://a.example/" {
		t.Fatalf("tab record: %+v", snap.Tabs[0])
	}
	if _, ok := cache.Tab(42); ok {
		t.Fatal("consumed cache entry must be deleted")
	}
}

func TestCaptureClosedPlaceholder(t *testing.T) {
	fake := platformtest.New()
	c, _, _ := testCapturer(t, fake)
	fixed := time.Date(2026, 3, 1, 14, 5, 0, 0, time.Local)
	c.now = func() time.Time { return fixed }

	snap, err := c.CaptureClosed(context.Background(), 7, 1, false)
	if err != nil {
		t.Fatalf("CaptureClosed: %v", err)
	}
	if snap.Name != "Closed tab: 14:05" {
		t.Fatalf("name = %q", snap.Name)
	}
	if snap.Tabs[0].URL != "chrome://newtab/" || snap.Tabs[0].Title != "Closed tab (14:05)" {
		t.Fatalf("placeholder record: %+v", snap.Tabs[0])
	}
}
