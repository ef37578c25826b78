package sessions

import (
	"context"
	"testing"

	"github.com/hazyhaar/tabkeeper/platform"
	"github.com/hazyhaar/tabkeeper/platform/platformtest"
)

func TestCacheFiltersNoise(t *testing.T) {
	c := NewCache(nil)

	c.UpsertTab(platform.Tab{ID: 1, URL: "chrome://newtab/", Title: "New Tab", WindowID: 1})
	c.UpsertTab(platform.Tab{ID: 2, URL: "https://a.example/", Title: "A", WindowID: 1})

	if _, ok := c.Tab(1); ok {
		t.Fatal("new-tab page must not be cached")
	}
	rec, ok := c.Tab(2)
	if !ok {
		t.Fatal("real tab must be cached")
	}
	if rec.URL != "https://a.example/" || rec.Title != "A" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCacheLastWriterWins(t *testing.T) {
	c := NewCache(nil)

	c.UpsertTab(platform.Tab{ID: 7, URL: "https://a.example/", Title: "A", WindowID: 1})
	c.UpsertTab(platform.Tab{ID: 7, URL: "https://a.example/two", Title: "A2", WindowID: 1})

	rec, _ := c.Tab(7)
	if rec.URL != "https://a.example/two" {
		t.Fatalf("expected latest write, got %s", rec.URL)
	}
}

func TestCacheGroupRemoved(t *testing.T) {
	c := NewCache(nil)

	c.UpsertGroup(platform.Group{ID: 3, Title: "Research", Color: platform.ColorBlue, WindowID: 1})
	c.UpsertTab(platform.Tab{ID: 1, URL: "https://a.example/", Title: "A", GroupID: 3, WindowID: 1})
	c.UpsertTab(platform.Tab{ID: 2, URL: "https://b.example/", Title: "B", GroupID: platform.NoGroup, WindowID: 1})

	if n := c.GroupRemoved(3); n != 1 {
		t.Fatalf("expected 1 retagged tab, got %d", n)
	}

	rec, _ := c.Tab(1)
	if rec.GroupID != int64(platform.NoGroup) {
		t.Fatalf("expected ungrouped sentinel, got %d", rec.GroupID)
	}
	// The group record itself survives for in-flight closed captures.
	if _, ok := c.Group(3); !ok {
		t.Fatal("group record should be retained")
	}
}

func TestCacheRefreshIsNotDestructive(t *testing.T) {
	fake := platformtest.New()
	live := fake.AddTab(platform.Tab{URL: "https://live.example/", Title: "Live"})

	c := NewCache(nil)
	// A tab that disappeared before this refresh cycle.
	c.UpsertTab(platform.Tab{ID: 999, URL: "https://gone.example/", Title: "Gone", WindowID: 1})

	c.Refresh(context.Background(), fake)

	if _, ok := c.Tab(live.ID); !ok {
		t.Fatal("live tab should be cached after refresh")
	}
	if _, ok := c.Tab(999); !ok {
		t.Fatal("refresh must not evict entries for removed tabs")
	}
}
