package store

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

func TestKVRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := s.SetJSON(ctx, ScopeLocal, "savedSessions", payload{Name: "Work", Count: 2}); err != nil {
		t.Fatal(err)
	}

	var got payload
	if err := s.GetJSON(ctx, ScopeLocal, "savedSessions", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "Work" || got.Count != 2 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestKVScopesAreIndependent(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.SetJSON(ctx, ScopeSync, "autoSaveEnabled", true); err != nil {
		t.Fatal(err)
	}

	var v bool
	if err := s.GetJSON(ctx, ScopeLocal, "autoSaveEnabled", &v); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey across scopes, got %v", err)
	}
	if err := s.GetJSON(ctx, ScopeSync, "autoSaveEnabled", &v); err != nil || !v {
		t.Fatalf("expected true in sync scope, got %v, %v", v, err)
	}
}

func TestKVOverwriteAndDelete(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	if err := s.SetJSON(ctx, ScopeSync, "autoSaveInterval", 60); err != nil {
		t.Fatal(err)
	}
	if err := s.SetJSON(ctx, ScopeSync, "autoSaveInterval", 120); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.GetJSON(ctx, ScopeSync, "autoSaveInterval", &n); err != nil || n != 120 {
		t.Fatalf("expected 120, got %d, %v", n, err)
	}

	if err := s.Delete(ctx, ScopeSync, "autoSaveInterval"); err != nil {
		t.Fatal(err)
	}
	if err := s.GetJSON(ctx, ScopeSync, "autoSaveInterval", &n); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey after delete, got %v", err)
	}
	// Deleting a missing key is a no-op.
	if err := s.Delete(ctx, ScopeSync, "autoSaveInterval"); err != nil {
		t.Fatal(err)
	}
}
