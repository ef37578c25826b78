package sessions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tabkeeper/platform"
	"github.com/hazyhaar/tabkeeper/platform/platformtest"
	"github.com/hazyhaar/tabkeeper/internal/store"
)

var testMCPImpl = &mcp.Implementation{Name: "tabkeeper-test", Version: "0.1.0"}

func mcpSession(t *testing.T, fake *platformtest.Fake) (*mcp.ClientSession, *Keeper) {
	t.Helper()
	k := NewKeeper(fake, store.OpenMemory(t), testLogger(t), KeeperOptions{})
	k.restorer.TabDelay = 0
	k.restorer.GroupTabDelay = 0
	k.restorer.WindowSettle = 0

	srv := mcp.NewServer(testMCPImpl, nil)
	k.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, k
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_SaveAndList(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	session, _ := mcpSession(t, fake)

	text := mcpCallTool(t, session, "tabkeeper_save_session", map[string]any{"name": "Work"})
	var snap Snapshot
	if err := json.Unmarshal([]byte(text), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Name != "Work" || snap.TabCount != 1 {
		t.Errorf("saved snapshot: %+v", snap)
	}

	text = mcpCallTool(t, session, "tabkeeper_list_sessions", map[string]any{})
	var list []Snapshot
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].ID != snap.ID {
		t.Errorf("listed sessions: %+v", list)
	}
}

func TestMCP_RestoreSession(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	session, k := mcpSession(t, fake)

	snap, err := k.SaveSession(context.Background(), "Work")
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	text := mcpCallTool(t, session, "tabkeeper_restore_session",
		map[string]any{"sessionId": snap.ID, "newWindow": true})
	var res RestoreResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.TabsCreated != 1 {
		t.Errorf("restore result: %+v", res)
	}
}

func TestMCP_RestoreSessionNotFound(t *testing.T) {
	session, _ := mcpSession(t, platformtest.New())

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "tabkeeper_restore_session",
		Arguments: map[string]any{"sessionId": "session_999"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("missing session must surface as a tool error")
	}
}

func TestMCP_Settings(t *testing.T) {
	session, k := mcpSession(t, platformtest.New())

	text := mcpCallTool(t, session, "tabkeeper_autosave_settings",
		map[string]any{"trigger": "change", "interval": 30})
	var s AutoSaveSettings
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Trigger != TriggerChange || s.Interval != 30 {
		t.Errorf("settings: %+v", s)
	}
	if k.Settings() != s {
		t.Errorf("keeper settings %+v, tool returned %+v", k.Settings(), s)
	}

	// No arguments reads without changing anything.
	text = mcpCallTool(t, session, "tabkeeper_autosave_settings", map[string]any{})
	var again AutoSaveSettings
	if err := json.Unmarshal([]byte(text), &again); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if again != s {
		t.Errorf("read-back settings %+v, want %+v", again, s)
	}
}
