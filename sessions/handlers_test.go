package sessions

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hazyhaar/tabkeeper/dispatch"
	"github.com/hazyhaar/tabkeeper/platform"
	"github.com/hazyhaar/tabkeeper/platform/platformtest"
	"github.com/hazyhaar/tabkeeper/internal/store"
)

func testHandlers(t *testing.T, fake *platformtest.Fake) (*dispatch.Router, *Keeper) {
	t.Helper()
	k := NewKeeper(fake, store.OpenMemory(t), testLogger(t), KeeperOptions{})
	k.restorer.TabDelay = 0
	k.restorer.GroupTabDelay = 0
	k.restorer.WindowSettle = 0

	r := dispatch.NewRouter(testLogger(t))
	RegisterHandlers(r, k)
	return r, k
}

func call(t *testing.T, r *dispatch.Router, action, payload string, out any) {
	t.Helper()
	body := r.Call(context.Background(), action, json.RawMessage(payload))
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("unmarshal %s response %s: %v", action, body, err)
	}
}

func TestHandlerSaveAndList(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	r, _ := testHandlers(t, fake)

	var saved struct {
		Success bool      `json:"success"`
		Session *Snapshot `json:"session"`
	}
	call(t, r, "saveSession", `{"sessionName":"Work"}`, &saved)
	if !saved.Success || saved.Session == nil || saved.Session.Name != "Work" {
		t.Fatalf("saveSession response: %+v", saved)
	}

	var listed struct {
		Success  bool       `json:"success"`
		Sessions []Snapshot `json:"sessions"`
	}
	call(t, r, "getSavedSessions", `{}`, &listed)
	if !listed.Success || len(listed.Sessions) != 1 || listed.Sessions[0].ID != saved.Session.ID {
		t.Fatalf("getSavedSessions response: %+v", listed)
	}
}

func TestHandlerRestoreNotFound(t *testing.T) {
	r, _ := testHandlers(t, platformtest.New())

	var fail dispatch.Failure
	call(t, r, "restoreSession", `{"sessionId":"session_999","openInNewWindow":true}`, &fail)
	if fail.Success {
		t.Fatal("missing session must fail")
	}
	if fail.Error != "Session not found" {
		t.Fatalf("error = %q, the message is part of the contract", fail.Error)
	}
}

func TestHandlerRestoreGroupIDTolerance(t *testing.T) {
	for _, groupID := range []string{`5`, `"5"`} {
		fake := platformtest.New()
		r, k := testHandlers(t, fake)

		snap := Snapshot{
			ID: "session_1", Name: "x", CreatedAt: 1,
			Tabs:     []TabRecord{{ID: 1, URL: "https://a.example/", Title: "A", GroupID: 5}},
			Groups:   []GroupRecord{{ID: 5, Title: "G", Color: platform.ColorRed}},
			TabCount: 1, GroupCount: 1, WindowCount: 1,
		}
		if err := k.snaps.Insert(context.Background(), &snap); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		var resp struct {
			Success     bool `json:"success"`
			TabsCreated int  `json:"tabsCreated"`
		}
		call(t, r, "restoreGroup", `{"sessionId":"session_1","groupId":`+groupID+`}`, &resp)
		if !resp.Success || resp.TabsCreated != 1 {
			t.Fatalf("groupId %s: response %+v", groupID, resp)
		}
	}
}

func TestHandlerDeleteContracts(t *testing.T) {
	fake := platformtest.New()
	r, _ := testHandlers(t, fake)

	// Manual delete by id alone: missing ids succeed.
	var ok okResponse
	call(t, r, "deleteSavedSession", `{"sessionId":"session_999"}`, &ok)
	if !ok.Success {
		t.Fatal("deleteSavedSession on a missing id must succeed")
	}

	// Categoried delete: missing ids fail with the contract message.
	var fail dispatch.Failure
	call(t, r, "deleteSession", `{"sessionId":"auto_999","type":"auto"}`, &fail)
	if fail.Success || fail.Error != "Session not found" {
		t.Fatalf("deleteSession failure: %+v", fail)
	}
}

func TestHandlerSettingsRoundTrip(t *testing.T) {
	r, k := testHandlers(t, platformtest.New())

	var updated struct {
		Success  bool             `json:"success"`
		Settings AutoSaveSettings `json:"settings"`
	}
	call(t, r, "updateAutoSaveSettings", `{"trigger":"change","interval":30,"detectUrlChange":false}`, &updated)
	if !updated.Success || updated.Settings.Trigger != TriggerChange || updated.Settings.Interval != 30 {
		t.Fatalf("updateAutoSaveSettings response: %+v", updated)
	}
	if updated.Settings.DetectURLChange {
		t.Fatal("detectUrlChange must be off after update")
	}
	if !updated.Settings.DetectTabClose {
		t.Fatal("fields absent from the patch must keep their values")
	}

	var fetched struct {
		Success  bool             `json:"success"`
		Settings AutoSaveSettings `json:"settings"`
	}
	call(t, r, "getAutoSaveSettings", `{}`, &fetched)
	if fetched.Settings != k.Settings() {
		t.Fatalf("getAutoSaveSettings = %+v, keeper has %+v", fetched.Settings, k.Settings())
	}

	var fail dispatch.Failure
	call(t, r, "updateAutoSaveSettings", `{"interval":0}`, &fail)
	if fail.Success {
		t.Fatal("zero interval must be rejected")
	}
}

func TestHandlerToggleAutoSave(t *testing.T) {
	r, k := testHandlers(t, platformtest.New())

	var resp struct {
		Success bool `json:"success"`
		Enabled bool `json:"enabled"`
	}
	call(t, r, "toggleAutoSave", `{"enabled":false}`, &resp)
	if !resp.Success || resp.Enabled {
		t.Fatalf("toggleAutoSave response: %+v", resp)
	}
	if k.Settings().Enabled {
		t.Fatal("keeper settings must reflect the toggle")
	}
}

func TestHandlerRename(t *testing.T) {
	fake := platformtest.New()
	fake.AddTab(platform.Tab{URL: "https://a.example/", Title: "A", Active: true})
	r, k := testHandlers(t, fake)

	snap, err := k.SaveSession(context.Background(), "Old")
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	var ok okResponse
	call(t, r, "renameSession", `{"sessionId":"`+snap.ID+`","newName":"New"}`, &ok)
	if !ok.Success {
		t.Fatal("rename must succeed")
	}

	list, _ := k.SavedSessions(context.Background())
	if list[0].Name != "New" {
		t.Fatalf("name after rename = %q", list[0].Name)
	}

	var fail dispatch.Failure
	call(t, r, "renameSession", `{"sessionId":"`+snap.ID+`","newName":"  "}`, &fail)
	if fail.Success {
		t.Fatal("blank name must be rejected")
	}
}
