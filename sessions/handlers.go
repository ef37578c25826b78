package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/tabkeeper/dispatch"
)

// flexGroupID accepts a group id as a JSON number or a numeric string.
// Snapshots store numeric ids, but callers round-trip them through UI state
// where the type is not guaranteed.
type flexGroupID int64

func (g *flexGroupID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("groupId %q is not an integer", n)
		}
		*g = flexGroupID(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("groupId must be a number or numeric string")
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("groupId %q is not an integer", s)
	}
	*g = flexGroupID(v)
	return nil
}

type okResponse struct {
	Success bool `json:"success"`
}

// RegisterHandlers wires every session action onto the router.
func RegisterHandlers(r *dispatch.Router, k *Keeper) {
	r.Handle("saveSession", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionName string `json:"sessionName"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		snap, err := k.SaveSession(ctx, req.SessionName)
		if err != nil {
			return nil, err
		}
		return struct {
			Success bool      `json:"success"`
			Session *Snapshot `json:"session"`
		}{true, snap}, nil
	})

	r.Handle("restoreSession", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID       string `json:"sessionId"`
			OpenInNewWindow bool   `json:"openInNewWindow"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		res, err := k.RestoreSession(ctx, req.SessionID, req.OpenInNewWindow)
		if err != nil {
			return nil, err
		}
		return restoreResponse(res), nil
	})

	r.Handle("restoreGroup", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID       string      `json:"sessionId"`
			GroupID         flexGroupID `json:"groupId"`
			OpenInNewWindow *bool       `json:"openInNewWindow"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		newWindow := true
		if req.OpenInNewWindow != nil {
			newWindow = *req.OpenInNewWindow
		}
		res, err := k.RestoreGroup(ctx, req.SessionID, int64(req.GroupID), newWindow)
		if err != nil {
			return nil, err
		}
		return restoreResponse(res), nil
	})

	r.Handle("getSavedSessions", func(ctx context.Context, _ json.RawMessage) (any, error) {
		sessions, err := k.SavedSessions(ctx)
		if err != nil {
			return nil, err
		}
		if sessions == nil {
			sessions = []Snapshot{}
		}
		return struct {
			Success  bool       `json:"success"`
			Sessions []Snapshot `json:"sessions"`
		}{true, sessions}, nil
	})

	r.Handle("deleteSession", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"sessionId"`
			Type      string `json:"type"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := k.DeleteSession(ctx, req.SessionID, req.Type); err != nil {
			return nil, err
		}
		return okResponse{true}, nil
	})

	r.Handle("deleteSavedSession", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := k.DeleteSavedSession(ctx, req.SessionID); err != nil {
			return nil, err
		}
		return okResponse{true}, nil
	})

	r.Handle("clearAllSessions", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			Type string `json:"type"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if err := k.ClearSessions(ctx, req.Type); err != nil {
			return nil, err
		}
		return okResponse{true}, nil
	})

	r.Handle("renameSession", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			SessionID string `json:"sessionId"`
			NewName   string `json:"newName"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.NewName) == "" {
			return nil, fmt.Errorf("newName must not be empty")
		}
		if err := k.RenameSession(ctx, req.SessionID, req.NewName); err != nil {
			return nil, err
		}
		return okResponse{true}, nil
	})

	r.Handle("toggleAutoSave", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}
		s, err := k.ToggleAutoSave(ctx, req.Enabled)
		if err != nil {
			return nil, err
		}
		return struct {
			Success bool `json:"success"`
			Enabled bool `json:"enabled"`
		}{true, s.Enabled}, nil
	})

	r.Handle("updateAutoSaveSettings", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req struct {
			Trigger         *string `json:"trigger"`
			Interval        *int    `json:"interval"`
			DetectTabClose  *bool   `json:"detectTabClose"`
			DetectTabCreate *bool   `json:"detectTabCreate"`
			DetectURLChange *bool   `json:"detectUrlChange"`
			AllWindows      *bool   `json:"allWindows"`
		}
		if err := decode(payload, &req); err != nil {
			return nil, err
		}

		s := k.Settings()
		if req.Trigger != nil {
			s.Trigger = *req.Trigger
		}
		if req.Interval != nil {
			if *req.Interval < 1 {
				return nil, fmt.Errorf("interval must be at least 1 second")
			}
			s.Interval = *req.Interval
		}
		if req.DetectTabClose != nil {
			s.DetectTabClose = *req.DetectTabClose
		}
		if req.DetectTabCreate != nil {
			s.DetectTabCreate = *req.DetectTabCreate
		}
		if req.DetectURLChange != nil {
			s.DetectURLChange = *req.DetectURLChange
		}
		if req.AllWindows != nil {
			s.AllWindows = *req.AllWindows
		}
		if err := k.SetSettings(ctx, s); err != nil {
			return nil, err
		}
		return settingsResponse(s), nil
	})

	r.Handle("getAutoSaveSettings", func(_ context.Context, _ json.RawMessage) (any, error) {
		return settingsResponse(k.Settings()), nil
	})
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func restoreResponse(res *RestoreResult) any {
	return struct {
		Success       bool `json:"success"`
		TabsCreated   int  `json:"tabsCreated"`
		TabsRequested int  `json:"tabsRequested"`
		GroupsCreated int  `json:"groupsCreated"`
		Degraded      bool `json:"degraded,omitempty"`
	}{true, res.TabsCreated, res.TabsRequested, res.GroupsCreated, res.Degraded}
}

func settingsResponse(s AutoSaveSettings) any {
	return struct {
		Success  bool             `json:"success"`
		Settings AutoSaveSettings `json:"settings"`
	}{true, s}
}
