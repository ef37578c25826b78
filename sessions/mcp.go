package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP exposes the session operations as MCP tools.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	k.registerSaveTool(srv)
	k.registerListTool(srv)
	k.registerRestoreTool(srv)
	k.registerRestoreGroupTool(srv)
	k.registerDeleteTool(srv)
	k.registerRenameTool(srv)
	k.registerSettingsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool adapts an operation to the MCP tool contract: decoded
// arguments in, JSON text content out, operation failures reported in-band.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, run func(ctx context.Context, req Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := run(ctx, r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

type mcpSaveReq struct {
	Name string `json:"name"`
}

func (k *Keeper) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_save_session",
		Description: "Save the current window's tabs and groups as a named session.",
		InputSchema: inputSchema(map[string]any{
			"name": map[string]any{"type": "string", "description": "Session name (empty for a timestamped default)"},
		}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpSaveReq) (any, error) {
		return k.SaveSession(ctx, r.Name)
	})
}

type mcpListReq struct {
	Category string `json:"category"`
}

func (k *Keeper) registerListTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_list_sessions",
		Description: "List stored sessions. Category is manual, auto or closed; default manual.",
		InputSchema: inputSchema(map[string]any{
			"category": map[string]any{"type": "string", "enum": []string{"manual", "auto", "closed"}},
		}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpListReq) (any, error) {
		switch r.Category {
		case "", string(CategoryManual):
			return k.SavedSessions(ctx)
		case string(CategoryAuto):
			return k.Sessions(ctx, CategoryAuto)
		case string(CategoryClosed):
			return k.Sessions(ctx, CategoryClosed)
		default:
			return nil, fmt.Errorf("unknown category %q", r.Category)
		}
	})
}

type mcpRestoreReq struct {
	SessionID string `json:"sessionId"`
	NewWindow bool   `json:"newWindow"`
}

func (k *Keeper) registerRestoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_restore_session",
		Description: "Reopen every tab and group of a stored session.",
		InputSchema: inputSchema(map[string]any{
			"sessionId": map[string]any{"type": "string"},
			"newWindow": map[string]any{"type": "boolean", "description": "Open in a fresh window"},
		}, []string{"sessionId"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpRestoreReq) (any, error) {
		return k.RestoreSession(ctx, r.SessionID, r.NewWindow)
	})
}

type mcpRestoreGroupReq struct {
	SessionID string `json:"sessionId"`
	GroupID   int64  `json:"groupId"`
	NewWindow *bool  `json:"newWindow"`
}

func (k *Keeper) registerRestoreGroupTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_restore_group",
		Description: "Reopen one tab group of a stored session.",
		InputSchema: inputSchema(map[string]any{
			"sessionId": map[string]any{"type": "string"},
			"groupId":   map[string]any{"type": "integer"},
			"newWindow": map[string]any{"type": "boolean", "description": "Open in a fresh window (default true)"},
		}, []string{"sessionId", "groupId"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpRestoreGroupReq) (any, error) {
		newWindow := true
		if r.NewWindow != nil {
			newWindow = *r.NewWindow
		}
		return k.RestoreGroup(ctx, r.SessionID, r.GroupID, newWindow)
	})
}

type mcpDeleteReq struct {
	SessionID string `json:"sessionId"`
	Category  string `json:"category"`
}

func (k *Keeper) registerDeleteTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_delete_session",
		Description: "Delete a stored session. Category is manual, auto or closed; default manual.",
		InputSchema: inputSchema(map[string]any{
			"sessionId": map[string]any{"type": "string"},
			"category":  map[string]any{"type": "string", "enum": []string{"manual", "auto", "closed"}},
		}, []string{"sessionId"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpDeleteReq) (any, error) {
		var err error
		if r.Category == "" || r.Category == string(CategoryManual) {
			err = k.DeleteSavedSession(ctx, r.SessionID)
		} else {
			err = k.DeleteSession(ctx, r.SessionID, r.Category)
		}
		if err != nil {
			return nil, err
		}
		return map[string]bool{"deleted": true}, nil
	})
}

type mcpRenameReq struct {
	SessionID string `json:"sessionId"`
	NewName   string `json:"newName"`
}

func (k *Keeper) registerRenameTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_rename_session",
		Description: "Rename a manually saved session.",
		InputSchema: inputSchema(map[string]any{
			"sessionId": map[string]any{"type": "string"},
			"newName":   map[string]any{"type": "string"},
		}, []string{"sessionId", "newName"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpRenameReq) (any, error) {
		if err := k.RenameSession(ctx, r.SessionID, r.NewName); err != nil {
			return nil, err
		}
		return map[string]bool{"renamed": true}, nil
	})
}

type mcpSettingsReq struct {
	Enabled    *bool   `json:"enabled"`
	Trigger    *string `json:"trigger"`
	Interval   *int    `json:"interval"`
	AllWindows *bool   `json:"allWindows"`
}

func (k *Keeper) registerSettingsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tabkeeper_autosave_settings",
		Description: "Read or update auto-save settings. With no arguments, returns the current settings.",
		InputSchema: inputSchema(map[string]any{
			"enabled":    map[string]any{"type": "boolean"},
			"trigger":    map[string]any{"type": "string", "enum": []string{TriggerTime, TriggerChange}},
			"interval":   map[string]any{"type": "integer", "description": "Seconds between time-triggered saves"},
			"allWindows": map[string]any{"type": "boolean"},
		}, nil),
	}
	registerTool(srv, tool, func(ctx context.Context, r mcpSettingsReq) (any, error) {
		s := k.Settings()
		changed := false
		if r.Enabled != nil {
			s.Enabled = *r.Enabled
			changed = true
		}
		if r.Trigger != nil {
			s.Trigger = *r.Trigger
			changed = true
		}
		if r.Interval != nil {
			if *r.Interval < 1 {
				return nil, fmt.Errorf("interval must be at least 1 second")
			}
			s.Interval = *r.Interval
			changed = true
		}
		if r.AllWindows != nil {
			s.AllWindows = *r.AllWindows
			changed = true
		}
		if changed {
			if err := k.SetSettings(ctx, s); err != nil {
				return nil, err
			}
		}
		return s, nil
	})
}
