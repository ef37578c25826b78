// Command tabkeeper is the tab session daemon: it drives a Chrome instance
// over the DevTools protocol, auto-saves tab sessions under a configurable
// trigger policy, and serves save/restore operations over HTTP and MCP.
//
// Usage:
//
//	tabkeeper -config tabkeeper.yaml      # run with config file
//	tabkeeper                             # run with defaults
//
// Environment: PORT, DB_PATH, CONTROL_URL (attach to an existing Chrome),
// MCP_TRANSPORT (stdio), LOG_LEVEL.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-rod/rod"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tabkeeper/browser"
	"github.com/hazyhaar/tabkeeper/dispatch"
	"github.com/hazyhaar/tabkeeper/sessions"
	"github.com/hazyhaar/tabkeeper/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to tabkeeper.yaml config file")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath); err != nil {
		logger.Error("tabkeeper: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	kv, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer kv.Close()

	// Browser.
	cfg.Browser.Logger = logger
	mgr := browser.NewManager(cfg.Browser)
	b, err := mgr.Start(ctx)
	if err != nil {
		return err
	}
	defer mgr.Close()

	chrome := browser.NewChrome(logger)
	chrome.Bind(b)
	if err := chrome.Watch(ctx); err != nil {
		return err
	}
	mgr.SetRecycleCallback(&browser.RecycleCallback{
		AfterRecycle: func(b *rod.Browser) {
			chrome.Bind(b)
			if err := chrome.Watch(ctx); err != nil {
				logger.Error("tabkeeper: rebind after recycle", "error", err)
			}
		},
	})

	// Keeper.
	keeper := sessions.NewKeeper(chrome, kv, logger, sessions.KeeperOptions{
		CacheRefresh: cfg.CacheRefresh,
		SettleDelay:  cfg.SettleDelay,
	})
	go func() {
		if err := keeper.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("tabkeeper: keeper stopped", "error", err)
		}
	}()

	// Message surface.
	router := dispatch.NewRouter(logger)
	sessions.RegisterHandlers(router, keeper)

	// Optional MCP over stdio.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "tabkeeper",
			Version: "1.0.0",
		}, nil)
		keeper.RegisterMCP(mcpSrv)
		go func() {
			slog.Info("MCP stdio starting")
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// Router.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/api/sessions", func(w http.ResponseWriter, req *http.Request) {
		cat := sessions.Category(req.URL.Query().Get("category"))
		var (
			list []sessions.Snapshot
			err  error
		)
		switch cat {
		case "", sessions.CategoryManual:
			list, err = keeper.SavedSessions(req.Context())
		case sessions.CategoryAuto, sessions.CategoryClosed:
			list, err = keeper.Sessions(req.Context(), cat)
		default:
			writeError(w, 400, fmt.Errorf("unknown category %q", cat))
			return
		}
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if list == nil {
			list = []sessions.Snapshot{}
		}
		writeJSON(w, 200, list)
	})
	r.Mount("/api/message", router.Mount())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}
