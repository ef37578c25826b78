package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tabkeeper/browser"
)

// Config holds all tabkeeper configuration.
type Config struct {
	Port   string `yaml:"port"`
	DBPath string `yaml:"db_path"`

	Browser browser.Config `yaml:"browser"`

	// MCPTransport enables the MCP tool surface: "" (off) or "stdio".
	MCPTransport string `yaml:"mcp_transport"`

	// Keeper timers.
	CacheRefresh time.Duration `yaml:"cache_refresh"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
}

func (c *Config) defaults() {
	if c.Port == "" {
		c.Port = env("PORT", "8090")
	}
	if c.DBPath == "" {
		c.DBPath = env("DB_PATH", "db/tabkeeper.db")
	}
	if c.Browser.RemoteURL == "" {
		c.Browser.RemoteURL = os.Getenv("CONTROL_URL")
	}
	if c.MCPTransport == "" {
		c.MCPTransport = os.Getenv("MCP_TRANSPORT")
	}
	if c.CacheRefresh == 0 {
		c.CacheRefresh = 10 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = time.Second
	}
}

// loadConfig reads a YAML config file; an empty path means defaults only.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.defaults()
	return cfg, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
