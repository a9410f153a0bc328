package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	home := setupHome(t)
	t.Setenv("USER", "alice")

	cfg := DefaultConfig()

	if cfg.DataDir != filepath.Join(home, DirName) {
		t.Errorf("DataDir = %s", cfg.DataDir)
	}
	if cfg.Database.Path != filepath.Join(home, DirName, "chats.db") {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if cfg.UserID != "alice" {
		t.Errorf("UserID = %s, want alice", cfg.UserID)
	}
	if cfg.PageSize != 20 {
		t.Errorf("PageSize = %d, want 20", cfg.PageSize)
	}
	if cfg.Prefetch.Eager != 10 || cfg.Prefetch.Lazy != 10 {
		t.Errorf("Prefetch = %+v", cfg.Prefetch)
	}
	if cfg.IsRemote() {
		t.Error("default config should use the local store")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	setupHome(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty user", func(c *Config) { c.UserID = " " }, "user_id"},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, "page_size"},
		{"huge page size", func(c *Config) { c.PageSize = 101 }, "page_size"},
		{"zero concurrency", func(c *Config) { c.Bulk.Concurrency = 0 }, "bulk.concurrency"},
		{"negative prefetch", func(c *Config) { c.Prefetch.Lazy = -1 }, "prefetch"},
		{"bad remote", func(c *Config) { c.Remote.URL = "ftp://x" }, "remote.url"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestLoader_Defaults(t *testing.T) {
	setupHome(t)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PageSize != 20 {
		t.Errorf("PageSize = %d", cfg.PageSize)
	}
	if cfg.Server.Addr != "127.0.0.1:8420" {
		t.Errorf("Server.Addr = %s", cfg.Server.Addr)
	}
}

func TestLoader_Precedence(t *testing.T) {
	home := setupHome(t)

	dir := filepath.Join(home, DirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	yaml := `page_size: 30
user_id: from-file
remote:
  url: https://file.example
database:
  path: ~/custom/chats.db
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATHIST_USER_ID", "from-env")
	t.Setenv("CHATHIST_REMOTE_URL", "https://env.example")

	loader := NewLoader()
	loader.Set("remote.url", "https://flag.example")
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PageSize != 30 {
		t.Errorf("PageSize = %d, want 30 from file", cfg.PageSize)
	}
	if cfg.UserID != "from-env" {
		t.Errorf("UserID = %s, want from-env", cfg.UserID)
	}
	if cfg.Remote.URL != "https://flag.example" {
		t.Errorf("Remote.URL = %s, want the flag value", cfg.Remote.URL)
	}
	if cfg.Database.Path != filepath.Join(home, "custom", "chats.db") {
		t.Errorf("Database.Path = %s, want ~ expanded", cfg.Database.Path)
	}
	if !strings.HasSuffix(loader.ConfigFileUsed(), "config.yaml") {
		t.Errorf("ConfigFileUsed() = %s", loader.ConfigFileUsed())
	}
}

func TestLoader_ExplicitFileMissing(t *testing.T) {
	home := setupHome(t)

	loader := NewLoader()
	loader.SetConfigFile(filepath.Join(home, "nope.yaml"))
	if _, err := loader.Load(); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestLoader_InvalidValue(t *testing.T) {
	setupHome(t)
	t.Setenv("CHATHIST_PAGE_SIZE", "500")

	if _, err := NewLoader().Load(); err == nil {
		t.Error("expected validation error")
	}
}

func TestPaths(t *testing.T) {
	home := setupHome(t)

	configPath, err := GetConfigPath()
	if err != nil || configPath != filepath.Join(home, DirName, "config.yaml") {
		t.Errorf("GetConfigPath() = %s, %v", configPath, err)
	}
	cookiesPath, err := GetCookiesPath()
	if err != nil || cookiesPath != filepath.Join(home, DirName, "cookies.json") {
		t.Errorf("GetCookiesPath() = %s, %v", cookiesPath, err)
	}

	dir, err := EnsureConfigDir()
	if err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("config dir not created: %v", err)
	}
}
