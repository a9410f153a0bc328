// Package config handles configuration and session cookie management for chathist.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apierrors "github.com/diogo/chathist/internal/errors"
)

// DirName is the directory under $HOME holding config, cookies, logs and the database.
const DirName = ".chathist"

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `mapstructure:"style"`             // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `mapstructure:"enable_emoji"`      // Convert :emoji: to unicode
	PreserveNewLines bool   `mapstructure:"preserve_newlines"` // Preserve original line breaks
	TableWrap        bool   `mapstructure:"table_wrap"`
}

// DatabaseConfig locates the local SQLite store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig points at a hosted chat service. An empty URL means the
// local database is used instead.
type RemoteConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// Browser to read the session cookie from when cookies.json is absent:
	// "auto", "chrome", "firefox", "edge", "chromium", "opera" or "" to disable.
	Browser string `mapstructure:"browser"`
}

// ServerConfig configures `chathist serve`
type ServerConfig struct {
	Addr          string  `mapstructure:"addr"`
	Token         string  `mapstructure:"token"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// PrefetchConfig controls background loading of full conversations
type PrefetchConfig struct {
	Eager         int     `mapstructure:"eager"`
	Lazy          int     `mapstructure:"lazy"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// BulkConfig controls bulk deletion
type BulkConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// LoggingConfig controls the log output
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config represents the user configuration
type Config struct {
	DataDir         string         `mapstructure:"data_dir"`
	UserID          string         `mapstructure:"user_id"`
	PageSize        int            `mapstructure:"page_size"`
	CopyToClipboard bool           `mapstructure:"copy_to_clipboard"`
	Database        DatabaseConfig `mapstructure:"database"`
	Remote          RemoteConfig   `mapstructure:"remote"`
	Server          ServerConfig   `mapstructure:"server"`
	Prefetch        PrefetchConfig `mapstructure:"prefetch"`
	Bulk            BulkConfig     `mapstructure:"bulk"`
	Logging         LoggingConfig  `mapstructure:"logging"`
	Markdown        MarkdownConfig `mapstructure:"markdown"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dataDir, _ := GetConfigDir()
	return &Config{
		DataDir:  dataDir,
		UserID:   defaultUserID(),
		PageSize: 20,
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "chats.db"),
		},
		Remote: RemoteConfig{
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8420",
			RatePerSecond: 10,
			Burst:         20,
		},
		Prefetch: PrefetchConfig{
			Eager:         10,
			Lazy:          10,
			RatePerSecond: 5,
		},
		Bulk: BulkConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Markdown: DefaultMarkdownConfig(),
	}
}

func defaultUserID() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return "local"
}

// Validate checks the values a user can get wrong
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return apierrors.NewValidationError("user_id", "cannot be empty")
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		return apierrors.NewValidationError("page_size", "must be between 1 and 100")
	}
	if c.Bulk.Concurrency <= 0 {
		return apierrors.NewValidationError("bulk.concurrency", "must be positive")
	}
	if c.Prefetch.Eager < 0 || c.Prefetch.Lazy < 0 {
		return apierrors.NewValidationError("prefetch", "counts cannot be negative")
	}
	if c.Remote.URL != "" && !strings.HasPrefix(c.Remote.URL, "http://") && !strings.HasPrefix(c.Remote.URL, "https://") {
		return apierrors.NewValidationError("remote.url", "must start with http:// or https://")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return apierrors.NewValidationError("logging.format", "must be console or json")
	}
	return nil
}

// IsRemote reports whether chats come from a hosted service
func (c *Config) IsRemote() bool {
	return c.Remote.URL != ""
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds the session cookie
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// GetCookiesPath returns the path to the cookies file
func GetCookiesPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}
