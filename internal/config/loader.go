package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CHATHIST_REMOTE_URL.
const EnvPrefix = "CHATHIST"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Set overrides a key; used for command-line flags, which win over everything.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load loads configuration with precedence defaults < config file < env vars < Set.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := GetConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults(cfg) {
		v.SetDefault(key, value)
		// Unmarshal only sees env vars for keys bound explicitly
		_ = v.BindEnv(key)
	}

	v.AutomaticEnv()
}

func defaults(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"data_dir":          cfg.DataDir,
		"user_id":           cfg.UserID,
		"page_size":         cfg.PageSize,
		"copy_to_clipboard": cfg.CopyToClipboard,

		"database.path": cfg.Database.Path,

		"remote.url":             cfg.Remote.URL,
		"remote.timeout_seconds": cfg.Remote.TimeoutSeconds,
		"remote.browser":         cfg.Remote.Browser,

		"server.addr":            cfg.Server.Addr,
		"server.token":           cfg.Server.Token,
		"server.rate_per_second": cfg.Server.RatePerSecond,
		"server.burst":           cfg.Server.Burst,

		"prefetch.eager":           cfg.Prefetch.Eager,
		"prefetch.lazy":            cfg.Prefetch.Lazy,
		"prefetch.rate_per_second": cfg.Prefetch.RatePerSecond,

		"bulk.concurrency": cfg.Bulk.Concurrency,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,

		"markdown.style":             cfg.Markdown.Style,
		"markdown.enable_emoji":      cfg.Markdown.EnableEmoji,
		"markdown.preserve_newlines": cfg.Markdown.PreserveNewLines,
		"markdown.table_wrap":        cfg.Markdown.TableWrap,
	}
}

// loadConfigFile reads the config file. A missing file is only an error when
// it was named explicitly.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && l.configFile == "" {
			return nil
		}
		return err
	}
	return nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func expandPaths(cfg *Config) {
	cfg.DataDir = expandTilde(cfg.DataDir)
	cfg.Database.Path = expandTilde(cfg.Database.Path)
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}
