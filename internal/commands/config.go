package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/chathist/internal/config"
	"github.com/diogo/chathist/internal/logging"
)

// NewConfigCmd creates a new config command
func NewConfigCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after defaults, ~/.chathist/config.yaml,
CHATHIST_* environment variables and command-line flags were applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil && deps.Config != nil {
				return runShowConfig(cmd.OutOrStdout(), deps.Config)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runShowConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

// Backward compatibility global
var configCmd = NewConfigCmd(nil)

func runShowConfig(out io.Writer, cfg *config.Config) error {
	file := configFlag
	if file == "" {
		file = filepath.Join(cfg.DataDir, "config.yaml")
	}

	backend := "local database"
	if cfg.IsRemote() {
		backend = "remote " + cfg.Remote.URL
	}

	token := "(none)"
	if cfg.Server.Token != "" {
		token = logging.MaskSecret(cfg.Server.Token)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"config file", file},
		{"backend", backend},
		{"user_id", cfg.UserID},
		{"data_dir", cfg.DataDir},
		{"database.path", cfg.Database.Path},
		{"page_size", fmt.Sprint(cfg.PageSize)},
		{"copy_to_clipboard", fmt.Sprint(cfg.CopyToClipboard)},
		{"remote.timeout_seconds", fmt.Sprint(cfg.Remote.TimeoutSeconds)},
		{"remote.browser", cfg.Remote.Browser},
		{"server.addr", cfg.Server.Addr},
		{"server.token", token},
		{"server.rate_per_second", fmt.Sprint(cfg.Server.RatePerSecond)},
		{"prefetch.eager", fmt.Sprint(cfg.Prefetch.Eager)},
		{"prefetch.lazy", fmt.Sprint(cfg.Prefetch.Lazy)},
		{"bulk.concurrency", fmt.Sprint(cfg.Bulk.Concurrency)},
		{"logging.level", cfg.Logging.Level},
		{"markdown.style", cfg.Markdown.Style},
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	return w.Flush()
}
