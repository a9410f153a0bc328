// Package commands provides CLI commands for chathist.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diogo/chathist/internal/config"
	"github.com/diogo/chathist/internal/logging"
)

var (
	// Global flags
	configFlag   string
	remoteFlag   string
	userFlag     string
	logLevelFlag string

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chathist",
	Short: "Browse and manage your chat history",
	Long: `chathist lists, searches, renames and deletes the conversations stored
in a local SQLite database or on a remote chat service.

Examples:
  chathist browse                       Open the interactive history dialog
  chathist history list                 List chats grouped by date
  chathist history search "date:12/06/24"
  chathist history show @last           Print the latest conversation
  chathist history export 2 -o chat.md  Save a conversation as markdown
  chathist serve                        Expose the local database over HTTP
  chathist --remote http://host:8420 browse`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "chathist %s (built %s)\n", Version, BuildTime)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Error"))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.chathist/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&remoteFlag, "remote", "", "Use the chat service at this URL instead of the local database")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "Owner whose chats are listed")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(importCookiesCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig resolves the configuration with the global flags applied on top.
// Tests replace it to run commands against a prepared config.
var loadConfig = func() (*config.Config, error) {
	loader := config.NewLoader()
	if configFlag != "" {
		loader.SetConfigFile(configFlag)
	}
	if remoteFlag != "" {
		loader.Set("remote.url", remoteFlag)
	}
	if userFlag != "" {
		loader.Set("user_id", userFlag)
	}
	if logLevelFlag != "" {
		loader.Set("logging.level", logLevelFlag)
	}
	return loader.Load()
}

// initLogging points the global logger at w using the configured level and format.
func initLogging(cfg *config.Config, w io.Writer) {
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: w,
	})
}

// withDependencies loads the config, opens the chat backend and runs fn.
func withDependencies(cmd *cobra.Command, fn func(ctx context.Context, deps *Dependencies) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg, cmd.ErrOrStderr())

	deps, err := openDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, deps)
}
