package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/diogo/chathist/internal/dialog"
	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/history"
	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
	"github.com/diogo/chathist/internal/prefetch"
	"github.com/diogo/chathist/internal/render"
	"github.com/diogo/chathist/internal/tui"
)

var browseCurrent string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open the interactive history dialog",
	Long: `Open the history dialog: search, group by date, rename, delete and
bulk delete your chats.

Keys:
  /          search            tab    cycle search mode
  enter      open chat         c      copy chat ID
  r          rename            d      delete
  b          bulk mode         space  select (bulk mode)
  a / A      select / deselect all
  x          delete selected   ctrl+r refresh
  esc / q    close

The chat opened with enter is printed after the dialog closes. Logs go to
~/.chathist/chathist.log while the dialog is open.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// The dialog owns the screen, so logs go to a file.
		logFile, err := logging.OpenFile(cfg.DataDir)
		if err != nil {
			return err
		}
		defer logFile.Close()
		logging.Init(logging.Config{
			Level:  cfg.Logging.Level,
			Format: "json",
			Output: logFile,
		})

		deps, err := openDependencies(cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		return runBrowse(cmd.Context(), deps, cmd.OutOrStdout(), browseCurrent)
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseCurrent, "current", "",
		"ID of the chat that is currently open; deleting it closes the view")
}

func runBrowse(ctx context.Context, deps *Dependencies, out io.Writer, currentChatID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := deps.Config
	if currentChatID != "" && !models.IsValidChatID(currentChatID) {
		return apierrors.NewValidationError("current", fmt.Sprintf("invalid chat ID %q", currentChatID))
	}

	prefetchOpts := []prefetch.Option{
		prefetch.WithCounts(cfg.Prefetch.Eager, cfg.Prefetch.Lazy),
		prefetch.WithLogger(logging.Component("prefetch")),
	}
	if cfg.Prefetch.RatePerSecond > 0 {
		prefetchOpts = append(prefetchOpts, prefetch.WithRate(rate.Limit(cfg.Prefetch.RatePerSecond), prefetch.DefaultBurst))
	}
	pf := prefetch.New(deps.Service, prefetchOpts...)
	defer pf.Close()

	host := tui.NewDialogHost(currentChatID)
	logger := logging.WithUser(cfg.UserID).With().Str("component", "dialog").Logger()
	ctrl := dialog.New(deps.Service, host, host, dialog.Config{
		UserID:          cfg.UserID,
		PageSize:        cfg.PageSize,
		BulkConcurrency: cfg.Bulk.Concurrency,
		Prefetcher:      pf,
		Bus:             deps.Bus,
		Logger:          &logger,
		OnChange:        host.NotifyChange,
	})
	defer ctrl.Shutdown()

	renderOpts := render.OptionsFromConfig(cfg.Markdown)
	tui.UpdateTheme(render.TUIThemeFor(renderOpts.Style))

	result, err := deps.TUI.RunHistoryDialog(ctrl, host, tui.DialogOptions{Render: renderOpts})
	if err != nil {
		return fmt.Errorf("history dialog failed: %w", err)
	}

	if result.ChatID == "" {
		if result.WentHome {
			fmt.Fprintln(out, "The open chat was deleted.")
		}
		return nil
	}

	chat, err := deps.Service.GetChat(ctx, result.ChatID)
	if err != nil {
		return fmt.Errorf("failed to load chat: %w", err)
	}

	md := history.ExportMarkdown(*chat, history.ExportOptions{IncludeMetadata: true})
	if isStdoutTTY() {
		rendered, err := render.Conversation(*chat, renderOpts.WithWidth(getTerminalWidth()))
		if err != nil {
			rendered = md
		}
		fmt.Fprint(out, rendered)
	} else {
		fmt.Fprint(out, md)
	}

	if cfg.CopyToClipboard && deps.Clipboard != nil {
		if err := deps.Clipboard(md); err != nil {
			fmt.Fprintf(out, "Warning: failed to copy to clipboard: %v\n", err)
		} else {
			fmt.Fprintln(out, "Copied to clipboard.")
		}
	}
	return nil
}
