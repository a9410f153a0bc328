package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/history"
	"github.com/diogo/chathist/internal/models"
	"github.com/diogo/chathist/internal/render"
	"github.com/diogo/chathist/internal/search"
)

// DefaultSeedCount is how many sample chats `history seed` creates.
const DefaultSeedCount = 25

// titleColumnWidth caps titles in list output
const titleColumnWidth = 48

var (
	historyLimit   int
	historyGroup   bool
	historyMode    string
	historyRaw     bool
	exportFormat   string
	exportOutput   string
	exportMetadata bool
	clearConfirmed bool
)

// historyNow is the clock compact ages are measured against
var historyNow = time.Now

// historyConfirmIn answers the `history clear` prompt
var historyConfirmIn io.Reader = os.Stdin

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage chat history",
	Long: `List, search, show and change your chats from the command line.

` + history.ListAliases(),
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistoryList(ctx, deps, cmd.OutOrStdout(), historyLimit, historyGroup)
		})
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search chats by title, date or visibility",
	Long: `Search chats with the same query language as the history dialog.

Queries:
  budget            fuzzy match on title, visibility or date
  12/06/24          chats created on that day (DD/MM/YY)
  date:12/06/24     date only
  public:budget     public chats, optionally matching a title
  private:          private chats
  today:            chats created today
  week:             chats created this week
  month:            chats created this month

Use --mode to restrict a plain query to title, date or visibility.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := search.ParseMode(historyMode)
		if err != nil {
			return err
		}
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistorySearch(ctx, deps, cmd.OutOrStdout(), args[0], mode)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistoryShow(ctx, deps, cmd.OutOrStdout(), args[0], historyRaw || !isStdoutTTY())
		})
	},
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <ref> <title>",
	Short: "Rename a chat",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistoryRename(ctx, deps, cmd.OutOrStdout(), args[0], args[1])
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistoryDelete(ctx, deps, cmd.OutOrStdout(), args[0])
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <ref>",
	Short: "Export a conversation as markdown or JSON",
	Long: `Export a conversation as markdown or JSON.

Without --output the export is written to stdout. The format defaults to the
extension of the output file, or markdown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistoryExport(ctx, deps, cmd.OutOrStdout(), args[0], exportOptions{
				Format:   exportFormat,
				Output:   exportOutput,
				Metadata: exportMetadata,
			})
		})
	},
}

var historySeedCmd = &cobra.Command{
	Use:   "seed [count]",
	Short: "Create sample chats in the local database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := DefaultSeedCount
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return apierrors.NewValidationError("count", fmt.Sprintf("must be a positive number, got %q", args[0]))
			}
			n = v
		}
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			return runHistorySeed(ctx, deps, cmd.OutOrStdout(), n)
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all chats in the local database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDependencies(cmd, func(ctx context.Context, deps *Dependencies) error {
			if !clearConfirmed {
				ok, err := confirm(cmd.OutOrStdout(), historyConfirmIn,
					fmt.Sprintf("Delete every chat of %s?", deps.Config.UserID))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return runHistoryClear(ctx, deps, cmd.OutOrStdout())
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Maximum number of chats to list")
	historyListCmd.Flags().BoolVarP(&historyGroup, "group", "g", false, "Group chats by date")

	historySearchCmd.Flags().StringVarP(&historyMode, "mode", "m", string(search.ModeAll),
		"Search mode (all, title, date, visibility)")

	historyShowCmd.Flags().BoolVar(&historyRaw, "raw", false, "Print markdown without styling")

	historyExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Export format (markdown, json)")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
	historyExportCmd.Flags().BoolVar(&exportMetadata, "metadata", false, "Include owner and visibility")

	historyClearCmd.Flags().BoolVarP(&clearConfirmed, "yes", "y", false, "Do not ask for confirmation")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRenameCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historySeedCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func newResolver(deps *Dependencies) *history.Resolver {
	return history.NewResolver(deps.Service, deps.Config.UserID)
}

func runHistoryList(ctx context.Context, deps *Dependencies, out io.Writer, limit int, grouped bool) error {
	resolver := newResolver(deps)
	if limit > 0 {
		resolver = resolver.WithLimit(limit)
	}
	chats, err := resolver.List(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}

	if len(chats) == 0 {
		fmt.Fprintln(out, "No chats found.")
		return nil
	}

	now := historyNow()
	if !grouped {
		return writeChatTable(out, chats, 1, now)
	}

	index := 1
	for i, group := range history.Categorize(chats, now).Groups() {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s\n", group.Label)
		if err := writeChatTable(out, group.Chats, index, now); err != nil {
			return err
		}
		index += len(group.Chats)
	}
	return nil
}

func runHistorySearch(ctx context.Context, deps *Dependencies, out io.Writer, query string, mode search.Mode) error {
	chats, err := newResolver(deps).List(ctx)
	if err != nil {
		return err
	}

	now := historyNow()
	matches := search.Apply(chats, query, mode, now)
	if len(matches) == 0 {
		fmt.Fprintf(out, "No chats matching '%s'.\n", query)
		return nil
	}

	// Keep the list index so results can be passed to show/rename/delete.
	position := make(map[string]int, len(chats))
	for i, c := range chats {
		position[c.ID] = i + 1
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tVISIBILITY\tCREATED")
	for _, c := range matches {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			position[c.ID], c.ID, truncate(c.DisplayTitle(), titleColumnWidth), visibilityLabel(c),
			history.FormatCompact(c.CreatedAt, now))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d of %d chats (%s)\n", len(matches), len(chats), mode.Label())
	return nil
}

func runHistoryShow(ctx context.Context, deps *Dependencies, out io.Writer, ref string, raw bool) error {
	chat, err := loadConversation(ctx, deps, ref)
	if err != nil {
		return err
	}

	if raw {
		_, err := io.WriteString(out, history.ExportMarkdown(*chat, history.ExportOptions{IncludeMetadata: true}))
		return err
	}

	opts := render.OptionsFromConfig(deps.Config.Markdown).WithWidth(getTerminalWidth())
	rendered, err := render.Conversation(*chat, opts)
	if err != nil {
		return fmt.Errorf("failed to render conversation: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}

func runHistoryRename(ctx context.Context, deps *Dependencies, out io.Writer, ref, title string) error {
	normalized, err := models.NormalizeTitle(title)
	if err != nil {
		return err
	}

	chat, err := newResolver(deps).ResolveChat(ctx, ref)
	if err != nil {
		return err
	}

	updated, err := deps.Service.UpdateTitle(ctx, chat.ID, normalized)
	if err != nil {
		return fmt.Errorf("failed to rename chat: %w", err)
	}
	if updated == nil {
		return apierrors.NewNotFoundError("chat", chat.ID)
	}

	fmt.Fprintf(out, "Renamed '%s' to '%s'\n", chat.DisplayTitle(), updated.DisplayTitle())
	return nil
}

func runHistoryDelete(ctx context.Context, deps *Dependencies, out io.Writer, ref string) error {
	chat, err := newResolver(deps).ResolveChat(ctx, ref)
	if err != nil {
		return err
	}

	if err := deps.Service.DeleteChat(ctx, chat.ID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	fmt.Fprintf(out, "Deleted chat: %s (%s)\n", chat.DisplayTitle(), chat.ID)
	return nil
}

type exportOptions struct {
	Format   string
	Output   string
	Metadata bool
}

func runHistoryExport(ctx context.Context, deps *Dependencies, out io.Writer, ref string, opts exportOptions) error {
	formatName := opts.Format
	if formatName == "" && opts.Output != "" {
		formatName = fileExtension(opts.Output)
	}
	format, err := history.ParseExportFormat(formatName)
	if err != nil {
		return apierrors.NewValidationError("format", err.Error())
	}

	chat, err := loadConversation(ctx, deps, ref)
	if err != nil {
		return err
	}

	data, err := history.Export(*chat, history.ExportOptions{Format: format, IncludeMetadata: opts.Metadata})
	if err != nil {
		return fmt.Errorf("failed to export chat: %w", err)
	}

	if opts.Output == "" {
		_, err := out.Write(data)
		return err
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(out, "Exported '%s' to %s\n", chat.DisplayTitle(), opts.Output)
	return nil
}

func runHistorySeed(ctx context.Context, deps *Dependencies, out io.Writer, n int) error {
	st, err := deps.requireStore("history seed")
	if err != nil {
		return err
	}

	chats, err := st.Seed(ctx, deps.Config.UserID, n, historyNow())
	if err != nil {
		return fmt.Errorf("failed to seed chats: %w", err)
	}

	fmt.Fprintf(out, "Created %d sample chats for %s\n", len(chats), deps.Config.UserID)
	return nil
}

func runHistoryClear(ctx context.Context, deps *Dependencies, out io.Writer) error {
	st, err := deps.requireStore("history clear")
	if err != nil {
		return err
	}

	n, err := st.ClearAll(ctx, deps.Config.UserID)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	fmt.Fprintf(out, "Deleted %d chats.\n", n)
	return nil
}

// loadConversation resolves ref and fetches the chat with its messages.
func loadConversation(ctx context.Context, deps *Dependencies, ref string) (*models.Chat, error) {
	listed, err := newResolver(deps).ResolveChat(ctx, ref)
	if err != nil {
		return nil, err
	}

	chat, err := deps.Service.GetChat(ctx, listed.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	return chat, nil
}

func writeChatTable(out io.Writer, chats []models.Chat, firstIndex int, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tVISIBILITY\tCREATED")
	for i, c := range chats {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			firstIndex+i, c.ID, truncate(c.DisplayTitle(), titleColumnWidth), visibilityLabel(c),
			history.FormatCompact(c.CreatedAt, now))
	}
	return w.Flush()
}

func visibilityLabel(c models.Chat) string {
	if c.IsPublic() {
		return string(models.VisibilityPublic)
	}
	return string(models.VisibilityPrivate)
}

func fileExtension(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && !strings.ContainsAny(path[i:], `/\`) {
		return path[i+1:]
	}
	return ""
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(out io.Writer, in io.Reader, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
