package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/diogo/chathist/internal/config"
)

var importCookiesCmd = &cobra.Command{
	Use:   "import-cookies <path>",
	Short: "Import the session cookie from a file",
	Long: `Import the chat service session cookie from a JSON file.

The cookies file should contain either:
1. A list of objects: [{"name": "chathist_session", "value": "..."}]
2. A simple dictionary: {"chathist_session": "..."}

Required cookie: chathist_session`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImportCookies(cmd.OutOrStdout(), args[0])
	},
}

func runImportCookies(out io.Writer, sourcePath string) error {
	if err := config.ImportCookies(sourcePath); err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}

	cookiesPath, _ := config.GetCookiesPath()
	fmt.Fprintf(out, "Cookies imported successfully to %s\n", cookiesPath)
	return nil
}
