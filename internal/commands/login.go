package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/diogo/chathist/internal/browser"
	"github.com/diogo/chathist/internal/config"
	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/logging"
)

// loginTimeout bounds the browser cookie store lookup
const loginTimeout = 30 * time.Second

var (
	loginBrowser string
	loginList    bool
)

// extractSessionCookie reads the session cookie from a browser. Tests replace it.
var extractSessionCookie = browser.ExtractSessionCookie

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Extract the session cookie from your browser",
	Long: `Read the chat service session cookie directly from your browser's cookie
store and save it to ~/.chathist/cookies.json.

The service is the one set with --remote or remote.url.

Supported browsers: ` + SupportedBrowsersHelp() + `

IMPORTANT:
- Close the browser before running this command to avoid database locks
- You must be signed in to the chat service in the browser
- On macOS, you may be prompted for keychain access

Examples:
  chathist --remote https://chat.example.com login
  chathist login -b firefox
  chathist login --list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginList {
			return runListBrowsers(cmd.OutOrStdout())
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		initLogging(cfg, cmd.ErrOrStderr())

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return runLogin(ctx, cmd.OutOrStdout(), loginBrowser, cfg.Remote.URL)
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginBrowser, "browser", "b", "auto",
		"Browser to extract cookies from ("+SupportedBrowsersHelp()+", auto)")
	loginCmd.Flags().BoolVarP(&loginList, "list", "l", false,
		"List available browsers with cookie stores")
}

func runLogin(ctx context.Context, out io.Writer, browserName, serviceURL string) error {
	if serviceURL == "" {
		return apierrors.NewValidationError("remote.url", "no chat service configured, pass --remote or set remote.url")
	}

	targetBrowser, err := browser.ParseBrowser(browserName)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Extracting the session cookie for %s...\n", serviceURL)
	fmt.Fprintln(out, "Note: If the browser is open, you may encounter database lock errors.")
	fmt.Fprintln(out)

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	result, err := extractSessionCookie(ctx, targetBrowser, serviceURL)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}

	if err := config.ValidateCookies(result.Cookies); err != nil {
		return fmt.Errorf("extracted cookies are invalid: %w", err)
	}

	if err := config.SaveCookies(result.Cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	cookiesPath, _ := config.GetCookiesPath()
	loginLog := logging.Component("login")
	loginLog.Info().
		Str("browser", result.BrowserName).
		Str("session", logging.MaskSecret(result.Cookies.GetSession())).
		Msg("session cookie saved")

	fmt.Fprintf(out, "Successfully extracted the session from %s\n", result.BrowserName)
	fmt.Fprintf(out, "Cookies saved to: %s\n", cookiesPath)
	fmt.Fprintf(out, "  %s: %s...\n", config.SessionCookieName, truncateValue(result.Cookies.GetSession(), 12))
	return nil
}

func runListBrowsers(out io.Writer) error {
	browsers := browser.ListAvailableBrowsers()

	if len(browsers) == 0 {
		fmt.Fprintln(out, "No browsers with cookie stores found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Supported browsers:")
		for _, b := range browser.AllSupportedBrowsers() {
			fmt.Fprintf(out, "  - %s\n", b)
		}
		return nil
	}

	fmt.Fprintln(out, "Available browsers with cookie stores:")
	for _, b := range browsers {
		fmt.Fprintf(out, "  - %s\n", b)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Use 'chathist login -b <browser>' to extract the session from a specific browser.")

	return nil
}

// SupportedBrowsersHelp returns a help string listing supported browsers
func SupportedBrowsersHelp() string {
	browsers := browser.AllSupportedBrowsers()
	names := make([]string, len(browsers))
	for i, b := range browsers {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}
