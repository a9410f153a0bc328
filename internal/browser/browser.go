// Package browser reads the chat service session cookie from installed web browsers.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/chrome"
	_ "github.com/browserutils/kooky/browser/chromium"
	_ "github.com/browserutils/kooky/browser/edge"
	_ "github.com/browserutils/kooky/browser/firefox"
	_ "github.com/browserutils/kooky/browser/opera"

	"github.com/diogo/chathist/internal/config"
)

// SupportedBrowser represents a supported browser type
type SupportedBrowser string

const (
	BrowserAuto     SupportedBrowser = "auto"
	BrowserChrome   SupportedBrowser = "chrome"
	BrowserChromium SupportedBrowser = "chromium"
	BrowserFirefox  SupportedBrowser = "firefox"
	BrowserEdge     SupportedBrowser = "edge"
	BrowserOpera    SupportedBrowser = "opera"
)

// AllSupportedBrowsers returns every concrete browser, in the order auto tries them
func AllSupportedBrowsers() []SupportedBrowser {
	return []SupportedBrowser{
		BrowserChrome,
		BrowserFirefox,
		BrowserEdge,
		BrowserChromium,
		BrowserOpera,
	}
}

// String returns the string representation of the browser
func (b SupportedBrowser) String() string {
	return string(b)
}

// ParseBrowser parses a browser string into a SupportedBrowser
func ParseBrowser(s string) (SupportedBrowser, error) {
	switch strings.ToLower(s) {
	case "auto", "":
		return BrowserAuto, nil
	case "chrome", "google-chrome":
		return BrowserChrome, nil
	case "chromium":
		return BrowserChromium, nil
	case "firefox", "mozilla", "mozilla-firefox":
		return BrowserFirefox, nil
	case "edge", "microsoft-edge", "msedge":
		return BrowserEdge, nil
	case "opera":
		return BrowserOpera, nil
	default:
		return "", fmt.Errorf("unsupported browser: %s. Supported: chrome, chromium, firefox, edge, opera", s)
	}
}

// ExtractResult contains the result of cookie extraction
type ExtractResult struct {
	Cookies     *config.Cookies
	BrowserName string
}

// CookieHost returns the host whose cookies authenticate against serviceURL.
func CookieHost(serviceURL string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid service URL: %q", serviceURL)
	}
	return u.Hostname(), nil
}

// ExtractSessionCookie finds the session cookie for serviceURL in a browser.
func ExtractSessionCookie(ctx context.Context, browser SupportedBrowser, serviceURL string) (*ExtractResult, error) {
	host, err := CookieHost(serviceURL)
	if err != nil {
		return nil, err
	}
	if browser == BrowserAuto {
		return extractFromAllBrowsers(ctx, host)
	}
	return extractFromBrowser(ctx, browser, host)
}

func extractFromAllBrowsers(ctx context.Context, host string) (*ExtractResult, error) {
	var lastErr error
	for _, browser := range AllSupportedBrowsers() {
		result, err := extractFromBrowser(ctx, browser, host)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("could not find a session cookie for %s in any browser: %w", host, lastErr)
	}
	return nil, fmt.Errorf("could not find a session cookie for %s in any supported browser", host)
}

// extractFromBrowser tries every profile of browser until one has the cookie.
func extractFromBrowser(ctx context.Context, browser SupportedBrowser, host string) (*ExtractResult, error) {
	stores := kooky.FindAllCookieStores(ctx)

	var matchingStores []kooky.CookieStore
	for _, store := range stores {
		if matchesBrowser(store.Browser(), browser) {
			matchingStores = append(matchingStores, store)
		} else {
			_ = store.Close()
		}
	}
	defer func() {
		for _, s := range matchingStores {
			_ = s.Close()
		}
	}()

	if len(matchingStores) == 0 {
		return nil, fmt.Errorf("browser %s not found or no cookie store available", browser)
	}

	var lastErr error
	for _, store := range matchingStores {
		seq := store.TraverseCookies(kooky.Valid, kooky.DomainContains(host)).OnlyCookies()
		cookies := func(yield func(*kooky.Cookie) bool) {
			for c := range seq {
				if !yield(c) {
					return
				}
			}
		}
		result, err := sessionFromCookies(ctx, cookies, host, displayName(store.Browser(), store.Profile()))
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func displayName(browserName, profile string) string {
	if profile == "" {
		return browserName
	}
	return fmt.Sprintf("%s (profile: %s)", browserName, profile)
}

// matchesBrowser checks if a browser name matches the target browser
func matchesBrowser(browserName string, target SupportedBrowser) bool {
	browserName = strings.ToLower(browserName)

	switch target {
	case BrowserChrome:
		return strings.Contains(browserName, "chrome") && !strings.Contains(browserName, "chromium")
	case BrowserChromium:
		return strings.Contains(browserName, "chromium")
	case BrowserFirefox:
		return strings.Contains(browserName, "firefox")
	case BrowserEdge:
		return strings.Contains(browserName, "edge")
	case BrowserOpera:
		return strings.Contains(browserName, "opera")
	default:
		return false
	}
}

// sessionFromCookies picks the session cookie, preferring an exact host
// match over a parent or sibling domain.
func sessionFromCookies(ctx context.Context, cookies func(yield func(*kooky.Cookie) bool), host, source string) (*ExtractResult, error) {
	var session string
	exact := false

	for cookie := range cookies {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if cookie == nil || cookie.Name != config.SessionCookieName || cookie.Value == "" {
			continue
		}
		isExact := strings.TrimPrefix(cookie.Domain, ".") == host
		if session == "" || (isExact && !exact) {
			session = cookie.Value
			exact = isExact
		}
	}

	if session == "" {
		return nil, fmt.Errorf("cookie %s not found in %s. Please ensure you are signed in to %s", config.SessionCookieName, source, host)
	}

	return &ExtractResult{
		Cookies:     &config.Cookies{Session: session},
		BrowserName: source,
	}, nil
}

// ListAvailableBrowsers returns a list of browsers that have cookie stores
func ListAvailableBrowsers() []string {
	stores := kooky.FindAllCookieStores(context.Background())
	var browsers []string

	seen := make(map[string]bool)
	for _, store := range stores {
		name := store.Browser()
		if !seen[name] {
			browsers = append(browsers, name)
			seen[name] = true
		}
		_ = store.Close()
	}

	return browsers
}
