package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/diogo/chathist/internal/browser"
	"github.com/diogo/chathist/internal/config"
	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 16 << 20

// CookieExtractor reads a session cookie from a browser.
type CookieExtractor func(ctx context.Context, b browser.SupportedBrowser, serviceURL string) (*browser.ExtractResult, error)

// Client talks to a hosted chat history service
type Client struct {
	httpClient     tls_client.HttpClient
	baseURL        string
	cookies        *config.Cookies
	timeoutSeconds int
	logger         zerolog.Logger

	// Browser-based cookie refresh
	browserRefresh        bool
	browserRefreshType    browser.SupportedBrowser
	extractCookies        CookieExtractor
	saveCookies           func(*config.Cookies) error
	lastBrowserRefresh    time.Time
	browserRefreshMinWait time.Duration
	mu                    sync.Mutex
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithHTTPClient replaces the TLS client (used by tests)
func WithHTTPClient(httpClient tls_client.HttpClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCookies sets the session cookie sent with every request
func WithCookies(cookies *config.Cookies) ClientOption {
	return func(c *Client) {
		c.cookies = cookies
	}
}

// WithTimeout sets the per-request timeout in seconds
func WithTimeout(seconds int) ClientOption {
	return func(c *Client) {
		c.timeoutSeconds = seconds
	}
}

// WithBrowserRefresh re-reads the session cookie from a browser once when the
// service rejects the current one.
func WithBrowserRefresh(browserType browser.SupportedBrowser) ClientOption {
	return func(c *Client) {
		c.browserRefresh = true
		c.browserRefreshType = browserType
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apierrors.NewValidationError("remote.url", fmt.Sprintf("invalid service URL %q", baseURL))
	}

	client := &Client{
		baseURL:               u.String(),
		cookies:               &config.Cookies{},
		timeoutSeconds:        30,
		logger:                logging.Component("api"),
		extractCookies:        browser.ExtractSessionCookie,
		saveCookies:           config.SaveCookies,
		browserRefreshMinWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		// Chrome profile for browser emulation
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(client.timeoutSeconds),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}
		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// BaseURL returns the service URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchPage returns one page of userID's chats after cursor.
func (c *Client) FetchPage(ctx context.Context, userID, cursor string, limit int) (*models.Page, error) {
	q := url.Values{}
	q.Set("user", userID)
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.do(ctx, "list chats", http.MethodGet, EndpointChats+"?"+q.Encode(), nil, "cursor", cursor)
	if err != nil {
		return nil, err
	}
	return parsePage(body)
}

// GetChat returns a chat with its messages.
func (c *Client) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	if !models.IsValidChatID(id) {
		return nil, apierrors.NewValidationError("chat", "invalid chat ID")
	}
	body, err := c.do(ctx, "get chat", http.MethodGet, EndpointChats+"/"+id, nil, "chat", id)
	if err != nil {
		return nil, err
	}
	return parseChatBody(body)
}

// DeleteChat deletes a chat.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	if !models.IsValidChatID(id) {
		return apierrors.NewValidationError("chat", "invalid chat ID")
	}
	_, err := c.do(ctx, "delete chat", http.MethodDelete, EndpointChats+"/"+id, nil, "chat", id)
	return err
}

// UpdateTitle renames a chat. A chat that no longer exists yields (nil, nil).
func (c *Client) UpdateTitle(ctx context.Context, id, title string) (*models.Chat, error) {
	if !models.IsValidChatID(id) {
		return nil, apierrors.NewValidationError("chat", "invalid chat ID")
	}
	title, err := models.NormalizeTitle(title)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to encode title: %w", err)
	}

	body, err := c.do(ctx, "update title", http.MethodPatch, EndpointChats+"/"+id, payload, "chat", id)
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseChatBody(body)
}

// do sends a request and maps non-2xx answers onto the error taxonomy.
// One auth failure is retried after a browser cookie refresh when enabled.
func (c *Client) do(ctx context.Context, op, method, endpoint string, payload []byte, resource, id string) ([]byte, error) {
	body, status, err := c.send(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}

	if (status == http.StatusUnauthorized || status == http.StatusForbidden) && c.browserRefresh {
		if refreshed, rerr := c.RefreshFromBrowser(ctx); refreshed {
			body, status, err = c.send(ctx, method, endpoint, payload)
			if err != nil {
				return nil, err
			}
		} else {
			c.logger.Debug().Err(rerr).Msg("browser cookie refresh skipped")
		}
	}

	if status >= 200 && status < 300 {
		return body, nil
	}
	return nil, mapStatus(op, endpoint, status, body, resource, id)
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range DefaultHeaders() {
		req.Header.Set(key, value)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session := c.cookies.GetSession(); session != "" {
		req.AddCookie(&http.Cookie{Name: config.SessionCookieName, Value: session})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, apierrors.NewTransientError(method+" "+endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, apierrors.NewTransientError("read response", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request complete")

	return body, resp.StatusCode, nil
}

// mapStatus turns an unsuccessful status into a typed error.
func mapStatus(op, endpoint string, status int, body []byte, resource, id string) error {
	message := gjson.GetBytes(body, PathMessage).String()
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusNotFound:
		return apierrors.NewNotFoundError(resource, id)
	case status == http.StatusBadRequest:
		return apierrors.NewValidationError("", message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apierrors.NewAuthError(message)
	case status == http.StatusTooManyRequests || status >= 500:
		return apierrors.NewTransientError(op, apierrors.NewAPIError(status, endpoint, message))
	default:
		return apierrors.NewAPIError(status, endpoint, message)
	}
}

// RefreshFromBrowser re-reads the session cookie from the configured browser.
// Returns true if the cookie was replaced.
func (c *Client) RefreshFromBrowser(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.browserRefresh {
		return false, fmt.Errorf("browser refresh is not enabled")
	}
	if !c.lastBrowserRefresh.IsZero() && time.Since(c.lastBrowserRefresh) < c.browserRefreshMinWait {
		return false, fmt.Errorf("browser refresh attempted too recently, wait %v", c.browserRefreshMinWait-time.Since(c.lastBrowserRefresh))
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result, err := c.extractCookies(ctx, c.browserRefreshType, c.baseURL)
	c.lastBrowserRefresh = time.Now()
	if err != nil {
		return false, fmt.Errorf("failed to extract cookies from browser: %w", err)
	}

	c.cookies.SetSession(result.Cookies.GetSession())
	if c.saveCookies != nil {
		if err := c.saveCookies(c.cookies); err != nil {
			// cookies are updated in memory
			c.logger.Warn().Err(err).Msg("failed to save refreshed cookies")
		}
	}
	c.logger.Info().Str("browser", result.BrowserName).Msg("session cookie refreshed from browser")
	return true, nil
}
