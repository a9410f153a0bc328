package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apierrors "github.com/diogo/chathist/internal/errors"
)

// SessionCookieName is the cookie the chat service authenticates with.
const SessionCookieName = "chathist_session"

// Cookies holds the session cookie for the remote chat service
type Cookies struct {
	mu      sync.RWMutex `json:"-"`
	Session string       `json:"chathist_session"`
}

// GetSession returns the session token in a thread-safe manner
func (c *Cookies) GetSession() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Session
}

// SetSession replaces the session token
func (c *Cookies) SetSession(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Session = token
}

// CookieListItem represents a cookie in browser export format
type CookieListItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadCookies loads cookies from the cookies file
func LoadCookies() (*Cookies, error) {
	cookiesPath, err := GetCookiesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cookiesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w. Sign in first:\n  chathist login --browser auto", apierrors.ErrNoCookies)
		}
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	return parseCookies(data)
}

// parseCookies parses cookies from JSON data
// Supports both list format [{name, value}] and dict format {name: value}
func parseCookies(data []byte) (*Cookies, error) {
	var dictFormat map[string]string
	if err := json.Unmarshal(data, &dictFormat); err == nil {
		session, ok := dictFormat[SessionCookieName]
		if !ok || session == "" {
			return nil, fmt.Errorf("missing required cookie: %s", SessionCookieName)
		}
		return &Cookies{Session: session}, nil
	}

	var listFormat []CookieListItem
	if err := json.Unmarshal(data, &listFormat); err == nil {
		cookies := &Cookies{}
		for _, item := range listFormat {
			if item.Name == SessionCookieName {
				cookies.Session = item.Value
			}
		}

		if cookies.Session == "" {
			return nil, fmt.Errorf("missing required cookie: %s", SessionCookieName)
		}
		return cookies, nil
	}

	return nil, fmt.Errorf("invalid cookies format: expected list [{name, value}] or dict {name: value}")
}

// SaveCookies saves cookies to the cookies file
func SaveCookies(cookies *Cookies) error {
	if err := ValidateCookies(cookies); err != nil {
		return err
	}

	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	listFormat := []CookieListItem{
		{Name: SessionCookieName, Value: cookies.GetSession()},
	}

	data, err := json.MarshalIndent(listFormat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	// owner read/write only
	if err := os.WriteFile(filepath.Join(configDir, "cookies.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}

	return nil
}

// ImportCookies imports cookies from a browser export file
func ImportCookies(sourcePath string) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source file not found: %s", sourcePath)
		}
		return fmt.Errorf("could not read file: %w", err)
	}

	cookies, err := parseCookies(data)
	if err != nil {
		return err
	}

	return SaveCookies(cookies)
}

// ValidateCookies checks if cookies are valid
func ValidateCookies(cookies *Cookies) error {
	if cookies == nil {
		return fmt.Errorf("cookies are nil")
	}
	if cookies.GetSession() == "" {
		return fmt.Errorf("missing required cookie: %s", SessionCookieName)
	}
	return nil
}
