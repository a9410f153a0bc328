package commands

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/diogo/chathist/internal/api"
	"github.com/diogo/chathist/internal/browser"
	"github.com/diogo/chathist/internal/config"
	"github.com/diogo/chathist/internal/dialog"
	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/events"
	"github.com/diogo/chathist/internal/store"
	"github.com/diogo/chathist/internal/tui"
)

// ChatService is the chat backend the commands talk to: the local store or
// the remote API client.
type ChatService interface {
	dialog.Service
}

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunHistoryDialog(ctrl *dialog.Controller, host *tui.DialogHost, opts tui.DialogOptions) (tui.DialogResult, error)
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	Config *config.Config

	// Service is the chat backend.
	Service ChatService

	// Store is set when Service is the local database.
	Store *store.Store

	// Bus carries change notifications from the store to open dialogs.
	Bus *events.InMemoryBus

	// TUI is the terminal user interface.
	TUI TUIInterface

	// Clipboard copies text to the system clipboard.
	Clipboard func(string) error

	closers []func() error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunHistoryDialog(ctrl *dialog.Controller, host *tui.DialogHost, opts tui.DialogOptions) (tui.DialogResult, error) {
	return tui.RunHistoryDialog(ctrl, host, opts)
}

// NewDependencies creates a Dependencies struct with default implementations
// around svc.
func NewDependencies(cfg *config.Config, svc ChatService) *Dependencies {
	return &Dependencies{
		Config:    cfg,
		Service:   svc,
		Bus:       events.NewInMemoryBus(),
		TUI:       &DefaultTUI{},
		Clipboard: clipboard.WriteAll,
	}
}

// Close releases the backend.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// requireStore returns the local database or explains why it is unavailable.
func (d *Dependencies) requireStore(command string) (*store.Store, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("'%s' needs the local database, but remote.url is set to %s", command, d.Config.Remote.URL)
	}
	return d.Store, nil
}

// openDependencies connects to the remote service when remote.url is set and
// opens the local database otherwise. Tests replace it.
var openDependencies = func(cfg *config.Config) (*Dependencies, error) {
	if cfg.IsRemote() {
		client, err := newRemoteClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewDependencies(cfg, client), nil
	}

	deps := NewDependencies(cfg, nil)
	st, err := store.Open(cfg.Database.Path, store.WithBus(deps.Bus))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	deps.Service = st
	deps.Store = st
	deps.closers = append(deps.closers, st.Close)
	return deps, nil
}

// newRemoteClient builds the API client from the saved session cookie and,
// if configured, a browser to re-read it from on auth failures.
func newRemoteClient(cfg *config.Config) (*api.Client, error) {
	opts := []api.ClientOption{api.WithTimeout(cfg.Remote.TimeoutSeconds)}

	cookies, err := config.LoadCookies()
	switch {
	case err == nil:
		opts = append(opts, api.WithCookies(cookies))
	case errors.Is(err, apierrors.ErrNoCookies) && cfg.Remote.Browser != "":
		// The browser refresh supplies the cookie on the first 401.
	default:
		return nil, err
	}

	if cfg.Remote.Browser != "" {
		b, err := browser.ParseBrowser(cfg.Remote.Browser)
		if err != nil {
			return nil, fmt.Errorf("invalid remote.browser: %w", err)
		}
		opts = append(opts, api.WithBrowserRefresh(b))
	}

	return api.NewClient(cfg.Remote.URL, opts...)
}
