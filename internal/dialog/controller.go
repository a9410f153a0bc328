// Package dialog drives the chat history list: it owns the search state,
// the pager and the selection machine, talks to the chat service and turns
// every outcome into list patches, user notices and navigation.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/events"
	"github.com/diogo/chathist/internal/history"
	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
	"github.com/diogo/chathist/internal/pager"
	"github.com/diogo/chathist/internal/prefetch"
	"github.com/diogo/chathist/internal/search"
	"github.com/diogo/chathist/internal/selection"
)

// DefaultBulkConcurrency bounds the delete calls a bulk delete runs at once.
const DefaultBulkConcurrency = 4

// Notices shown to the user.
const (
	NoticeChatDeleted      = "Chat deleted"
	NoticeTitleUpdated     = "Title updated"
	NoticeDeleteFailed     = "Failed to delete chat. Please try again."
	NoticeUpdateFailed     = "Failed to update title. Please try again."
	NoticeChatGone         = "This chat no longer exists"
	NoticeNothingSelected  = "No chats selected"
	NoticeLoadFailed       = "Failed to load chats. Please try again."
	noticeBulkFailedFormat = "Failed to delete %s (%s). Please try again."
)

// Service is the chat store as seen by the history list.
type Service interface {
	FetchPage(ctx context.Context, userID, cursor string, limit int) (*models.Page, error)
	DeleteChat(ctx context.Context, id string) error
	// UpdateTitle returns nil when the chat is gone or the change was rejected.
	UpdateTitle(ctx context.Context, id, title string) (*models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
}

// Navigator knows which chat is open and can switch to another view.
type Navigator interface {
	CurrentChatID() string
	OpenChat(id string)
	GoHome()
}

// Notifier shows short notices to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Config holds the controller's collaborators and knobs. Only UserID is required.
type Config struct {
	UserID          string
	PageSize        int
	BulkConcurrency int
	Now             func() time.Time
	Prefetcher      *prefetch.Prefetcher
	Bus             events.Bus
	Logger          *zerolog.Logger
	// OnChange is called after the list changed outside a controller call,
	// e.g. after an invalidation event was handled.
	OnChange func()
}

// Controller is safe for concurrent use. State mutations that follow a
// successful external call are applied under one lock acquisition, so a
// Snapshot never observes a half-applied change.
type Controller struct {
	mu sync.Mutex

	svc      Service
	nav      Navigator
	notify   Notifier
	pager    *pager.Pager
	machine  *selection.Machine
	prefetch *prefetch.Prefetcher
	bus      events.Bus
	subID    string
	logger   zerolog.Logger

	userID      string
	concurrency int
	now         func() time.Time
	onChange    func()

	open       bool
	query      string
	mode       search.Mode
	navigating string
	lastErr    error

	wg sync.WaitGroup
}

// New creates a controller for cfg.UserID's chats.
func New(svc Service, nav Navigator, notify Notifier, cfg Config) *Controller {
	if nav == nil {
		nav = noopNavigator{}
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	c := &Controller{
		svc:         svc,
		nav:         nav,
		notify:      notify,
		machine:     selection.New(),
		prefetch:    cfg.Prefetcher,
		bus:         cfg.Bus,
		userID:      cfg.UserID,
		concurrency: cfg.BulkConcurrency,
		now:         cfg.Now,
		onChange:    cfg.OnChange,
		mode:        search.ModeAll,
		logger:      logging.Component("dialog"),
	}
	if cfg.Logger != nil {
		c.logger = *cfg.Logger
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultBulkConcurrency
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.pager = pager.New(svc, cfg.UserID, pager.WithPageSize(cfg.PageSize), pager.WithLogger(c.logger))

	if c.bus != nil {
		c.subID = "dialog-" + uuid.NewString()
		filter := events.Filter{
			Types:  []events.Type{events.TypeChatsInvalidated, events.TypeChatCreated},
			UserID: cfg.UserID,
		}
		if err := c.bus.Subscribe(c.subID, filter, c.handleInvalidation); err != nil {
			c.logger.Warn().Err(err).Msg("failed to subscribe to chat events")
			c.subID = ""
		}
	}
	return c
}

// Shutdown unsubscribes from the event bus and waits for background refreshes.
func (c *Controller) Shutdown() {
	if c.bus != nil && c.subID != "" {
		_ = c.bus.Unsubscribe(c.subID)
	}
	c.wg.Wait()
}

func (c *Controller) handleInvalidation(ev *events.Event) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Debug().Str("event", string(ev.Type)).Msg("chat list invalidated")
		if _, err := c.pager.Refresh(context.Background()); err != nil {
			c.logger.Debug().Err(err).Msg("refresh after invalidation failed")
		}
		if c.onChange != nil {
			c.onChange()
		}
	}()
}

// Open resets the search, loads the first page (or refreshes what is
// loaded) and starts prefetching the top of the list.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	c.open = true
	c.query = ""
	c.mode = search.ModeAll
	c.navigating = ""
	c.lastErr = nil
	c.mu.Unlock()
	c.machine.Reset()

	var err error
	if c.pager.Loaded() {
		_, err = c.pager.Refresh(ctx)
	} else {
		_, err = c.pager.LoadInitial(ctx)
	}

	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to load chats")
		return err
	}
	c.warm()
	return nil
}

// Close cancels every transient state: search text, mode, item state, bulk
// mode and selection. In-flight external calls are not cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.query = ""
	c.mode = search.ModeAll
	c.machine.Reset()
}

// IsOpen reports whether the list is open
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Controller) warm() {
	if c.prefetch == nil {
		return
	}
	items := c.pager.Items()
	ids := make([]string, 0, len(items))
	for _, chat := range items {
		ids = append(ids, chat.ID)
	}
	c.prefetch.Warm(ids)
}

// SetQuery changes the search text and prunes the selection to the new
// filtered list.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
	c.pruneLocked()
}

// SetMode changes the search mode and prunes the selection.
func (c *Controller) SetMode(mode search.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.pruneLocked()
}

// CycleMode advances the search mode and returns the new one.
func (c *Controller) CycleMode() search.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = c.mode.Next()
	c.pruneLocked()
	return c.mode
}

func (c *Controller) pruneLocked() {
	c.machine.Prune(chatIDs(c.filteredLocked()))
}

func (c *Controller) filteredLocked() []models.Chat {
	return search.Apply(c.pager.Items(), c.query, c.mode, c.now())
}

// Filtered returns the chats matching the current search, in store order.
func (c *Controller) Filtered() []models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filteredLocked()
}

// CurrentChatID returns the open chat, if its ID is well formed
func (c *Controller) CurrentChatID() string {
	id := c.nav.CurrentChatID()
	if id == "" || !models.IsValidChatID(id) {
		return ""
	}
	return id
}

// Snapshot is everything needed to render the list at one instant.
type Snapshot struct {
	Open          bool
	Query         string
	Mode          search.Mode
	Chats         []models.Chat
	Groups        []history.Group
	Loaded        int
	Loading       bool
	LoadingMore   bool
	HasMore       bool
	Err           error
	Item          selection.ItemState
	ListMode      selection.ListMode
	Pending       bool
	Selected      map[string]bool
	AllSelected   bool
	CurrentChatID string
	NavigatingID  string
}

// IsSelected reports whether id is in the bulk selection
func (s Snapshot) IsSelected(id string) bool {
	return s.Selected[id]
}

// Snapshot returns a consistent view of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	filtered := c.filteredLocked()
	ids := chatIDs(filtered)

	selected := make(map[string]bool)
	for _, id := range c.machine.Selected() {
		selected[id] = true
	}

	return Snapshot{
		Open:          c.open,
		Query:         c.query,
		Mode:          c.mode,
		Chats:         filtered,
		Groups:        history.Categorize(filtered, now).Groups(),
		Loaded:        c.pager.Len(),
		Loading:       c.pager.IsLoading(),
		LoadingMore:   c.pager.IsLoadingMore(),
		HasMore:       c.pager.HasMore(),
		Err:           c.lastErr,
		Item:          c.machine.Item(),
		ListMode:      c.machine.Mode(),
		Pending:       c.machine.Pending(),
		Selected:      selected,
		AllSelected:   c.machine.AllSelected(ids),
		CurrentChatID: c.CurrentChatID(),
		NavigatingID:  c.navigating,
	}
}

// OnScroll loads the next page once the list is scrolled past the threshold.
func (c *Controller) OnScroll(ctx context.Context, scrollTop, clientHeight, scrollHeight float64) (bool, error) {
	if !pager.ScrollTriggered(scrollTop, clientHeight, scrollHeight) {
		return false, nil
	}
	return c.LoadMore(ctx)
}

// OnSentinelVisible loads the next page when the end of the list is shown.
func (c *Controller) OnSentinelVisible(ctx context.Context) (bool, error) {
	return c.LoadMore(ctx)
}

// LoadMore fetches the next page if one exists and no fetch is in flight.
func (c *Controller) LoadMore(ctx context.Context) (bool, error) {
	if !c.pager.CanLoadMore() {
		return false, nil
	}
	issued, err := c.pager.LoadMore(ctx)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return issued, err
}

// Refresh reloads the loaded pages.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.pager.Refresh(ctx)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
	return err
}

// Activate is the primary action on a row: in bulk mode it toggles the
// selection, otherwise it opens the chat.
func (c *Controller) Activate(id string) error {
	if mode := c.machine.Mode(); mode.IsBulk() {
		if mode == selection.ModeConfirmingBulkDelete {
			return selection.ErrWrongState
		}
		_, err := c.machine.Toggle(id)
		return err
	}

	if item := c.machine.Item(); !item.IsIdle() {
		return selection.ErrItemBusy
	}

	c.mu.Lock()
	c.navigating = id
	c.mu.Unlock()
	c.nav.OpenChat(id)
	return nil
}

// Hover prefetches the chat under the pointer.
func (c *Controller) Hover(id string) {
	if c.prefetchAllowed() {
		c.prefetch.Hover(id)
	}
}

// Focus prefetches the chat under the keyboard cursor.
func (c *Controller) Focus(id string) {
	if c.prefetchAllowed() {
		c.prefetch.Focus(id)
	}
}

func (c *Controller) prefetchAllowed() bool {
	if c.prefetch == nil {
		return false
	}
	return c.machine.Item().IsIdle() && !c.machine.Mode().IsBulk()
}

// Preview returns the prefetched full conversation, if any
func (c *Controller) Preview(id string) (*models.Chat, bool) {
	if c.prefetch == nil {
		return nil, false
	}
	return c.prefetch.Cached(id)
}

// BeginDelete asks for confirmation before deleting id.
func (c *Controller) BeginDelete(id string) error {
	return c.machine.BeginDelete(id)
}

// CancelDelete drops the pending delete confirmation.
func (c *Controller) CancelDelete() error {
	if c.machine.Item().Kind != selection.ItemConfirmingDelete {
		return selection.ErrWrongState
	}
	return c.machine.Cancel()
}

// ConfirmDelete deletes the chat awaiting confirmation. On success the chat
// leaves the list and, if it was the open chat, the view goes home. On
// failure the item returns to idle and a notice is shown.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	state, err := c.machine.StartItem(selection.ItemConfirmingDelete)
	if err != nil {
		return err
	}
	id := state.ID

	if err := c.svc.DeleteChat(ctx, id); err != nil {
		c.machine.FinishItem()
		return c.handleMutationError(ctx, "delete chat", id, err, NoticeDeleteFailed)
	}

	c.mu.Lock()
	c.pager.Remove(id)
	c.machine.Forget(id)
	c.machine.FinishItem()
	if c.prefetch != nil {
		c.prefetch.Forget(id)
	}
	c.mu.Unlock()

	c.logger.Info().Str("chat_id", id).Msg("chat deleted")
	c.notify.Success(NoticeChatDeleted)
	if c.CurrentChatID() == id {
		c.nav.GoHome()
	}
	return nil
}

// BeginEdit starts renaming id, seeding the draft with its current title.
func (c *Controller) BeginEdit(id string) error {
	chat, _ := c.pager.Get(id)
	return c.machine.BeginEdit(id, chat.Title)
}

// SetDraft replaces the title being edited.
func (c *Controller) SetDraft(draft string) error {
	return c.machine.SetDraft(draft)
}

// CancelEdit abandons the rename.
func (c *Controller) CancelEdit() error {
	if c.machine.Item().Kind != selection.ItemEditing {
		return selection.ErrWrongState
	}
	return c.machine.Cancel()
}

// SaveEdit validates the draft and issues one update call. An invalid
// draft is rejected locally, leaving the item in editing.
func (c *Controller) SaveEdit(ctx context.Context) error {
	item := c.machine.Item()
	if item.Kind != selection.ItemEditing {
		return selection.ErrWrongState
	}

	title, err := models.NormalizeTitle(item.Draft)
	if err != nil {
		c.notify.Error(err.Error())
		return err
	}

	state, err := c.machine.StartItem(selection.ItemEditing)
	if err != nil {
		return err
	}
	id := state.ID

	updated, err := c.svc.UpdateTitle(ctx, id, title)
	if err != nil {
		c.machine.FinishItem()
		return c.handleMutationError(ctx, "update title", id, err, NoticeUpdateFailed)
	}
	if updated == nil {
		c.machine.FinishItem()
		c.notify.Error(NoticeUpdateFailed)
		c.refreshQuietly(ctx)
		return apierrors.NewNotFoundError("chat", id)
	}

	c.mu.Lock()
	c.pager.PatchTitle(id, title)
	if c.prefetch != nil {
		c.prefetch.PatchTitle(id, title)
	}
	c.machine.FinishItem()
	c.mu.Unlock()

	c.logger.Info().Str("chat_id", id).Msg("chat renamed")
	c.notify.Success(NoticeTitleUpdated)
	return nil
}

// handleMutationError shows the notice for err and, when the chat vanished,
// reloads the list before returning.
func (c *Controller) handleMutationError(ctx context.Context, op, id string, err error, fallback string) error {
	c.logger.Warn().Err(err).Str("chat_id", id).Msg(op + " failed")
	if apierrors.IsNotFound(err) {
		c.notify.Error(NoticeChatGone)
		c.refreshQuietly(ctx)
	} else {
		c.notify.Error(fallback)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (c *Controller) refreshQuietly(ctx context.Context) {
	if _, err := c.pager.Refresh(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("background refresh failed")
	}
}

// ToggleBulk switches bulk selection mode, cancelling any edit or pending
// delete confirmation and clearing the selection.
func (c *Controller) ToggleBulk() (selection.ListMode, error) {
	return c.machine.ToggleBulk()
}

// ToggleSelect flips the selection of id.
func (c *Controller) ToggleSelect(id string) (bool, error) {
	return c.machine.Toggle(id)
}

// SelectAll selects every chat in the current filtered list.
func (c *Controller) SelectAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.SelectAll(chatIDs(c.filteredLocked()))
}

// DeselectAll clears the selection.
func (c *Controller) DeselectAll() error {
	return c.machine.DeselectAll()
}

// RequestBulkDelete asks for confirmation before deleting the selection.
func (c *Controller) RequestBulkDelete() error {
	err := c.machine.RequestBulkDelete()
	if errors.Is(err, selection.ErrNothingSelected) {
		c.notify.Error(NoticeNothingSelected)
	}
	return err
}

// CancelBulkDelete returns to bulk selection.
func (c *Controller) CancelBulkDelete() error {
	return c.machine.CancelBulkDelete()
}

// BulkResult reports the outcome of a bulk delete.
type BulkResult struct {
	Deleted []string
	Failed  map[string]error
}

// ConfirmBulkDelete deletes every selected chat, running up to the
// configured number of delete calls at once. Successful deletes are applied
// even when others fail; the returned error covers only the failures.
func (c *Controller) ConfirmBulkDelete(ctx context.Context) (BulkResult, error) {
	ids, err := c.machine.StartBulkDelete()
	if err != nil {
		return BulkResult{}, err
	}

	titles := make(map[string]string, len(ids))
	for _, id := range ids {
		if chat, ok := c.pager.Get(id); ok {
			titles[id] = chat.DisplayTitle()
		}
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = c.svc.DeleteChat(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{Failed: make(map[string]error)}
	var (
		failedTitles []string
		joined       []error
		vanished     bool
	)
	for i, id := range ids {
		if errs[i] == nil {
			result.Deleted = append(result.Deleted, id)
			continue
		}
		result.Failed[id] = errs[i]
		joined = append(joined, fmt.Errorf("%s: %w", id, errs[i]))
		title := titles[id]
		if title == "" {
			title = id
		}
		failedTitles = append(failedTitles, title)
		if apierrors.IsNotFound(errs[i]) {
			vanished = true
		}
	}

	c.mu.Lock()
	c.pager.Remove(result.Deleted...)
	c.machine.FinishBulkDelete(result.Deleted, len(result.Failed))
	if c.prefetch != nil {
		c.prefetch.Forget(result.Deleted...)
	}
	c.mu.Unlock()

	c.logger.Info().
		Int("deleted", len(result.Deleted)).
		Int("failed", len(result.Failed)).
		Msg("bulk delete finished")

	if n := len(result.Deleted); n > 0 {
		c.notify.Success(fmt.Sprintf("%s deleted", pluralChats(n)))
	}
	if current := c.CurrentChatID(); current != "" {
		for _, id := range result.Deleted {
			if id == current {
				c.nav.GoHome()
				break
			}
		}
	}

	if len(result.Failed) == 0 {
		return result, nil
	}

	c.notify.Error(fmt.Sprintf(noticeBulkFailedFormat, pluralChats(len(result.Failed)), strings.Join(failedTitles, ", ")))
	if vanished {
		c.refreshQuietly(ctx)
	}
	return result, fmt.Errorf("failed to delete %d of %d chats: %w", len(result.Failed), len(ids), errors.Join(joined...))
}

func pluralChats(n int) string {
	if n == 1 {
		return "1 chat"
	}
	return fmt.Sprintf("%d chats", n)
}

func chatIDs(chats []models.Chat) []string {
	ids := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	return ids
}

type noopNavigator struct{}

func (noopNavigator) CurrentChatID() string { return "" }
func (noopNavigator) OpenChat(string)       {}
func (noopNavigator) GoHome()               {}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Error(string)   {}
