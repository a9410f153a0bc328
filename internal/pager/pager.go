// Package pager loads a user's chat list page by page with a keyset cursor
// and keeps the loaded pages patched after local mutations.
package pager

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/logging"
	"github.com/diogo/chathist/internal/models"
)

// ScrollThreshold is the scrolled fraction of the list past which the next
// page is requested.
const ScrollThreshold = 0.8

// Fetcher returns one page of a user's chats after cursor ("" for the first).
// An unknown cursor is reported as a NotFoundError.
type Fetcher interface {
	FetchPage(ctx context.Context, userID, cursor string, limit int) (*models.Page, error)
}

// Status is the loading state of the pager.
type Status int

const (
	StatusIdle Status = iota
	StatusLoadingInitial
	StatusLoadingMore
	StatusRefreshing
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case StatusLoadingInitial:
		return "loading-initial"
	case StatusLoadingMore:
		return "loading-more"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "idle"
	}
}

type page struct {
	chats   []models.Chat
	hasMore bool
	// cursor is the ID of the last record the store returned for this page,
	// before deduplication. Remove moves it back to a listed record when the
	// record itself is removed.
	cursor string
	raw    int
}

// Pager is safe for concurrent use. At most one fetch is in flight at a time.
type Pager struct {
	mu sync.Mutex

	fetcher  Fetcher
	userID   string
	pageSize int
	logger   zerolog.Logger

	pages          []page
	loaded         bool
	status         Status
	pendingRefresh bool
	generation     uint64
}

// Option configures a Pager
type Option func(*Pager)

// WithPageSize sets the number of chats requested per page
func WithPageSize(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithLogger sets the pager's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pager) {
		p.logger = logger
	}
}

// New creates a pager over the chats owned by userID
func New(fetcher Fetcher, userID string, opts ...Option) *Pager {
	p := &Pager{
		fetcher:  fetcher,
		userID:   userID,
		pageSize: models.DefaultPageSize,
		logger:   logging.Component("pager"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UserID returns the owner whose chats are paged
func (p *Pager) UserID() string {
	return p.userID
}

// PageSize returns the number of chats requested per page
func (p *Pager) PageSize() int {
	return p.pageSize
}

// LoadInitial fetches the first page. It does nothing and returns false when
// a fetch is in flight or the first page is already loaded.
func (p *Pager) LoadInitial(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.status != StatusIdle || p.loaded {
		p.mu.Unlock()
		return false, nil
	}
	p.status = StatusLoadingInitial
	gen := p.generation
	p.mu.Unlock()

	p.logger.Debug().Str("user_id", p.userID).Msg("loading first page")
	pg, err := p.fetcher.FetchPage(ctx, p.userID, "", p.pageSize)

	p.mu.Lock()
	if gen == p.generation && err == nil {
		p.pages = []page{newPage(pg, nil)}
		p.loaded = true
	}
	p.status = StatusIdle
	p.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("failed to load chats: %w", err)
	}
	return true, p.runDeferredRefresh(ctx, err)
}

// LoadMore fetches the page after the last loaded one. It does nothing and
// returns false before the first page is loaded, while another fetch is in
// flight, or when the last page reported no more records.
//
// If the cursor record disappeared from the store the whole list is
// reloaded instead.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if !p.canLoadMoreLocked() {
		p.mu.Unlock()
		return false, nil
	}
	p.status = StatusLoadingMore
	cursor := p.pages[len(p.pages)-1].cursor
	gen := p.generation
	p.mu.Unlock()

	p.logger.Debug().Str("cursor", cursor).Msg("loading next page")
	pg, err := p.fetcher.FetchPage(ctx, p.userID, cursor, p.pageSize)

	p.mu.Lock()
	if gen == p.generation && err == nil {
		p.pages = append(p.pages, newPage(pg, p.seenLocked()))
	}
	p.status = StatusIdle
	p.mu.Unlock()

	if apierrors.IsNotFound(err) {
		p.logger.Debug().Str("cursor", cursor).Msg("cursor vanished, reloading list")
		_, rerr := p.Refresh(ctx)
		return true, rerr
	}
	if err != nil {
		err = fmt.Errorf("failed to load more chats: %w", err)
	}
	return true, p.runDeferredRefresh(ctx, err)
}

// Refresh refetches the list from the start, as many pages as are currently
// loaded, and replaces the loaded pages in one step once every page arrived.
// A refresh requested while another fetch is in flight is deferred and runs
// as soon as that fetch completes; in that case Refresh returns false.
func (p *Pager) Refresh(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.status != StatusIdle {
		p.pendingRefresh = true
		p.mu.Unlock()
		return false, nil
	}
	p.pendingRefresh = false
	if p.loaded {
		p.status = StatusRefreshing
	} else {
		p.status = StatusLoadingInitial
	}
	want := len(p.pages)
	if want == 0 {
		want = 1
	}
	gen := p.generation
	p.mu.Unlock()

	p.logger.Debug().Int("pages", want).Msg("refreshing chat list")

	var (
		pages  []page
		cursor string
		err    error
	)
	seen := make(map[string]struct{})
	for len(pages) < want {
		var pg *models.Page
		pg, err = p.fetcher.FetchPage(ctx, p.userID, cursor, p.pageSize)
		if err != nil {
			break
		}
		next := newPage(pg, seen)
		pages = append(pages, next)
		if !next.hasMore || next.raw == 0 {
			break
		}
		cursor = next.cursor
	}

	p.mu.Lock()
	if gen == p.generation && err == nil {
		p.pages = pages
		p.loaded = true
	}
	p.status = StatusIdle
	p.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("failed to refresh chats: %w", err)
	}
	return true, p.runDeferredRefresh(ctx, err)
}

// runDeferredRefresh runs a refresh requested while a fetch was in flight.
// The caller's own error takes precedence.
func (p *Pager) runDeferredRefresh(ctx context.Context, err error) error {
	p.mu.Lock()
	pending := p.pendingRefresh && p.status == StatusIdle
	if pending {
		p.pendingRefresh = false
	}
	p.mu.Unlock()

	if !pending {
		return err
	}
	_, rerr := p.Refresh(ctx)
	if err != nil {
		return err
	}
	return rerr
}

// Reset drops every loaded page. Results of fetches already in flight are
// discarded when they arrive.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = nil
	p.loaded = false
	p.pendingRefresh = false
	p.generation++
}

// Items returns the loaded chats in store order, with no duplicate IDs.
func (p *Pager) Items() []models.Chat {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, pg := range p.pages {
		n += len(pg.chats)
	}
	out := make([]models.Chat, 0, n)
	for _, pg := range p.pages {
		out = append(out, pg.chats...)
	}
	return out
}

// Len returns the number of loaded chats
func (p *Pager) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, pg := range p.pages {
		n += len(pg.chats)
	}
	return n
}

// Status returns the current loading state
func (p *Pager) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Loaded reports whether the first page has been loaded
func (p *Pager) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// IsLoading reports whether the first page is being fetched
func (p *Pager) IsLoading() bool {
	return p.Status() == StatusLoadingInitial
}

// IsLoadingMore reports whether a next page is being fetched
func (p *Pager) IsLoadingMore() bool {
	return p.Status() == StatusLoadingMore
}

// HasMore reports whether the store has records after the last loaded page
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMoreLocked()
}

// CanLoadMore reports whether LoadMore would issue a fetch right now
func (p *Pager) CanLoadMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canLoadMoreLocked()
}

func (p *Pager) hasMoreLocked() bool {
	if !p.loaded || len(p.pages) == 0 {
		return false
	}
	last := p.pages[len(p.pages)-1]
	return last.hasMore && last.raw > 0
}

func (p *Pager) canLoadMoreLocked() bool {
	return p.status == StatusIdle && p.hasMoreLocked()
}

// Remove deletes the chats with the given IDs from the loaded pages and
// returns how many were removed.
func (p *Pager) Remove(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	lastListed := ""
	for i := range p.pages {
		kept := p.pages[i].chats[:0:0]
		for _, c := range p.pages[i].chats {
			if _, ok := drop[c.ID]; ok {
				removed++
				continue
			}
			kept = append(kept, c)
		}
		p.pages[i].chats = kept
		if len(kept) > 0 {
			lastListed = kept[len(kept)-1].ID
		}
		// A removed cursor record no longer exists in the store; continue
		// from the last record still listed at or before this page.
		if _, ok := drop[p.pages[i].cursor]; ok {
			p.pages[i].cursor = lastListed
		}
	}
	return removed
}

// PatchTitle replaces the title of a loaded chat. It reports whether the
// chat was found.
func (p *Pager) PatchTitle(id, title string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.pages {
		for j := range p.pages[i].chats {
			if p.pages[i].chats[j].ID == id {
				p.pages[i].chats[j].Title = title
				return true
			}
		}
	}
	return false
}

// Get returns a loaded chat by ID
func (p *Pager) Get(id string) (models.Chat, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pg := range p.pages {
		for _, c := range pg.chats {
			if c.ID == id {
				return c, true
			}
		}
	}
	return models.Chat{}, false
}

func (p *Pager) seenLocked() map[string]struct{} {
	seen := make(map[string]struct{})
	for _, pg := range p.pages {
		for _, c := range pg.chats {
			seen[c.ID] = struct{}{}
		}
	}
	return seen
}

// newPage copies pg, dropping records already in seen and adding the rest
// to it. A nil seen only dedupes within the page.
func newPage(pg *models.Page, seen map[string]struct{}) page {
	if pg == nil {
		return page{}
	}
	if seen == nil {
		seen = make(map[string]struct{}, len(pg.Chats))
	}
	out := page{
		hasMore: pg.HasMore,
		cursor:  pg.LastID(),
		raw:     len(pg.Chats),
		chats:   make([]models.Chat, 0, len(pg.Chats)),
	}
	for _, c := range pg.Chats {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out.chats = append(out.chats, c)
	}
	return out
}

// ScrollTriggered reports whether a list scrolled to scrollTop, showing
// clientHeight of scrollHeight, has passed ScrollThreshold.
func ScrollTriggered(scrollTop, clientHeight, scrollHeight float64) bool {
	if scrollHeight <= 0 {
		return false
	}
	return (scrollTop+clientHeight)/scrollHeight > ScrollThreshold
}
