package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apierrors "github.com/diogo/chathist/internal/errors"
	"github.com/diogo/chathist/internal/models"
)

type fetchCall struct {
	cursor string
	limit  int
}

// scriptedFetcher returns queued responses in order. When gate is set each
// call blocks until a value is sent on it.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses []fetchResponse
	calls     []fetchCall
	gate      chan struct{}
	started   chan struct{}
}

type fetchResponse struct {
	page *models.Page
	err  error
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, _ string, cursor string, limit int) (*models.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{cursor: cursor, limit: limit})
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil, errors.New("unexpected fetch")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r.page, r.err
}

func (f *scriptedFetcher) push(page *models.Page, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fetchResponse{page: page, err: err})
}

func (f *scriptedFetcher) cursors() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.cursor)
	}
	return out
}

func chats(ids ...string) []models.Chat {
	out := make([]models.Chat, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Chat{ID: id, Title: "title " + id})
	}
	return out
}

func pageOf(hasMore bool, ids ...string) *models.Page {
	return &models.Page{Chats: chats(ids...), HasMore: hasMore}
}

func itemIDs(p *Pager) []string {
	var out []string
	for _, c := range p.Items() {
		out = append(out, c.ID)
	}
	return out
}

func TestLoadInitial(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	p := New(f, "u1", WithPageSize(2))

	issued, err := p.LoadInitial(context.Background())
	if err != nil || !issued {
		t.Fatalf("LoadInitial = %v, %v", issued, err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if !p.HasMore() || !p.CanLoadMore() {
		t.Error("expected more pages to be available")
	}
	if f.calls[0].limit != 2 || f.calls[0].cursor != "" {
		t.Errorf("first call = %+v", f.calls[0])
	}

	issued, _ = p.LoadInitial(context.Background())
	if issued {
		t.Error("second LoadInitial should be a no-op")
	}
}

func TestLoadMore_MergesAndDedupes(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(pageOf(false, "B", "C", "D"), nil)
	p := New(f, "u1")

	if _, err := p.LoadInitial(context.Background()); err != nil {
		t.Fatal(err)
	}
	issued, err := p.LoadMore(context.Background())
	if err != nil || !issued {
		t.Fatalf("LoadMore = %v, %v", issued, err)
	}

	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"", "B"}, f.cursors()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
	if p.HasMore() {
		t.Error("HasMore should be false after last page")
	}
}

func TestLoadMore_CursorIsRawLastRecord(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(pageOf(true, "A", "B"), nil) // fully duplicated page
	f.push(pageOf(false, "C"), nil)
	p := New(f, "u1")

	p.LoadInitial(context.Background())
	p.LoadMore(context.Background())
	p.LoadMore(context.Background())

	if diff := cmp.Diff([]string{"", "B", "B"}, f.cursors()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMore_Suppressed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *scriptedFetcher, p *Pager)
	}{
		{
			name:  "before initial load",
			setup: func(*scriptedFetcher, *Pager) {},
		},
		{
			name: "no more pages",
			setup: func(f *scriptedFetcher, p *Pager) {
				f.push(pageOf(false, "A"), nil)
				p.LoadInitial(context.Background())
			},
		},
		{
			name: "empty last page",
			setup: func(f *scriptedFetcher, p *Pager) {
				f.push(pageOf(true), nil)
				p.LoadInitial(context.Background())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{}
			p := New(f, "u1")
			tt.setup(f, p)
			before := len(f.cursors())

			issued, err := p.LoadMore(context.Background())
			if issued || err != nil {
				t.Errorf("LoadMore = %v, %v; want suppressed", issued, err)
			}
			if len(f.cursors()) != before {
				t.Error("LoadMore must not call the fetcher")
			}
		})
	}
}

func TestLoadMore_SuppressedWhileInFlight(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A"), nil)
	p := New(f, "u1")
	p.LoadInitial(context.Background())

	f.mu.Lock()
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 1)
	f.mu.Unlock()
	f.push(pageOf(false, "B"), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.LoadMore(context.Background())
	}()
	<-f.started

	if p.Status() != StatusLoadingMore || !p.IsLoadingMore() {
		t.Errorf("status = %s, want loading-more", p.Status())
	}
	issued, err := p.LoadMore(context.Background())
	if issued || err != nil {
		t.Errorf("concurrent LoadMore = %v, %v; want suppressed", issued, err)
	}
	if p.CanLoadMore() {
		t.Error("CanLoadMore should be false while a fetch is in flight")
	}

	f.gate <- struct{}{}
	<-done

	if got := len(f.cursors()); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

func TestLoadMore_NotFoundFallsBackToRefresh(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(nil, apierrors.NewNotFoundError("cursor", "B"))
	f.push(pageOf(true, "A", "C"), nil)
	p := New(f, "u1")

	p.LoadInitial(context.Background())
	issued, err := p.LoadMore(context.Background())
	if !issued || err != nil {
		t.Fatalf("LoadMore = %v, %v", issued, err)
	}
	if diff := cmp.Diff([]string{"", "B", ""}, f.cursors()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "C"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMore_TransientErrorKeepsPages(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A"), nil)
	f.push(nil, apierrors.NewTransientError("fetch", errors.New("timeout")))
	p := New(f, "u1")

	p.LoadInitial(context.Background())
	_, err := p.LoadMore(context.Background())
	if !errors.Is(err, apierrors.ErrTransient) {
		t.Fatalf("LoadMore error = %v, want transient", err)
	}
	if diff := cmp.Diff([]string{"A"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if p.Status() != StatusIdle || !p.CanLoadMore() {
		t.Error("pager should be idle and retryable after a failure")
	}
}

func TestRefresh_RefetchesLoadedPages(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(pageOf(true, "C", "D"), nil)
	// refresh: a new chat X arrived at the top
	f.push(pageOf(true, "X", "A"), nil)
	f.push(pageOf(true, "B", "C"), nil)
	p := New(f, "u1", WithPageSize(2))

	p.LoadInitial(context.Background())
	p.LoadMore(context.Background())
	issued, err := p.Refresh(context.Background())
	if !issued || err != nil {
		t.Fatalf("Refresh = %v, %v", issued, err)
	}

	if diff := cmp.Diff([]string{"", "B", "", "A"}, f.cursors()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"X", "A", "B", "C"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRefresh_StopsAtLastPage(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A"), nil)
	f.push(pageOf(false, "B"), nil)
	f.push(pageOf(false, "A"), nil)
	p := New(f, "u1", WithPageSize(1))

	p.LoadInitial(context.Background())
	p.LoadMore(context.Background())
	p.Refresh(context.Background())

	if got := len(f.cursors()); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
	if diff := cmp.Diff([]string{"A"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRefresh_FailureKeepsPages(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(false, "A"), nil)
	f.push(nil, errors.New("boom"))
	p := New(f, "u1")

	p.LoadInitial(context.Background())
	if _, err := p.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if diff := cmp.Diff([]string{"A"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRefresh_DeferredWhileInFlight(t *testing.T) {
	f := &scriptedFetcher{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
	}
	f.push(pageOf(false, "A"), nil)
	f.push(pageOf(false, "N", "A"), nil)
	p := New(f, "u1")

	done := make(chan error, 1)
	go func() {
		_, err := p.LoadInitial(context.Background())
		done <- err
	}()
	<-f.started

	issued, err := p.Refresh(context.Background())
	if issued || err != nil {
		t.Errorf("Refresh during load = %v, %v; want deferred", issued, err)
	}

	f.gate <- struct{}{} // initial load completes
	<-f.started          // deferred refresh starts
	f.gate <- struct{}{}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("LoadInitial error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LoadInitial did not return")
	}

	if diff := cmp.Diff([]string{"N", "A"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestReset_DiscardsInFlightResult(t *testing.T) {
	f := &scriptedFetcher{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	f.push(pageOf(false, "A"), nil)
	p := New(f, "u1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.LoadInitial(context.Background())
	}()
	<-f.started
	p.Reset()
	f.gate <- struct{}{}
	<-done

	if p.Loaded() || p.Len() != 0 {
		t.Error("stale result should have been discarded")
	}
}

func TestRemoveAndPatch(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(pageOf(false, "C", "D"), nil)
	p := New(f, "u1")
	p.LoadInitial(context.Background())
	p.LoadMore(context.Background())

	if n := p.Remove("B", "D", "missing"); n != 2 {
		t.Errorf("Remove = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"A", "C"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	if !p.PatchTitle("C", "Renamed") {
		t.Fatal("PatchTitle should find C")
	}
	if p.PatchTitle("B", "gone") {
		t.Error("PatchTitle should not find removed chat")
	}
	c, ok := p.Get("C")
	if !ok || c.Title != "Renamed" {
		t.Errorf("Get(C) = %+v, %v", c, ok)
	}
}

// keysetFetcher pages over ids newest first and reports an unknown cursor
// as NotFound, like the SQLite store.
type keysetFetcher struct {
	mu      sync.Mutex
	ids     []string
	cursors []string
}

func (f *keysetFetcher) FetchPage(_ context.Context, _ string, cursor string, limit int) (*models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors = append(f.cursors, cursor)

	start := 0
	if cursor != "" {
		start = -1
		for i, id := range f.ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, apierrors.NewNotFoundError("cursor", cursor)
		}
	}
	end := min(start+limit, len(f.ids))
	return &models.Page{
		Chats:   chats(f.ids[start:end]...),
		HasMore: end < len(f.ids),
	}, nil
}

func (f *keysetFetcher) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.ids {
		if v == id {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			return
		}
	}
}

func TestRemove_LastLoadedRecordThenLoadMore(t *testing.T) {
	f := &keysetFetcher{ids: []string{"A", "B", "C", "D"}}
	p := New(f, "u1", WithPageSize(2))
	ctx := context.Background()

	if _, err := p.LoadInitial(ctx); err != nil {
		t.Fatalf("LoadInitial() error = %v", err)
	}
	f.delete("B")
	p.Remove("B")

	issued, err := p.LoadMore(ctx)
	if !issued || err != nil {
		t.Fatalf("LoadMore() = %v, %v", issued, err)
	}
	if diff := cmp.Diff([]string{"A", "C", "D"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"", "A"}, f.cursors); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
	if p.HasMore() {
		t.Error("HasMore should be false after the last page")
	}
}

func TestRemove_EmptiedPageMovesCursorBack(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(pageOf(true, "C", "D"), nil)
	f.push(pageOf(false, "E"), nil)
	p := New(f, "u1")
	ctx := context.Background()

	p.LoadInitial(ctx)
	p.LoadMore(ctx)
	p.Remove("C", "D")
	p.LoadMore(ctx)

	if diff := cmp.Diff([]string{"", "B", "B"}, f.cursors()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"A", "B", "E"}, itemIDs(p)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestRemove_KeepsCursorOfSurvivingRecord(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(true, "A", "B"), nil)
	f.push(pageOf(false, "C"), nil)
	p := New(f, "u1")
	ctx := context.Background()

	p.LoadInitial(ctx)
	p.Remove("A")
	p.LoadMore(ctx)

	if diff := cmp.Diff([]string{"", "B"}, f.cursors()); diff != "" {
		t.Errorf("cursors mismatch (-want +got):\n%s", diff)
	}
}

func TestItems_ReturnsCopy(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(pageOf(false, "A"), nil)
	p := New(f, "u1")
	p.LoadInitial(context.Background())

	items := p.Items()
	items[0].Title = "mutated"
	if c, _ := p.Get("A"); c.Title == "mutated" {
		t.Error("Items must not expose internal storage")
	}
}

func TestLoadInitial_Error(t *testing.T) {
	f := &scriptedFetcher{}
	f.push(nil, apierrors.NewTransientError("fetch", nil))
	p := New(f, "u1")

	issued, err := p.LoadInitial(context.Background())
	if !issued || !errors.Is(err, apierrors.ErrTransient) {
		t.Fatalf("LoadInitial = %v, %v", issued, err)
	}
	if p.Loaded() {
		t.Error("pager should not be loaded after a failed first page")
	}

	f.push(pageOf(false, "A"), nil)
	if issued, err := p.LoadInitial(context.Background()); !issued || err != nil {
		t.Errorf("retry LoadInitial = %v, %v", issued, err)
	}
}

func TestScrollTriggered(t *testing.T) {
	tests := []struct {
		top, client, height float64
		want                bool
	}{
		{0, 100, 1000, false},
		{700, 100, 1000, false},
		{701, 100, 1000, true},
		{900, 100, 1000, true},
		{0, 100, 0, false},
		{0, 500, 500, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%v/%v", tt.top, tt.client, tt.height), func(t *testing.T) {
			if got := ScrollTriggered(tt.top, tt.client, tt.height); got != tt.want {
				t.Errorf("ScrollTriggered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	for s, want := range map[Status]string{
		StatusIdle:           "idle",
		StatusLoadingInitial: "loading-initial",
		StatusLoadingMore:    "loading-more",
		StatusRefreshing:     "refreshing",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", s, s.String(), want)
		}
	}
}
