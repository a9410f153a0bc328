package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/chathist/internal/dialog"
	"github.com/diogo/chathist/internal/history"
	"github.com/diogo/chathist/internal/models"
	"github.com/diogo/chathist/internal/pager"
	"github.com/diogo/chathist/internal/render"
	"github.com/diogo/chathist/internal/search"
	"github.com/diogo/chathist/internal/selection"
)

const (
	// DefaultTimeRefresh is how often the relative times are redrawn.
	DefaultTimeRefresh = 30 * time.Second

	noticeTimeout     = 4 * time.Second
	previewPollDelay  = 250 * time.Millisecond
	maxPreviewPolls   = 8
	minPreviewWidth   = 100
	dialogChromeLines = 10
)

// clipboardWrite is replaced in tests
var clipboardWrite = clipboard.WriteAll

// DialogHost is the dialog's view of the surrounding application: it keeps
// the notices raised by the controller, records navigation and forwards
// background list changes to the running program. It implements
// dialog.Navigator and dialog.Notifier.
type DialogHost struct {
	mu sync.Mutex

	current string
	opened  string
	home    bool

	notice    string
	noticeErr bool
	noticeSeq int

	changes  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewDialogHost creates a host whose open chat is currentChatID (may be empty).
func NewDialogHost(currentChatID string) *DialogHost {
	return &DialogHost{
		current: currentChatID,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// CurrentChatID returns the chat that is currently open
func (h *DialogHost) CurrentChatID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// OpenChat records id as the chat to open once the dialog exits
func (h *DialogHost) OpenChat(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = id
	h.current = id
}

// GoHome records that the open chat went away
func (h *DialogHost) GoHome() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = ""
	h.home = true
}

// Success records a success notice
func (h *DialogHost) Success(msg string) {
	h.setNotice(msg, false)
}

// Error records an error notice
func (h *DialogHost) Error(msg string) {
	h.setNotice(msg, true)
}

func (h *DialogHost) setNotice(msg string, isErr bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notice = msg
	h.noticeErr = isErr
	h.noticeSeq++
}

// Notice returns the latest notice, whether it is an error and its sequence number.
func (h *DialogHost) Notice() (string, bool, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.notice, h.noticeErr, h.noticeSeq
}

func (h *DialogHost) clearNotice(seq int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.noticeSeq == seq {
		h.notice = ""
		h.noticeErr = false
	}
}

// NotifyChange wakes the dialog after the list changed in the background.
// It is meant to be passed as dialog.Config.OnChange.
func (h *DialogHost) NotifyChange() {
	select {
	case h.changes <- struct{}{}:
	default:
	}
}

func (h *DialogHost) opening() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opened
}

func (h *DialogHost) wentHome() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.home
}

func (h *DialogHost) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// DialogOptions configures the history dialog
type DialogOptions struct {
	// Render configures the markdown preview pane.
	Render render.Options
	// TimeRefresh overrides DefaultTimeRefresh.
	TimeRefresh time.Duration
	// Now overrides the wall clock (used by tests).
	Now func() time.Time
}

type focusArea int

const (
	focusList focusArea = iota
	focusSearch
)

// Message types for the dialog
type (
	dialogOpenedMsg struct {
		generation int
		err        error
	}
	listLoadedMsg struct {
		issued bool
		err    error
	}
	mutationDoneMsg struct {
		err error
	}
	bulkDoneMsg struct {
		result dialog.BulkResult
		err    error
	}
	listChangedMsg  struct{}
	timeRefreshMsg  struct{ generation int }
	previewPollMsg  struct{ id string }
	noticeClearMsg  struct{ seq int }
	dialogClosedMsg struct{}
)

// listRow is a group heading (index -1) or a chat at index in the flattened list.
type listRow struct {
	label string
	index int
}

// HistoryDialogModel is the bubbletea model of the chat history dialog.
type HistoryDialogModel struct {
	ctrl *dialog.Controller
	host *DialogHost
	opts DialogOptions
	now  func() time.Time

	times *history.TimeFormatter

	// UI components
	searchInput textinput.Model
	renameInput textinput.Model
	spinner     spinner.Model
	preview     viewport.Model

	// List state, rebuilt from the controller snapshot
	snap   dialog.Snapshot
	chats  []models.Chat
	rows   []listRow
	cursor int
	offset int
	focus  focusArea

	// Preview state
	previewID    string
	previewKey   string
	previewPolls int

	// Lifecycle
	generation  int
	opening     bool
	loadingMore bool
	busy        bool
	err         error
	selectedID  string
	shouldQuit  bool

	// Dimensions
	width  int
	height int
	ready  bool
}

// NewHistoryDialogModel creates the dialog model around ctrl. host must be
// the Navigator and Notifier ctrl was created with.
func NewHistoryDialogModel(ctrl *dialog.Controller, host *DialogHost, opts DialogOptions) HistoryDialogModel {
	if opts.TimeRefresh <= 0 {
		opts.TimeRefresh = DefaultTimeRefresh
	}
	if opts.Render.Style == "" {
		opts.Render = render.DefaultOptions()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	searchInput := textinput.New()
	searchInput.Placeholder = search.ModeAll.Placeholder()
	searchInput.CharLimit = 200
	searchInput.Prompt = ""

	renameInput := textinput.New()
	renameInput.Placeholder = "New title..."
	renameInput.CharLimit = models.MaxTitleLength
	renameInput.Prompt = ""

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return HistoryDialogModel{
		ctrl:        ctrl,
		host:        host,
		opts:        opts,
		now:         now,
		times:       history.NewTimeFormatter(history.WithClock(now)),
		searchInput: searchInput,
		renameInput: renameInput,
		spinner:     s,
		preview:     viewport.New(0, 0),
		generation:  1,
		opening:     true,
		focus:       focusList,
	}
}

// Init opens the controller and starts the background commands
func (m HistoryDialogModel) Init() tea.Cmd {
	return tea.Batch(
		m.openCmd(),
		m.spinner.Tick,
		m.waitForChange(),
		m.scheduleTimeRefresh(),
	)
}

func (m HistoryDialogModel) openCmd() tea.Cmd {
	ctrl, gen := m.ctrl, m.generation
	return func() tea.Msg {
		err := ctrl.Open(context.Background())
		return dialogOpenedMsg{generation: gen, err: err}
	}
}

// waitForChange blocks until the host reports a background change or stops.
func (m HistoryDialogModel) waitForChange() tea.Cmd {
	host := m.host
	return func() tea.Msg {
		select {
		case <-host.changes:
			return listChangedMsg{}
		case <-host.done:
			return dialogClosedMsg{}
		}
	}
}

func (m HistoryDialogModel) scheduleTimeRefresh() tea.Cmd {
	gen := m.generation
	return tea.Tick(m.opts.TimeRefresh, func(time.Time) tea.Msg {
		return timeRefreshMsg{generation: gen}
	})
}

func clearNoticeAfter(seq int) tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return noticeClearMsg{seq: seq}
	})
}

// Update handles messages and updates the model
func (m HistoryDialogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizePreview()
		m.ensureVisible()
		m.syncPreview()
		next := m.maybeLoadMore()
		return m, next

	case dialogOpenedMsg:
		if msg.generation != m.generation {
			return m, nil
		}
		m.opening = false
		m.err = msg.err
		m.refresh()
		next := tea.Batch(m.maybeLoadMore(), m.pollPreview())
		return m, next

	case listLoadedMsg:
		m.loadingMore = false
		if msg.err != nil {
			m.host.Error(dialog.NoticeLoadFailed)
		}
		m.refresh()
		var cmds []tea.Cmd
		if msg.issued && msg.err == nil {
			cmds = append(cmds, m.maybeLoadMore())
		}
		cmds = append(cmds, m.noticeCmd())
		return m, tea.Batch(cmds...)

	case mutationDoneMsg:
		m.busy = false
		m.refresh()
		next := m.afterMutation()
		return m, next

	case bulkDoneMsg:
		m.busy = false
		m.refresh()
		next := m.afterMutation()
		return m, next

	case listChangedMsg:
		m.refresh()
		next := tea.Batch(m.waitForChange(), m.maybeLoadMore())
		return m, next

	case dialogClosedMsg:
		return m, nil

	case timeRefreshMsg:
		if msg.generation != m.generation || m.shouldQuit {
			return m, nil
		}
		// Groups depend on the date, so rebuild them along with the labels.
		m.refresh()
		return m, m.scheduleTimeRefresh()

	case previewPollMsg:
		if msg.id != m.currentID() {
			return m, nil
		}
		m.syncPreview()
		next := m.pollPreview()
		return m, next

	case noticeClearMsg:
		m.host.clearNotice(msg.seq)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.opening || m.busy {
			return m, nil
		}

		item := m.snap.Item
		switch {
		case item.Kind == selection.ItemEditing:
			return m.updateRenameMode(msg)
		case item.Kind == selection.ItemConfirmingDelete:
			return m.updateConfirmDeleteMode(msg)
		case m.snap.ListMode == selection.ModeConfirmingBulkDelete:
			return m.updateConfirmBulkMode(msg)
		case m.focus == focusSearch:
			return m.updateSearchMode(msg)
		default:
			return m.updateListMode(msg)
		}
	}

	return m, nil
}

// updateListMode handles input while the list has focus
func (m HistoryDialogModel) updateListMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	bulk := m.snap.ListMode.IsBulk()

	switch msg.String() {
	case "q":
		return m.quit()

	case "esc":
		if bulk {
			_, _ = m.ctrl.ToggleBulk()
			m.refresh()
			return m, nil
		}
		if m.snap.Query != "" {
			m.searchInput.SetValue("")
			m.ctrl.SetQuery("")
			m.refresh()
			next := m.maybeLoadMore()
			return m, next
		}
		return m.quit()

	case "up", "k":
		return m.moveCursor(-1)
	case "down", "j":
		return m.moveCursor(1)
	case "home", "g":
		return m.moveCursor(-len(m.chats))
	case "end", "G":
		return m.moveCursor(len(m.chats))

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd

	case "/":
		m.focus = focusSearch
		return m, m.searchInput.Focus()

	case "tab":
		return m.cycleMode()

	case "enter":
		id := m.currentID()
		if id == "" {
			return m, nil
		}
		if err := m.ctrl.Activate(id); err != nil {
			return m, nil
		}
		if !bulk && m.host.opening() == id {
			m.selectedID = id
			return m.quit()
		}
		m.refresh()
		return m, nil

	case " ", "space":
		if !bulk {
			return m, nil
		}
		if id := m.currentID(); id != "" {
			_, _ = m.ctrl.ToggleSelect(id)
			m.refresh()
		}
		return m, nil

	case "b":
		_, _ = m.ctrl.ToggleBulk()
		m.refresh()
		return m, nil

	case "a":
		if bulk {
			_ = m.ctrl.SelectAll()
			m.refresh()
		}
		return m, nil

	case "A":
		if bulk {
			_ = m.ctrl.DeselectAll()
			m.refresh()
		}
		return m, nil

	case "x":
		if bulk {
			_ = m.ctrl.RequestBulkDelete()
			m.refresh()
			return m, m.noticeCmd()
		}
		return m, nil

	case "d":
		if bulk {
			return m, nil
		}
		if id := m.currentID(); id != "" {
			_ = m.ctrl.BeginDelete(id)
			m.refresh()
		}
		return m, nil

	case "r":
		if bulk {
			return m, nil
		}
		id := m.currentID()
		if id == "" {
			return m, nil
		}
		if err := m.ctrl.BeginEdit(id); err != nil {
			return m, nil
		}
		m.refresh()
		m.renameInput.SetValue(m.snap.Item.Draft)
		m.renameInput.CursorEnd()
		return m, m.renameInput.Focus()

	case "c":
		return m.copyID()

	case "ctrl+r":
		return m, m.refreshCmd()
	}

	return m, nil
}

// updateSearchMode handles input while the search field has focus
func (m HistoryDialogModel) updateSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchInput.SetValue("")
		m.searchInput.Blur()
		m.focus = focusList
		m.ctrl.SetQuery("")
		m.refresh()
		next := m.maybeLoadMore()
		return m, next

	case "enter":
		m.searchInput.Blur()
		m.focus = focusList
		return m, nil

	case "tab":
		return m.cycleMode()

	case "up":
		return m.moveCursor(-1)
	case "down":
		return m.moveCursor(1)

	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		if m.searchInput.Value() != m.snap.Query {
			m.ctrl.SetQuery(m.searchInput.Value())
			m.cursor = 0
			m.offset = 0
			m.refresh()
			next := tea.Batch(cmd, m.maybeLoadMore(), m.pollPreview())
			return m, next
		}
		return m, cmd
	}
}

// updateRenameMode handles input while a title is being edited
func (m HistoryDialogModel) updateRenameMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		_ = m.ctrl.CancelEdit()
		m.renameInput.Blur()
		m.refresh()
		return m, nil

	case "enter":
		_ = m.ctrl.SetDraft(m.renameInput.Value())
		if _, err := models.NormalizeTitle(m.renameInput.Value()); err != nil {
			// Rejected locally; the controller raises the notice and stays in editing.
			_ = m.ctrl.SaveEdit(context.Background())
			m.refresh()
			return m, m.noticeCmd()
		}
		m.renameInput.Blur()
		m.busy = true
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return mutationDoneMsg{err: ctrl.SaveEdit(context.Background())}
		}

	default:
		var cmd tea.Cmd
		m.renameInput, cmd = m.renameInput.Update(msg)
		_ = m.ctrl.SetDraft(m.renameInput.Value())
		return m, cmd
	}
}

// updateConfirmDeleteMode handles input while a delete awaits confirmation
func (m HistoryDialogModel) updateConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.busy = true
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return mutationDoneMsg{err: ctrl.ConfirmDelete(context.Background())}
		}

	case "n", "N", "esc":
		_ = m.ctrl.CancelDelete()
		m.refresh()
		return m, nil
	}

	return m, nil
}

// updateConfirmBulkMode handles input while a bulk delete awaits confirmation
func (m HistoryDialogModel) updateConfirmBulkMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.busy = true
		ctrl := m.ctrl
		return m, func() tea.Msg {
			result, err := ctrl.ConfirmBulkDelete(context.Background())
			return bulkDoneMsg{result: result, err: err}
		}

	case "n", "N", "esc":
		_ = m.ctrl.CancelBulkDelete()
		m.refresh()
		return m, nil
	}

	return m, nil
}

func (m HistoryDialogModel) cycleMode() (tea.Model, tea.Cmd) {
	mode := m.ctrl.CycleMode()
	m.searchInput.Placeholder = mode.Placeholder()
	m.cursor = 0
	m.offset = 0
	m.refresh()
	next := tea.Batch(m.maybeLoadMore(), m.pollPreview())
	return m, next
}

func (m HistoryDialogModel) moveCursor(delta int) (tea.Model, tea.Cmd) {
	if len(m.chats) == 0 {
		return m, nil
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.chats) {
		m.cursor = len(m.chats) - 1
	}
	m.ensureVisible()
	m.focusCurrent()
	next := tea.Batch(m.maybeLoadMore(), m.pollPreview())
	return m, next
}

func (m HistoryDialogModel) copyID() (tea.Model, tea.Cmd) {
	id := m.currentID()
	if id == "" {
		return m, nil
	}
	if err := clipboardWrite(id); err != nil {
		m.host.Error(fmt.Sprintf("Failed to copy: %v", err))
	} else {
		m.host.Success(fmt.Sprintf("Copied ID: %s", id))
	}
	return m, m.noticeCmd()
}

func (m HistoryDialogModel) refreshCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return listLoadedMsg{issued: true, err: ctrl.Refresh(context.Background())}
	}
}

// afterMutation schedules the notice to fade and tops the list up.
func (m *HistoryDialogModel) afterMutation() tea.Cmd {
	return tea.Batch(m.noticeCmd(), m.maybeLoadMore(), m.pollPreview())
}

func (m HistoryDialogModel) noticeCmd() tea.Cmd {
	msg, _, seq := m.host.Notice()
	if msg == "" {
		return nil
	}
	return clearNoticeAfter(seq)
}

// maybeLoadMore asks for the next page once the visible window passes the
// scroll threshold or shows the end of the list.
func (m *HistoryDialogModel) maybeLoadMore() tea.Cmd {
	if m.opening || m.loadingMore || !m.snap.HasMore || m.snap.Loading || m.snap.LoadingMore {
		return nil
	}

	height := m.listHeight()
	total := len(m.rows) + 1 // the end sentinel row
	ctrl := m.ctrl

	if m.offset+height >= total {
		m.loadingMore = true
		return func() tea.Msg {
			issued, err := ctrl.OnSentinelVisible(context.Background())
			return listLoadedMsg{issued: issued, err: err}
		}
	}

	top, client, scroll := float64(m.offset), float64(height), float64(total)
	if !pager.ScrollTriggered(top, client, scroll) {
		return nil
	}
	m.loadingMore = true
	return func() tea.Msg {
		issued, err := ctrl.OnScroll(context.Background(), top, client, scroll)
		return listLoadedMsg{issued: issued, err: err}
	}
}

// refresh rebuilds the list from a fresh controller snapshot, keeping the
// cursor on the same chat when it is still listed.
func (m *HistoryDialogModel) refresh() {
	prevID := m.currentID()

	m.snap = m.ctrl.Snapshot()
	m.chats, m.rows = buildRows(m.snap.Groups)

	if prevID != "" {
		for i, chat := range m.chats {
			if chat.ID == prevID {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(m.chats) {
		m.cursor = len(m.chats) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	m.ensureVisible()
	if m.currentID() != prevID {
		m.focusCurrent()
	}
	m.syncPreview()
}

func buildRows(groups []history.Group) ([]models.Chat, []listRow) {
	var (
		chats []models.Chat
		rows  []listRow
	)
	for _, g := range groups {
		rows = append(rows, listRow{label: g.Label, index: -1})
		for _, chat := range g.Chats {
			rows = append(rows, listRow{index: len(chats)})
			chats = append(chats, chat)
		}
	}
	return chats, rows
}

func (m HistoryDialogModel) currentID() string {
	if m.cursor < 0 || m.cursor >= len(m.chats) {
		return ""
	}
	return m.chats[m.cursor].ID
}

func (m HistoryDialogModel) cursorRow() int {
	for i, row := range m.rows {
		if row.index == m.cursor {
			return i
		}
	}
	return 0
}

func (m HistoryDialogModel) listHeight() int {
	if !m.ready {
		return 10
	}
	return max(3, m.height-dialogChromeLines)
}

// ensureVisible scrolls the window so the cursor row, and the heading
// right above it, are on screen.
func (m *HistoryDialogModel) ensureVisible() {
	height := m.listHeight()
	row := m.cursorRow()
	top := row
	if top > 0 && m.rows[top-1].index < 0 {
		top--
	}
	if top < m.offset {
		m.offset = top
	}
	if row >= m.offset+height {
		m.offset = row - height + 1
	}
	total := len(m.rows)
	if m.snap.HasMore {
		total++
	}
	if maxOffset := max(0, total-height); m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m HistoryDialogModel) focusCurrent() {
	if id := m.currentID(); id != "" {
		m.ctrl.Focus(id)
	}
}

func (m HistoryDialogModel) showPreview() bool {
	return m.ready && m.width >= minPreviewWidth
}

func (m HistoryDialogModel) layoutWidths() (list, preview int) {
	contentWidth := max(40, m.width-2)
	if !m.showPreview() {
		return contentWidth, 0
	}
	list = contentWidth * 55 / 100
	return list, contentWidth - list
}

func (m *HistoryDialogModel) resizePreview() {
	_, pw := m.layoutWidths()
	m.preview.Width = max(0, pw-4)
	m.preview.Height = m.listHeight()
}

// syncPreview renders the prefetched conversation under the cursor into
// the preview pane. Rendering is skipped when nothing it depends on changed.
func (m *HistoryDialogModel) syncPreview() {
	if !m.showPreview() {
		return
	}
	id := m.currentID()
	if id != m.previewID {
		m.previewID = id
		m.previewPolls = 0
	}
	if id == "" {
		m.previewKey = ""
		m.preview.SetContent(hintStyle.Render("No chat selected"))
		return
	}

	chat, ok := m.ctrl.Preview(id)
	if !ok {
		m.previewKey = ""
		m.preview.SetContent(hintStyle.Render("Loading preview..."))
		return
	}

	key := fmt.Sprintf("%s|%s|%s|%d|%d", id, chat.Title, m.snap.Query, m.preview.Width, len(chat.Messages))
	if key == m.previewKey {
		return
	}
	m.previewKey = key
	m.preview.SetContent(render.Preview(*chat, m.snap.Query, m.opts.Render.WithWidth(m.preview.Width)))
	m.preview.GotoTop()
}

// pollPreview re-checks the prefetch cache shortly while the chat under the
// cursor has no preview yet.
func (m *HistoryDialogModel) pollPreview() tea.Cmd {
	if !m.showPreview() || m.previewKey != "" || m.previewPolls >= maxPreviewPolls {
		return nil
	}
	id := m.currentID()
	if id == "" {
		return nil
	}
	m.previewPolls++
	return tea.Tick(previewPollDelay, func(time.Time) tea.Msg {
		return previewPollMsg{id: id}
	})
}

// quit closes the controller and bumps the generation so pending ticks die.
func (m HistoryDialogModel) quit() (tea.Model, tea.Cmd) {
	m.shouldQuit = true
	m.generation++
	m.ctrl.Close()
	m.host.stop()
	return m, tea.Quit
}

// View renders the dialog
func (m HistoryDialogModel) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if m.opening {
		return loadingStyle.Render(fmt.Sprintf("  %s Loading chats...", m.spinner.View()))
	}

	listWidth, previewWidth := m.layoutWidths()
	contentWidth := listWidth + previewWidth

	var sections []string
	sections = append(sections, m.renderHeader(contentWidth))
	sections = append(sections, m.renderSearch(contentWidth))

	list := m.renderList(listWidth)
	if previewWidth > 0 {
		pane := previewPanelStyle.Width(previewWidth - 2).Render(m.preview.View())
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, pane)
	}
	sections = append(sections, list)

	if notice := m.renderNotice(); notice != "" {
		sections = append(sections, notice)
	}
	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title line with counters
func (m HistoryDialogModel) renderHeader(width int) string {
	title := titleStyle.Render("Chat History")

	info := fmt.Sprintf("  %d of %d chats", len(m.chats), m.snap.Loaded)
	if m.snap.HasMore {
		info = fmt.Sprintf("  %d of %d+ chats", len(m.chats), m.snap.Loaded)
	}
	parts := []string{title, subtitleStyle.Render(info)}

	if m.snap.ListMode.IsBulk() {
		parts = append(parts, itemSelectedStyle.Render(fmt.Sprintf("  %d selected", len(m.snap.Selected))))
	}
	if m.busy || m.loadingMore || m.snap.LoadingMore {
		parts = append(parts, "  "+m.spinner.View())
	}

	return headerStyle.Width(width - 2).Render(lipgloss.JoinHorizontal(lipgloss.Center, parts...))
}

// renderSearch renders the search field with its mode badge
func (m HistoryDialogModel) renderSearch(width int) string {
	badge := modeBadgeStyle.Render(m.snap.Mode.Label())
	input := m.searchInput.View()
	if m.focus != focusSearch && m.searchInput.Value() == "" {
		input = hintStyle.Render("Press / to search, Tab to change mode")
	}
	return searchPanelStyle.Width(width - 2).Render(lipgloss.JoinHorizontal(lipgloss.Center, badge, input))
}

// renderList renders the grouped list window
func (m HistoryDialogModel) renderList(width int) string {
	var lines []string
	inner := width - 4

	switch {
	case m.err != nil && len(m.chats) == 0:
		lines = append(lines, errorStyle.Render(dialog.NoticeLoadFailed))
		lines = append(lines, hintStyle.Render("Press ctrl+r to retry"))
	case len(m.chats) == 0 && m.snap.Query != "":
		lines = append(lines, hintStyle.Render(fmt.Sprintf("No chats matching '%s'", m.snap.Query)))
	case len(m.chats) == 0:
		lines = append(lines, hintStyle.Render("No chats yet"))
	}

	height := m.listHeight()
	end := min(m.offset+height, len(m.rows))
	for i := m.offset; i < end; i++ {
		row := m.rows[i]
		if row.index < 0 {
			lines = append(lines, groupLabelStyle.Render(row.label))
			continue
		}
		lines = append(lines, m.renderItem(row.index, m.chats[row.index], inner))
	}

	if m.snap.HasMore && end == len(m.rows) && len(lines) < height {
		if m.loadingMore || m.snap.LoadingMore {
			lines = append(lines, hintStyle.Render(m.spinner.View()+" Loading more..."))
		} else {
			lines = append(lines, hintStyle.Render("↓ more"))
		}
	}

	return listPanelStyle.Width(width - 2).Height(height).Render(strings.Join(lines, "\n"))
}

// renderItem renders one chat row according to its transient state
func (m HistoryDialogModel) renderItem(index int, chat models.Chat, width int) string {
	selected := index == m.cursor
	item := m.snap.Item

	cursor := "  "
	if selected {
		cursor = cursorStyle.Render("▸ ")
	}

	var prefix string
	if m.snap.ListMode.IsBulk() {
		if m.snap.IsSelected(chat.ID) {
			prefix = checkboxOnStyle.Render("[x] ")
		} else {
			prefix = checkboxStyle.Render("[ ] ")
		}
	}

	if item.Is(selection.ItemEditing, chat.ID) {
		return cursor + prefix + m.renameInput.View()
	}

	age := m.times.Format(chat.CreatedAt)
	suffix := ""
	if chat.IsPublic() {
		suffix = publicBadgeStyle.Render(" ◉")
	}

	titleWidth := max(10, width-lipgloss.Width(prefix)-len(age)-6)
	title := truncateTitle(chat.DisplayTitle(), titleWidth)

	style := itemStyle
	switch {
	case selected:
		style = itemSelectedStyle
	case chat.ID == m.snap.CurrentChatID:
		style = itemCurrentStyle
	}
	text := style.Render(title)

	switch {
	case item.Is(selection.ItemConfirmingDelete, chat.ID):
		text += dangerStyle.Render("  Delete? y/n")
	case chat.ID == m.snap.NavigatingID:
		text += hintStyle.Render("  opening...")
	}

	line := cursor + prefix + text + suffix
	pad := max(1, width-lipgloss.Width(line)-len(age))
	return line + strings.Repeat(" ", pad) + timeStyle.Render(age)
}

func (m HistoryDialogModel) renderNotice() string {
	msg, isErr, _ := m.host.Notice()
	if msg == "" {
		return ""
	}
	if isErr {
		return errorStyle.Render("  ✗ " + msg)
	}
	return successStyle.Render("  ✓ " + msg)
}

type shortcut struct {
	key  string
	desc string
}

// renderStatusBar renders the shortcuts valid in the current state
func (m HistoryDialogModel) renderStatusBar(width int) string {
	var shortcuts []shortcut

	switch {
	case m.snap.Item.Kind == selection.ItemEditing:
		shortcuts = []shortcut{{"Enter", "Save"}, {"Esc", "Cancel"}}
	case m.snap.Item.Kind == selection.ItemConfirmingDelete:
		shortcuts = []shortcut{{"y", "Delete"}, {"n", "Cancel"}}
	case m.snap.ListMode == selection.ModeConfirmingBulkDelete:
		shortcuts = []shortcut{{"y", fmt.Sprintf("Delete %d", len(m.snap.Selected))}, {"n", "Cancel"}}
	case m.focus == focusSearch:
		shortcuts = []shortcut{{"Enter", "Done"}, {"Tab", "Mode"}, {"Esc", "Clear"}}
	case m.snap.ListMode.IsBulk():
		shortcuts = []shortcut{
			{"Space", "Toggle"},
			{"a", "All"},
			{"A", "None"},
			{"x", "Delete"},
			{"b", "Exit bulk"},
		}
	default:
		shortcuts = []shortcut{
			{"↑↓", "Nav"},
			{"Enter", "Open"},
			{"/", "Search"},
			{"Tab", "Mode"},
			{"r", "Rename"},
			{"d", "Del"},
			{"b", "Bulk"},
			{"c", "Copy ID"},
			{"q", "Quit"},
		}
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Render(strings.Join(items, "  "))
}

// Result returns the chat chosen to open (empty if none) and whether the
// dialog was closed.
func (m HistoryDialogModel) Result() (string, bool) {
	return m.selectedID, m.shouldQuit
}

// DialogResult contains the outcome of running the history dialog
type DialogResult struct {
	ChatID string // empty if no chat was opened
	// WentHome is set when the chat that was open got deleted.
	WentHome bool
}

// RunHistoryDialog starts the dialog full screen and returns the result
func RunHistoryDialog(ctrl *dialog.Controller, host *DialogHost, opts DialogOptions) (DialogResult, error) {
	m := NewHistoryDialogModel(ctrl, host, opts)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
	)

	finalModel, err := p.Run()
	host.stop()
	if err != nil {
		return DialogResult{}, err
	}

	result := DialogResult{WentHome: host.wentHome()}
	if dm, ok := finalModel.(HistoryDialogModel); ok {
		result.ChatID, _ = dm.Result()
	}
	return result, nil
}

// truncateTitle cuts title to maxLen runes, marking the cut with "..."
func truncateTitle(title string, maxLen int) string {
	runes := []rune(title)
	if len(runes) <= maxLen {
		return title
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
