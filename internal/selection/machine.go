// Package selection holds the interaction state of the history list: the one
// item that may be awaiting delete confirmation or being renamed, the list
// mode and the bulk selection set.
package selection

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrItemBusy is returned when another item already holds the transient state.
	ErrItemBusy = errors.New("another chat is being edited or deleted")

	// ErrBulkMode is returned for single-item actions while bulk selection is on.
	ErrBulkMode = errors.New("not available in bulk selection mode")

	// ErrNotBulkMode is returned for selection actions outside bulk mode.
	ErrNotBulkMode = errors.New("bulk selection mode is off")

	// ErrNothingSelected is returned when a bulk delete is requested with an empty selection.
	ErrNothingSelected = errors.New("No chats selected")

	// ErrWrongState is returned when an action does not apply to the current state.
	ErrWrongState = errors.New("action not valid in the current state")

	// ErrPending is returned while an external call for the current state is in flight.
	ErrPending = errors.New("an operation is already in progress")
)

// ItemKind tags the transient state of a single list item.
type ItemKind int

const (
	ItemIdle ItemKind = iota
	ItemConfirmingDelete
	ItemEditing
)

// String returns the string representation of the kind
func (k ItemKind) String() string {
	switch k {
	case ItemConfirmingDelete:
		return "confirming-delete"
	case ItemEditing:
		return "editing"
	default:
		return "idle"
	}
}

// ItemState is the transient state of at most one item. Because there is a
// single value for the whole list, two items can never be in a transient
// state at the same time.
type ItemState struct {
	Kind  ItemKind
	ID    string
	Draft string
}

// IsIdle reports whether no item is in a transient state
func (s ItemState) IsIdle() bool {
	return s.Kind == ItemIdle
}

// Is reports whether the state is kind for the item id
func (s ItemState) Is(kind ItemKind, id string) bool {
	return s.Kind == kind && s.ID == id
}

// ListMode is the mode of the whole list.
type ListMode int

const (
	ModeNormal ListMode = iota
	ModeBulk
	ModeConfirmingBulkDelete
)

// String returns the string representation of the mode
func (m ListMode) String() string {
	switch m {
	case ModeBulk:
		return "bulk"
	case ModeConfirmingBulkDelete:
		return "confirming-bulk-delete"
	default:
		return "normal"
	}
}

// IsBulk reports whether bulk selection is active, including while a bulk
// delete is awaiting confirmation.
func (m ListMode) IsBulk() bool {
	return m != ModeNormal
}

// Machine is safe for concurrent use.
type Machine struct {
	mu       sync.Mutex
	item     ItemState
	mode     ListMode
	selected map[string]struct{}
	pending  bool
}

// New creates a Machine in normal mode with nothing selected
func New() *Machine {
	return &Machine{selected: make(map[string]struct{})}
}

// Item returns the current item state
func (m *Machine) Item() ItemState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item
}

// Mode returns the current list mode
func (m *Machine) Mode() ListMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Pending reports whether an external call for the current state is in flight
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// BeginDelete asks for confirmation before deleting id.
func (m *Machine) BeginDelete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.canEnterLocked(id); err != nil {
		return err
	}
	m.item = ItemState{Kind: ItemConfirmingDelete, ID: id}
	return nil
}

// BeginEdit starts renaming id with draft as the initial text.
func (m *Machine) BeginEdit(id, draft string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.canEnterLocked(id); err != nil {
		return err
	}
	m.item = ItemState{Kind: ItemEditing, ID: id, Draft: draft}
	return nil
}

func (m *Machine) canEnterLocked(id string) error {
	if m.mode.IsBulk() {
		return ErrBulkMode
	}
	if m.pending {
		return ErrPending
	}
	if !m.item.IsIdle() && m.item.ID != id {
		return ErrItemBusy
	}
	return nil
}

// SetDraft replaces the draft title of the item being edited.
func (m *Machine) SetDraft(draft string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.item.Kind != ItemEditing {
		return ErrWrongState
	}
	m.item.Draft = draft
	return nil
}

// Cancel returns the item to idle unless its external call is in flight.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending {
		return ErrPending
	}
	m.item = ItemState{}
	return nil
}

// StartItem marks the item's external call as in flight and returns the
// state it was started from. kind must match the current state.
func (m *Machine) StartItem(kind ItemKind) (ItemState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.item.Kind != kind || kind == ItemIdle {
		return ItemState{}, ErrWrongState
	}
	if m.pending {
		return ItemState{}, ErrPending
	}
	m.pending = true
	return m.item, nil
}

// FinishItem clears the in-flight flag and returns the item to idle.
func (m *Machine) FinishItem() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = false
	m.item = ItemState{}
}

// ToggleBulk switches bulk selection on or off. Either way the item state
// and the selection are cleared.
func (m *Machine) ToggleBulk() (ListMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending {
		return m.mode, ErrPending
	}
	if m.mode == ModeNormal {
		m.mode = ModeBulk
	} else {
		m.mode = ModeNormal
	}
	m.item = ItemState{}
	m.selected = make(map[string]struct{})
	return m.mode, nil
}

// Toggle flips the selection of id in bulk mode and reports whether it is
// now selected.
func (m *Machine) Toggle(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeBulk {
		return false, ErrNotBulkMode
	}
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
		return false, nil
	}
	m.selected[id] = struct{}{}
	return true, nil
}

// SelectAll selects exactly ids, normally the currently filtered list.
func (m *Machine) SelectAll(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeBulk {
		return ErrNotBulkMode
	}
	m.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.selected[id] = struct{}{}
	}
	return nil
}

// DeselectAll clears the selection.
func (m *Machine) DeselectAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeBulk {
		return ErrNotBulkMode
	}
	m.selected = make(map[string]struct{})
	return nil
}

// IsSelected reports whether id is selected
func (m *Machine) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[id]
	return ok
}

// Selected returns the selected IDs, sorted
func (m *Machine) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedLocked()
}

func (m *Machine) selectedLocked() []string {
	out := make([]string, 0, len(m.selected))
	for id := range m.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SelectedCount returns the number of selected IDs
func (m *Machine) SelectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.selected)
}

// AllSelected reports whether every one of ids is selected. An empty ids is
// never "all selected".
func (m *Machine) AllSelected(ids []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := m.selected[id]; !ok {
			return false
		}
	}
	return true
}

// Prune drops selected IDs that are not in visible.
func (m *Machine) Prune(visible []string) {
	keep := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		keep[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.selected {
		if _, ok := keep[id]; !ok {
			delete(m.selected, id)
		}
	}
}

// Forget removes ids from the selection and clears the item state if it
// refers to one of them. Used after the chats were deleted.
func (m *Machine) Forget(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.selected, id)
		if m.item.ID == id {
			m.item = ItemState{}
		}
	}
}

// RequestBulkDelete asks for confirmation before deleting the selection.
func (m *Machine) RequestBulkDelete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeBulk {
		return ErrNotBulkMode
	}
	if len(m.selected) == 0 {
		return ErrNothingSelected
	}
	m.mode = ModeConfirmingBulkDelete
	return nil
}

// CancelBulkDelete returns from confirmation to bulk selection.
func (m *Machine) CancelBulkDelete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeConfirmingBulkDelete {
		return ErrWrongState
	}
	if m.pending {
		return ErrPending
	}
	m.mode = ModeBulk
	return nil
}

// StartBulkDelete marks the bulk delete as in flight and returns the IDs to
// delete.
func (m *Machine) StartBulkDelete() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != ModeConfirmingBulkDelete {
		return nil, ErrWrongState
	}
	if m.pending {
		return nil, ErrPending
	}
	if len(m.selected) == 0 {
		return nil, ErrNothingSelected
	}
	m.pending = true
	return m.selectedLocked(), nil
}

// FinishBulkDelete applies the outcome of a bulk delete. Deleted IDs leave
// the selection. When nothing failed, bulk mode is switched off; otherwise
// the list goes back to bulk selection with the failures still selected.
func (m *Machine) FinishBulkDelete(deleted []string, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = false
	for _, id := range deleted {
		delete(m.selected, id)
	}
	if m.mode != ModeConfirmingBulkDelete {
		// reset while the deletes were in flight
		return
	}
	if failed == 0 {
		m.mode = ModeNormal
		m.selected = make(map[string]struct{})
		return
	}
	m.mode = ModeBulk
}

// Reset returns to normal mode with nothing selected and no transient item.
// The in-flight flag is left alone so a late completion still finishes cleanly.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.item = ItemState{}
	m.mode = ModeNormal
	m.selected = make(map[string]struct{})
}
