package selection

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBeginDelete_OnlyOneItemAtATime(t *testing.T) {
	m := New()

	if err := m.BeginDelete("a"); err != nil {
		t.Fatalf("BeginDelete(a) failed: %v", err)
	}
	if err := m.BeginDelete("b"); !errors.Is(err, ErrItemBusy) {
		t.Errorf("BeginDelete(b) = %v, want ErrItemBusy", err)
	}
	if err := m.BeginEdit("b", "x"); !errors.Is(err, ErrItemBusy) {
		t.Errorf("BeginEdit(b) = %v, want ErrItemBusy", err)
	}

	item := m.Item()
	if !item.Is(ItemConfirmingDelete, "a") {
		t.Errorf("item = %+v", item)
	}
}

func TestBeginEdit_SameItemSwitchesState(t *testing.T) {
	m := New()
	m.BeginDelete("a")

	if err := m.BeginEdit("a", "Old title"); err != nil {
		t.Fatalf("BeginEdit(a) failed: %v", err)
	}
	if item := m.Item(); !item.Is(ItemEditing, "a") || item.Draft != "Old title" {
		t.Errorf("item = %+v", item)
	}
}

func TestSetDraftAndCancel(t *testing.T) {
	m := New()

	if err := m.SetDraft("x"); !errors.Is(err, ErrWrongState) {
		t.Errorf("SetDraft while idle = %v", err)
	}

	m.BeginEdit("a", "Old")
	m.SetDraft("New")
	if m.Item().Draft != "New" {
		t.Errorf("draft = %q", m.Item().Draft)
	}

	if err := m.Cancel(); err != nil {
		t.Fatal(err)
	}
	if !m.Item().IsIdle() {
		t.Error("expected idle after Cancel")
	}
	if err := m.BeginDelete("b"); err != nil {
		t.Errorf("BeginDelete after cancel failed: %v", err)
	}
}

func TestStartItem_GuardsReentry(t *testing.T) {
	m := New()
	m.BeginDelete("a")

	if _, err := m.StartItem(ItemEditing); !errors.Is(err, ErrWrongState) {
		t.Errorf("StartItem(editing) = %v, want ErrWrongState", err)
	}

	state, err := m.StartItem(ItemConfirmingDelete)
	if err != nil || state.ID != "a" {
		t.Fatalf("StartItem = %+v, %v", state, err)
	}
	if _, err := m.StartItem(ItemConfirmingDelete); !errors.Is(err, ErrPending) {
		t.Errorf("second StartItem = %v, want ErrPending", err)
	}
	if err := m.Cancel(); !errors.Is(err, ErrPending) {
		t.Errorf("Cancel while pending = %v, want ErrPending", err)
	}
	if err := m.BeginEdit("a", ""); !errors.Is(err, ErrPending) {
		t.Errorf("BeginEdit while pending = %v, want ErrPending", err)
	}

	m.FinishItem()
	if m.Pending() || !m.Item().IsIdle() {
		t.Error("FinishItem should clear pending and item")
	}
}

func TestBulkMode_RejectsItemActions(t *testing.T) {
	m := New()
	m.ToggleBulk()

	if err := m.BeginDelete("a"); !errors.Is(err, ErrBulkMode) {
		t.Errorf("BeginDelete in bulk = %v", err)
	}
	if err := m.BeginEdit("a", ""); !errors.Is(err, ErrBulkMode) {
		t.Errorf("BeginEdit in bulk = %v", err)
	}
}

func TestToggleBulk_ClearsItemAndSelection(t *testing.T) {
	m := New()
	m.BeginEdit("a", "draft")

	mode, err := m.ToggleBulk()
	if err != nil || mode != ModeBulk {
		t.Fatalf("ToggleBulk = %v, %v", mode, err)
	}
	if !m.Item().IsIdle() {
		t.Error("toggling bulk should cancel editing")
	}

	m.Toggle("x")
	mode, _ = m.ToggleBulk()
	if mode != ModeNormal || m.SelectedCount() != 0 {
		t.Errorf("mode = %s, selected = %d", mode, m.SelectedCount())
	}
}

func TestSelectionOps(t *testing.T) {
	m := New()

	if _, err := m.Toggle("a"); !errors.Is(err, ErrNotBulkMode) {
		t.Errorf("Toggle outside bulk = %v", err)
	}
	if err := m.SelectAll([]string{"a"}); !errors.Is(err, ErrNotBulkMode) {
		t.Errorf("SelectAll outside bulk = %v", err)
	}

	m.ToggleBulk()
	if on, _ := m.Toggle("a"); !on {
		t.Error("Toggle(a) should select")
	}
	if on, _ := m.Toggle("a"); on {
		t.Error("second Toggle(a) should deselect")
	}

	m.SelectAll([]string{"c", "a", "b"})
	if diff := cmp.Diff([]string{"a", "b", "c"}, m.Selected()); diff != "" {
		t.Errorf("selected mismatch (-want +got):\n%s", diff)
	}
	if !m.AllSelected([]string{"a", "b"}) {
		t.Error("AllSelected(a,b) should be true")
	}
	if m.AllSelected(nil) {
		t.Error("AllSelected(nil) should be false")
	}

	m.Prune([]string{"a", "c"})
	if diff := cmp.Diff([]string{"a", "c"}, m.Selected()); diff != "" {
		t.Errorf("after prune (-want +got):\n%s", diff)
	}

	m.DeselectAll()
	if m.SelectedCount() != 0 {
		t.Error("DeselectAll should clear the selection")
	}
}

func TestBulkDelete_Flow(t *testing.T) {
	m := New()
	m.ToggleBulk()

	if err := m.RequestBulkDelete(); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("RequestBulkDelete empty = %v", err)
	}

	m.SelectAll([]string{"a", "b", "c"})
	if err := m.RequestBulkDelete(); err != nil {
		t.Fatal(err)
	}
	if m.Mode() != ModeConfirmingBulkDelete {
		t.Errorf("mode = %s", m.Mode())
	}
	if _, err := m.Toggle("a"); !errors.Is(err, ErrNotBulkMode) {
		t.Errorf("Toggle while confirming = %v", err)
	}

	ids, err := m.StartBulkDelete()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if _, err := m.StartBulkDelete(); !errors.Is(err, ErrPending) {
		t.Errorf("second StartBulkDelete = %v", err)
	}
	if err := m.CancelBulkDelete(); !errors.Is(err, ErrPending) {
		t.Errorf("CancelBulkDelete while pending = %v", err)
	}
}

func TestFinishBulkDelete(t *testing.T) {
	tests := []struct {
		name         string
		deleted      []string
		failed       int
		wantMode     ListMode
		wantSelected []string
	}{
		{"all succeeded", []string{"a", "b", "c"}, 0, ModeNormal, []string{}},
		{"partial failure", []string{"a", "c"}, 1, ModeBulk, []string{"b"}},
		{"all failed", nil, 3, ModeBulk, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.ToggleBulk()
			m.SelectAll([]string{"a", "b", "c"})
			m.RequestBulkDelete()
			m.StartBulkDelete()

			m.FinishBulkDelete(tt.deleted, tt.failed)

			if m.Pending() {
				t.Error("pending should be cleared")
			}
			if m.Mode() != tt.wantMode {
				t.Errorf("mode = %s, want %s", m.Mode(), tt.wantMode)
			}
			if diff := cmp.Diff(tt.wantSelected, m.Selected()); diff != "" {
				t.Errorf("selected mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCancelBulkDelete(t *testing.T) {
	m := New()
	m.ToggleBulk()
	m.SelectAll([]string{"a"})
	m.RequestBulkDelete()

	if err := m.CancelBulkDelete(); err != nil {
		t.Fatal(err)
	}
	if m.Mode() != ModeBulk || !m.IsSelected("a") {
		t.Error("cancel should return to bulk mode keeping the selection")
	}
	if err := m.CancelBulkDelete(); !errors.Is(err, ErrWrongState) {
		t.Errorf("second cancel = %v", err)
	}
}

func TestReset(t *testing.T) {
	m := New()
	m.ToggleBulk()
	m.SelectAll([]string{"a"})
	m.RequestBulkDelete()
	m.StartBulkDelete()

	m.Reset()
	if m.Mode() != ModeNormal || m.SelectedCount() != 0 {
		t.Error("Reset should return to normal mode")
	}

	// a late completion must not resurrect bulk mode
	m.FinishBulkDelete(nil, 1)
	if m.Mode() != ModeNormal || m.Pending() {
		t.Errorf("after late finish mode = %s pending = %v", m.Mode(), m.Pending())
	}
}

func TestForget(t *testing.T) {
	m := New()
	m.BeginDelete("a")
	m.Forget("a")
	if !m.Item().IsIdle() {
		t.Error("Forget should clear the item state of a removed chat")
	}
}
