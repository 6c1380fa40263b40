package tasklist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/efficio/internal/keys"
	"github.com/nhle/efficio/internal/model"
)

func loaded(t *testing.T, tasks ...model.Task) Model {
	t.Helper()
	m := New(nil, keys.DefaultKeyMap(), 80, 20)
	m, _ = m.Update(TasksLoadedMsg{Tasks: tasks})
	return m
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTasksGroupedByStatus(t *testing.T) {
	m := loaded(t,
		model.Task{LocalID: 1, Title: "done", Status: model.StatusCompleted},
		model.Task{LocalID: 2, Title: "doing", Status: model.StatusInProgress},
		model.Task{LocalID: 3, Title: "todo", Status: model.StatusPending},
		model.Task{LocalID: 4, Title: "todo too", Status: model.StatusPending},
	)

	var got []int64
	for _, task := range m.Tasks() {
		got = append(got, task.LocalID)
	}
	want := []int64{3, 4, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAdvanceEmitsNextStatus(t *testing.T) {
	m := loaded(t,
		model.Task{LocalID: 1, Title: "a", Status: model.StatusPending},
		model.Task{LocalID: 2, Title: "b", Status: model.StatusInProgress},
	)

	m, _ = m.Update(keyMsg("j"))
	_, cmd := m.Update(keyMsg("s"))
	if cmd == nil {
		t.Fatal("advance produced no command")
	}
	req, ok := cmd().(AdvanceRequestMsg)
	if !ok {
		t.Fatalf("msg = %T, want AdvanceRequestMsg", cmd())
	}
	if req.LocalID != 2 || req.Status != model.StatusCompleted {
		t.Errorf("request = %+v, want task 2 -> completed", req)
	}
}

func TestArchiveEmitsRequest(t *testing.T) {
	m := loaded(t, model.Task{LocalID: 7, Title: "a", Status: model.StatusCompleted})

	_, cmd := m.Update(keyMsg("a"))
	if cmd == nil {
		t.Fatal("archive produced no command")
	}
	if req, ok := cmd().(ArchiveRequestMsg); !ok || req.LocalID != 7 {
		t.Errorf("msg = %#v, want archive of 7", cmd())
	}
}

func TestCursorFollowsRecordAcrossReload(t *testing.T) {
	m := loaded(t,
		model.Task{LocalID: 1, Title: "a", Status: model.StatusPending},
		model.Task{LocalID: 2, Title: "b", Status: model.StatusPending},
	)
	m, _ = m.Update(keyMsg("j"))

	// Task 2 moves to another group; the cursor stays on it.
	m, _ = m.Update(TasksLoadedMsg{Tasks: []model.Task{
		{LocalID: 1, Title: "a", Status: model.StatusPending},
		{LocalID: 2, Title: "b", Status: model.StatusCompleted},
		{LocalID: 3, Title: "c", Status: model.StatusInProgress},
	}})
	if sel, ok := m.Selected(); !ok || sel.LocalID != 2 {
		t.Errorf("selected = %+v, want task 2", sel)
	}

	m, _ = m.Update(TasksLoadedMsg{})
	if _, ok := m.Selected(); ok {
		t.Error("selection survived an empty reload")
	}
}

func TestKeysOnEmptyListAreNoops(t *testing.T) {
	m := loaded(t)
	for _, k := range []string{"j", "k", "s", "a"} {
		var cmd tea.Cmd
		m, cmd = m.Update(keyMsg(k))
		if cmd != nil {
			t.Errorf("key %q on empty list returned a command", k)
		}
	}
}

func TestDueLabel(t *testing.T) {
	now := time.Date(2026, 10, 17, 23, 30, 0, 0, time.Local)
	day := func(d int) *time.Time {
		v := time.Date(2026, 10, d, 0, 0, 0, 0, time.Local)
		return &v
	}
	tests := []struct {
		due  *time.Time
		want string
	}{
		{nil, ""},
		{day(17), "due today"},
		{day(18), "due tomorrow"},
		{day(20), "due in 3d"},
		{day(12), "overdue 5d"},
	}
	for _, tt := range tests {
		if got := dueLabel(tt.due, now); got != tt.want {
			t.Errorf("dueLabel(%v) = %q, want %q", tt.due, got, tt.want)
		}
	}
}

func TestVisibleWindow(t *testing.T) {
	lines := []string{"0", "1", "2", "3", "4", "5", "6", "7"}
	got := visibleWindow(lines, 7, 3)
	if len(got) != 3 || got[2] != "7" {
		t.Errorf("window = %v, want last three", got)
	}
	got = visibleWindow(lines, 0, 3)
	if got[0] != "0" {
		t.Errorf("window = %v, want first three", got)
	}
	if got := visibleWindow(lines, 3, 0); len(got) != len(lines) {
		t.Errorf("zero height window = %v", got)
	}
}
