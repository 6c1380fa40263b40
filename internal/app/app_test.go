package app

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/efficio/internal/model"
	appsync "github.com/nhle/efficio/internal/sync"
	"github.com/nhle/efficio/internal/ui/taskform"
	"github.com/nhle/efficio/internal/ui/tasklist"
	"github.com/nhle/efficio/tests/testutil"
)

func newTestModel(t *testing.T) (Model, *appsync.Engine) {
	t.Helper()
	s := testutil.NewTestStore(t)
	e := appsync.New(s, nil, nil, appsync.Options{})
	m := New(Deps{
		Engine:  e,
		Habits:  appsync.NewHabitTracker(nil, nil),
		Planner: appsync.NewPlanner(e),
	})
	t.Cleanup(m.shutdown)
	return m, e
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStoreWritesWakeTheDashboard(t *testing.T) {
	m, e := newTestModel(t)
	ctx := context.Background()

	wait := m.waitForChange()
	for _, title := range []string{"a", "b", "c"} {
		if _, err := e.CreateTask(ctx, model.TaskFields{Title: title}); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	if _, ok := wait().(storeChangedMsg); !ok {
		t.Fatal("no storeChangedMsg after writes")
	}
	if n := len(m.events); n != 0 {
		t.Errorf("%d events left after drain, want 0", n)
	}

	_, cmd := update(t, m, storeChangedMsg{})
	if cmd == nil {
		t.Error("storeChangedMsg did not schedule a reload")
	}
}

func TestHeaderShowsOfflineAndUnsyncedCount(t *testing.T) {
	m, e := newTestModel(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two"} {
		if _, err := e.CreateTask(ctx, model.TaskFields{Title: title}); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	m, _ = update(t, m, m.countUnsynced()())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	header := m.connectivityStatus()
	if !strings.Contains(header, "offline") || !strings.Contains(header, "2 unsynced") {
		t.Errorf("header = %q, want offline with 2 unsynced", header)
	}
	if !strings.Contains(m.View(), "2 unsynced") {
		t.Error("rendered view is missing the unsynced count")
	}
}

func TestTaskRequestsRunThroughEngine(t *testing.T) {
	m, e := newTestModel(t)
	ctx := context.Background()

	task, err := e.CreateTask(ctx, model.TaskFields{Title: "write"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	_, cmd := update(t, m, tasklist.AdvanceRequestMsg{LocalID: task.LocalID, Status: model.StatusInProgress})
	if done := cmd().(actionDoneMsg); done.err != nil {
		t.Fatalf("advance: %v", done.err)
	}
	got, err := e.Store().Get(ctx, model.CollectionTasks, task.LocalID)
	if err != nil || got.Status != model.StatusInProgress {
		t.Fatalf("status = %v, %v; want inprogress", got, err)
	}

	_, cmd = update(t, m, tasklist.ArchiveRequestMsg{LocalID: task.LocalID})
	if done := cmd().(actionDoneMsg); done.err != nil {
		t.Fatalf("archive: %v", done.err)
	}
	archived, _ := e.Store().ListAll(ctx, model.CollectionArchived)
	if len(archived) != 1 || archived[0].Title != "write" {
		t.Errorf("archived = %+v, want the task", archived)
	}
}

func TestValidationFailureBecomesNotice(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := update(t, m, taskform.SubmittedMsg{Fields: model.TaskFields{Title: "   "}})
	if m.currentView != ViewTasks {
		t.Errorf("view = %v after submit, want tasks", m.currentView)
	}
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.notice, "title") {
		t.Errorf("notice = %q, want a title validation message", m.notice)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.notice != "" {
		t.Errorf("esc did not clear notice %q", m.notice)
	}
}

func TestNavigationKeys(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.currentView != ViewHabits {
		t.Fatalf("view = %v, want habits", m.currentView)
	}
	// New task only opens from the task list.
	m, _ = update(t, m, runes("n"))
	if m.currentView != ViewHabits {
		t.Fatalf("n switched view from habits to %v", m.currentView)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.currentView != ViewTasks {
		t.Fatalf("view = %v, want tasks after full cycle", m.currentView)
	}

	m, _ = update(t, m, runes("?"))
	if m.currentView != ViewHelp {
		t.Fatalf("view = %v, want help", m.currentView)
	}
	m, _ = update(t, m, runes("?"))
	if m.currentView != ViewTasks {
		t.Fatalf("view = %v, want tasks after closing help", m.currentView)
	}

	m, cmd := update(t, m, runes("n"))
	if m.currentView != ViewTaskForm || cmd == nil {
		t.Fatalf("n did not open the task form")
	}
	// Typing into the form must not quit.
	m, _ = update(t, m, runes("q"))
	if m.currentView != ViewTaskForm {
		t.Fatal("q left the task form")
	}

	m, _ = update(t, m, taskform.CancelMsg{})
	_, cmd = update(t, m, runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestNoticeMessageIsShown(t *testing.T) {
	notices := make(chan model.Notification, 1)
	s := testutil.NewTestStore(t)
	e := appsync.New(s, nil, nil, appsync.Options{})
	m := New(Deps{Engine: e, Notices: notices})
	t.Cleanup(m.shutdown)

	notices <- model.Notification{Message: "Failed to sync task 3"}
	msg := m.waitForNotice()()
	m, next := update(t, m, msg)
	if m.notice != "Failed to sync task 3" {
		t.Errorf("notice = %q", m.notice)
	}
	if next == nil {
		t.Error("notice handler stopped listening")
	}
}
