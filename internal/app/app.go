package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/efficio/internal/keys"
	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
	appsync "github.com/nhle/efficio/internal/sync"
	"github.com/nhle/efficio/internal/ui"
	"github.com/nhle/efficio/internal/ui/habits"
	helpview "github.com/nhle/efficio/internal/ui/help"
	"github.com/nhle/efficio/internal/ui/planner"
	"github.com/nhle/efficio/internal/ui/taskform"
	"github.com/nhle/efficio/internal/ui/tasklist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewTasks ViewState = iota
	ViewHabits
	ViewPlanner
	ViewTaskForm
	ViewHelp
)

// tabs is the order NextView cycles through.
var tabs = []ViewState{ViewTasks, ViewHabits, ViewPlanner}

var viewTitles = map[ViewState]string{
	ViewTasks:    "Tasks",
	ViewHabits:   "Habits",
	ViewPlanner:  "Planner",
	ViewTaskForm: "New Task",
	ViewHelp:     "Help",
}

// storeChangedMsg reports that at least one committed write happened.
type storeChangedMsg struct{}

// unsyncedCountMsg carries the number of records not yet reconciled.
type unsyncedCountMsg struct {
	count int
}

// noticeMsg carries an absorbed sync failure.
type noticeMsg struct {
	notification model.Notification
}

// actionDoneMsg follows a task mutation started from the UI.
type actionDoneMsg struct {
	err error
}

// Deps are the components the dashboard drives.
type Deps struct {
	Engine  *appsync.Engine
	Poller  *appsync.Poller
	Habits  habits.Tracker
	Planner planner.Blocks
	Notices <-chan model.Notification
	Now     func() time.Time
}

// Model is the root Bubble Tea model that routes between views and keeps
// the header's connectivity and unsynced indicators current.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	engine       *appsync.Engine
	store        store.Store
	poller       *appsync.Poller
	notices      <-chan model.Notification
	events       <-chan store.ChangeEvent
	unsubscribe  func()

	taskList    tasklist.Model
	taskForm    taskform.Model
	habitsView  habits.Model
	plannerView planner.Model
	helpView    helpview.Model

	ready    bool
	unsynced int
	notice   string
}

// New creates the root model and subscribes to store change events.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	now := d.Now
	if now == nil {
		now = time.Now
	}
	s := d.Engine.Store()
	events, unsubscribe := s.Subscribe()

	return Model{
		currentView: ViewTasks,
		keys:        k,
		engine:      d.Engine,
		store:       s,
		poller:      d.Poller,
		notices:     d.Notices,
		events:      events,
		unsubscribe: unsubscribe,
		taskList:    tasklist.New(s, k, 80, 24),
		taskForm:    taskform.New(80, 24),
		habitsView:  habits.New(d.Habits, k, 80, 24),
		plannerView: planner.New(d.Planner, k, now(), 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// Init loads every view and starts listening for changes and sync passes.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.taskList.Init(),
		m.countUnsynced(),
		m.waitForChange(),
		m.waitForNotice(),
		m.habitsView.Load(),
		m.plannerView.Load(),
	}
	if m.poller != nil {
		cmds = append(cmds, m.poller.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.taskList.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.habitsView.SetSize(w, h)
		m.plannerView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		if m.currentView == ViewTaskForm {
			return m.updateActiveView(msg)
		}
		return m, nil

	case storeChangedMsg:
		return m, tea.Batch(
			m.taskList.LoadTasks(),
			m.plannerView.Load(),
			m.countUnsynced(),
			m.waitForChange(),
		)

	case unsyncedCountMsg:
		m.unsynced = msg.count
		return m, nil

	case noticeMsg:
		m.notice = msg.notification.Message
		return m, m.waitForNotice()

	case appsync.SyncResultMsg:
		if msg.Error != nil {
			m.notice = fmt.Sprintf("sync failed: %v", msg.Error)
		}
		var next tea.Cmd
		if m.poller != nil {
			next = m.poller.WaitForNextResult()
		}
		return m, tea.Batch(m.countUnsynced(), next)

	case actionDoneMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, nil

	case tasklist.AdvanceRequestMsg:
		return m, m.updateStatus(msg.LocalID, msg.Status)

	case tasklist.ArchiveRequestMsg:
		return m, m.archive(msg.LocalID)

	case taskform.SubmittedMsg:
		m.currentView = ViewTasks
		return m, m.createTask(msg.Fields)

	case taskform.CancelMsg:
		m.currentView = ViewTasks
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewTaskForm {
			return m.updateActiveView(msg)
		}
		if next, cmd, handled := m.handleGlobalKeys(msg); handled {
			return next, cmd
		}
		return m.updateActiveView(msg)
	}

	return m.broadcast(msg)
}

func (m Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
		} else {
			m.previousView = m.currentView
			m.currentView = ViewHelp
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
		}
		m.notice = ""
		return m, nil, true

	case key.Matches(msg, m.keys.NextView):
		m.currentView = nextTab(m.currentView)
		return m, nil, true

	case key.Matches(msg, m.keys.Refresh):
		if m.poller != nil {
			m.poller.Trigger()
		}
		return m, nil, true

	case key.Matches(msg, m.keys.New) && m.currentView == ViewTasks:
		m.currentView = ViewTaskForm
		return m, m.taskForm.Start(), true
	}
	return m, nil, false
}

// updateActiveView dispatches a message to the view on screen.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewTasks:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewHabits:
		m.habitsView, cmd = m.habitsView.Update(msg)
	case ViewPlanner:
		m.plannerView, cmd = m.plannerView.Update(msg)
	case ViewTaskForm:
		m.taskForm, cmd = m.taskForm.Update(msg)
	}
	return m, cmd
}

// broadcast hands a non-key message to every background view so results
// land even when the view is not on screen.
func (m Model) broadcast(msg tea.Msg) (tea.Model, tea.Cmd) {
	var c1, c2, c3, c4 tea.Cmd
	m.taskList, c1 = m.taskList.Update(msg)
	m.habitsView, c2 = m.habitsView.Update(msg)
	m.plannerView, c3 = m.plannerView.Update(msg)
	if m.currentView == ViewTaskForm {
		m.taskForm, c4 = m.taskForm.Update(msg)
	}
	return m, tea.Batch(c1, c2, c3, c4)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("efficio · "+viewTitles[m.currentView], m.connectivityStatus())
	notice := m.layout.RenderNotice(m.notice)
	statusBar := m.layout.RenderStatusBar(m.helpView.ShortView(), m.syncStatus())

	return m.layout.RenderWithFrame(header, m.renderContent(), notice, statusBar)
}

func (m Model) renderContent() string {
	switch m.currentView {
	case ViewTasks:
		return m.taskList.View()
	case ViewHabits:
		return m.habitsView.View()
	case ViewPlanner:
		return m.plannerView.View()
	case ViewTaskForm:
		return m.taskForm.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// connectivityStatus describes the online flag and unsynced count.
func (m Model) connectivityStatus() string {
	state := "○ offline"
	if m.engine.Online() {
		state = "● online"
	}
	if m.unsynced > 0 {
		return fmt.Sprintf("%s · %d unsynced", state, m.unsynced)
	}
	return state
}

// syncStatus describes the background poller.
func (m Model) syncStatus() string {
	if m.poller == nil {
		return ""
	}
	st := m.poller.Status()
	switch st.State {
	case appsync.PollRunning:
		return "syncing..."
	case appsync.PollError:
		return "sync error"
	}
	if errors.Is(st.Error, appsync.ErrOffline) {
		return "waiting for connection"
	}
	if st.LastSync.IsZero() {
		return "not synced yet"
	}
	return "synced " + st.LastSync.Format("15:04")
}

func (m Model) shutdown() {
	if m.poller != nil {
		m.poller.Stop()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// waitForChange blocks until the store commits a write, then drains any
// burst of further events so one reload covers them all.
func (m Model) waitForChange() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return storeChangedMsg{}
				}
			default:
				return storeChangedMsg{}
			}
		}
	}
}

func (m Model) waitForNotice() tea.Cmd {
	ch := m.notices
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg{notification: n}
	}
}

func (m Model) countUnsynced() tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		n, err := e.Unsynced(context.Background())
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return unsyncedCountMsg{count: n}
	}
}

func (m Model) createTask(fields model.TaskFields) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		_, err := e.CreateTask(context.Background(), fields)
		return actionDoneMsg{err: err}
	}
}

func (m Model) updateStatus(localID int64, status model.Status) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		_, err := e.UpdateStatus(context.Background(), localID, status)
		return actionDoneMsg{err: err}
	}
}

func (m Model) archive(localID int64) tea.Cmd {
	e := m.engine
	return func() tea.Msg {
		_, err := e.Archive(context.Background(), localID)
		return actionDoneMsg{err: err}
	}
}

func nextTab(v ViewState) ViewState {
	for i, t := range tabs {
		if t == v {
			return tabs[(i+1)%len(tabs)]
		}
	}
	return ViewTasks
}
