package tasklist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/efficio/internal/keys"
	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
	"github.com/nhle/efficio/internal/theme"
)

// TasksLoadedMsg carries the active collection read from the store.
type TasksLoadedMsg struct {
	Tasks []model.Task
	Err   error
}

// AdvanceRequestMsg asks the parent to move a task to its next status.
type AdvanceRequestMsg struct {
	LocalID int64
	Status  model.Status
}

// ArchiveRequestMsg asks the parent to archive a task.
type ArchiveRequestMsg struct {
	LocalID int64
}

// groups is the display order of the status sections.
var groups = []struct {
	status model.Status
	title  string
}{
	{model.StatusPending, "Pending"},
	{model.StatusInProgress, "In progress"},
	{model.StatusCompleted, "Completed"},
}

// Model shows the active tasks grouped by status.
type Model struct {
	store  store.Store
	keys   *keys.KeyMap
	tasks  []model.Task
	cursor int
	err    error
	now    func() time.Time
	width  int
	height int
}

func New(s store.Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		store:  s,
		keys:   k,
		now:    time.Now,
		width:  width,
		height: height,
	}
}

func (m Model) Init() tea.Cmd {
	return m.LoadTasks()
}

// LoadTasks returns a tea.Cmd that reads the active collection.
func (m Model) LoadTasks() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		tasks, err := s.ListAll(context.Background(), model.CollectionTasks)
		return TasksLoadedMsg{Tasks: tasks, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TasksLoadedMsg:
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		m.setTasks(msg.Tasks)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Advance):
		task, ok := m.Selected()
		if !ok {
			return m, nil
		}
		req := AdvanceRequestMsg{LocalID: task.LocalID, Status: task.Status.Next()}
		return m, func() tea.Msg { return req }

	case key.Matches(msg, m.keys.Archive):
		task, ok := m.Selected()
		if !ok {
			return m, nil
		}
		req := ArchiveRequestMsg{LocalID: task.LocalID}
		return m, func() tea.Msg { return req }
	}
	return m, nil
}

// setTasks orders tasks by status group, then local id, and keeps the
// cursor on the same record when it is still present.
func (m *Model) setTasks(tasks []model.Task) {
	var selected int64
	if t, ok := m.Selected(); ok {
		selected = t.LocalID
	}

	rank := make(map[model.Status]int, len(groups))
	for i, g := range groups {
		rank[g.status] = i
	}
	sorted := append([]model.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rank[sorted[i].Status], rank[sorted[j].Status]
		if ri != rj {
			return ri < rj
		}
		return sorted[i].LocalID < sorted[j].LocalID
	})
	m.tasks = sorted

	m.cursor = min(m.cursor, max(len(sorted)-1, 0))
	for i, t := range sorted {
		if t.LocalID == selected {
			m.cursor = i
			break
		}
	}
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return model.Task{}, false
	}
	return m.tasks[m.cursor], true
}

// Tasks returns the tasks in display order.
func (m Model) Tasks() []model.Task {
	return m.tasks
}

func (m Model) View() string {
	if m.err != nil {
		return theme.NoticeStyle.Render(fmt.Sprintf("Could not load tasks: %v", m.err))
	}
	if len(m.tasks) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No tasks yet.\n\nPress n to add one.")
	}

	lines := m.lines()
	return strings.Join(visibleWindow(lines, m.cursorLine(), m.height), "\n")
}

// lines renders every section heading and row. Rows are tagged so the
// cursor can be mapped onto a line index.
func (m Model) lines() []string {
	now := m.now()
	var out []string
	i := 0
	for _, g := range groups {
		start := i
		for i < len(m.tasks) && m.tasks[i].Status == g.status {
			i++
		}
		heading := theme.StatusStyle(g.status).Render(fmt.Sprintf("%s (%d)", g.title, i-start))
		out = append(out, heading)
		for j := start; j < i; j++ {
			out = append(out, renderRow(m.tasks[j], j == m.cursor, now, m.width))
		}
	}
	return out
}

// cursorLine is the line index of the selected row, counting one heading
// line per group.
func (m Model) cursorLine() int {
	line := 0
	i := 0
	for _, g := range groups {
		line++
		for i < len(m.tasks) && m.tasks[i].Status == g.status {
			if i == m.cursor {
				return line
			}
			line++
			i++
		}
	}
	return 0
}

// visibleWindow returns at most height lines around focus.
func visibleWindow(lines []string, focus, height int) []string {
	if height <= 0 || len(lines) <= height {
		return lines
	}
	start := focus - height/2
	start = max(start, 0)
	start = min(start, len(lines)-height)
	return lines[start : start+height]
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
