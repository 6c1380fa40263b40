package habits

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/efficio/internal/keys"
	appsync "github.com/nhle/efficio/internal/sync"
	"github.com/nhle/efficio/internal/theme"
)

// Tracker is the habit session the view drives.
type Tracker interface {
	Load(ctx context.Context) error
	Habits() []appsync.HabitState
	Toggle(id string) (bool, error)
	Submit(ctx context.Context) (int, error)
}

// LoadedMsg reports a finished habit fetch.
type LoadedMsg struct {
	Err error
}

// SubmittedMsg reports a finished submission.
type SubmittedMsg struct {
	Count int
	Err   error
}

// Model lists today's habits with their session flags.
type Model struct {
	tracker Tracker
	keys    *keys.KeyMap
	habits  []appsync.HabitState
	cursor  int
	loaded  bool
	status  string
	width   int
	height  int
}

func New(t Tracker, k *keys.KeyMap, width, height int) Model {
	return Model{tracker: t, keys: k, width: width, height: height}
}

// Load fetches habits from the remote in the background.
func (m Model) Load() tea.Cmd {
	t := m.tracker
	return func() tea.Msg {
		return LoadedMsg{Err: t.Load(context.Background())}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loaded = true
		if msg.Err != nil {
			m.status = fmt.Sprintf("Could not load habits: %v", msg.Err)
		} else {
			m.status = ""
		}
		m.refresh()
		return m, nil

	case SubmittedMsg:
		m.refresh()
		switch {
		case msg.Err != nil:
			m.status = fmt.Sprintf("Submitted %d, some failed: %v", msg.Count, msg.Err)
		case msg.Count == 0:
			m.status = "Nothing to submit"
		default:
			m.status = fmt.Sprintf("Submitted %d habit(s)", msg.Count)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.habits)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.cursor >= len(m.habits) {
			return m, nil
		}
		if _, err := m.tracker.Toggle(m.habits[m.cursor].ID); err != nil {
			m.status = err.Error()
		}
		m.refresh()

	case key.Matches(msg, m.keys.Submit):
		t := m.tracker
		m.status = "Submitting..."
		return m, func() tea.Msg {
			n, err := t.Submit(context.Background())
			return SubmittedMsg{Count: n, Err: err}
		}
	}
	return m, nil
}

func (m *Model) refresh() {
	m.habits = m.tracker.Habits()
	m.cursor = min(m.cursor, max(len(m.habits)-1, 0))
}

// Habits returns the rendered habit states.
func (m Model) Habits() []appsync.HabitState {
	return m.habits
}

func (m Model) View() string {
	if !m.loaded {
		return theme.DimmedStyle.Render("Loading habits...")
	}

	var b strings.Builder
	b.WriteString(theme.SectionStyle.Render("Habits"))
	b.WriteString("\n")
	if len(m.habits) == 0 {
		b.WriteString(theme.DimmedStyle.Render("No habits. Habits are managed in the workspace."))
	}
	for i, h := range m.habits {
		box := "[ ]"
		if h.Checked {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, h.Name)
		if h.Locked {
			line += theme.DimmedStyle.Render("  submitted")
		}
		style := theme.ListItemStyle
		if i == m.cursor {
			style = theme.SelectedItemStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(m.status))
	}
	return b.String()
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
