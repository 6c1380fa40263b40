package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/efficio/internal/keys"
	"github.com/nhle/efficio/internal/model"
	appsync "github.com/nhle/efficio/internal/sync"
	"github.com/nhle/efficio/internal/theme"
)

// Blocks is the time-block planner the view reads and edits.
type Blocks interface {
	ForDate(ctx context.Context, day time.Time) ([]model.TimeBlock, error)
	ToggleCompleted(ctx context.Context, id string) (*model.TimeBlock, error)
	Delete(ctx context.Context, id string) error
}

// LoadedMsg carries the blocks of one day.
type LoadedMsg struct {
	Day    string
	Blocks []model.TimeBlock
	Err    error
}

// changedMsg follows an edit so the day is re-read.
type changedMsg struct {
	err error
}

// Model shows one day of time blocks under a week strip.
type Model struct {
	blocks Blocks
	keys   *keys.KeyMap
	day    time.Time
	items  []model.TimeBlock
	cursor int
	err    error
	width  int
	height int
}

func New(b Blocks, k *keys.KeyMap, today time.Time, width, height int) Model {
	return Model{blocks: b, keys: k, day: today, width: width, height: height}
}

// Load reads the blocks of the selected day.
func (m Model) Load() tea.Cmd {
	b := m.blocks
	day := m.day
	return func() tea.Msg {
		items, err := b.ForDate(context.Background(), day)
		return LoadedMsg{Day: day.Format(model.DateLayout), Blocks: items, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		// Drop results for a day the user already navigated away from.
		if msg.Day != m.day.Format(model.DateLayout) {
			return m, nil
		}
		m.err = msg.Err
		m.items = msg.Blocks
		m.cursor = min(m.cursor, max(len(m.items)-1, 0))
		return m, nil

	case changedMsg:
		m.err = msg.err
		return m, m.Load()

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.PrevDay):
		m.day = m.day.AddDate(0, 0, -1)
		m.cursor = 0
		return m, m.Load()

	case key.Matches(msg, m.keys.NextDay):
		m.day = m.day.AddDate(0, 0, 1)
		m.cursor = 0
		return m, m.Load()

	case key.Matches(msg, m.keys.Toggle):
		block, ok := m.selected()
		if !ok {
			return m, nil
		}
		b := m.blocks
		return m, func() tea.Msg {
			_, err := b.ToggleCompleted(context.Background(), block.ID)
			return changedMsg{err: err}
		}

	case key.Matches(msg, m.keys.Delete):
		block, ok := m.selected()
		if !ok {
			return m, nil
		}
		b := m.blocks
		return m, func() tea.Msg {
			return changedMsg{err: b.Delete(context.Background(), block.ID)}
		}
	}
	return m, nil
}

func (m Model) selected() (model.TimeBlock, bool) {
	if m.cursor >= len(m.items) {
		return model.TimeBlock{}, false
	}
	return m.items[m.cursor], true
}

// Day returns the date being shown.
func (m Model) Day() time.Time {
	return m.day
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.weekStrip())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(theme.NoticeStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if len(m.items) == 0 {
		b.WriteString(theme.DimmedStyle.Render("No time blocks for this day."))
		return b.String()
	}

	for i, blk := range m.items {
		mark := "○"
		if blk.Completed {
			mark = "✓"
		}
		line := fmt.Sprintf("%s %s  %s %s  %s",
			mark,
			blk.Time,
			theme.BlockTypeStyle(blk.Type).Render(blk.Type),
			blk.Title,
			theme.DimmedStyle.Render(blk.Duration),
		)
		if !blk.Synced {
			line += "  " + theme.SyncBadge(model.SyncPending)
		}
		style := theme.ListItemStyle
		if i == m.cursor {
			style = theme.SelectedItemStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// weekStrip renders the seven days around the selected one.
func (m Model) weekStrip() string {
	days := appsync.Week(m.day)
	cells := make([]string, len(days))
	for i, d := range days {
		label := d.Format("Mon 02")
		style := lipgloss.NewStyle().Padding(0, 1).Foreground(theme.ColorGray)
		if i == len(days)/2 {
			style = style.Bold(true).Foreground(theme.ColorWhite).Background(theme.ColorBlue)
		}
		cells[i] = style.Render(label)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
