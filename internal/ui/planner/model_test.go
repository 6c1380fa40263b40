package planner

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/efficio/internal/keys"
	"github.com/nhle/efficio/internal/model"
)

type fakeBlocks struct {
	byDay   map[string][]model.TimeBlock
	toggled []string
	deleted []string
}

func (f *fakeBlocks) ForDate(_ context.Context, day time.Time) ([]model.TimeBlock, error) {
	return f.byDay[day.Format(model.DateLayout)], nil
}

func (f *fakeBlocks) ToggleCompleted(_ context.Context, id string) (*model.TimeBlock, error) {
	f.toggled = append(f.toggled, id)
	return &model.TimeBlock{ID: id}, nil
}

func (f *fakeBlocks) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

var today = time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)

func newModel(t *testing.T) (Model, *fakeBlocks) {
	t.Helper()
	fb := &fakeBlocks{byDay: map[string][]model.TimeBlock{
		"2026-10-17": {{ID: "a", Title: "Focus", Time: "09:00"}, {ID: "b", Title: "Lunch", Time: "12:00"}},
		"2026-10-18": {{ID: "c", Title: "Sunday", Time: "10:00"}},
	}}
	m := New(fb, keys.DefaultKeyMap(), today, 80, 20)
	m, _ = m.Update(m.Load()())
	return m, fb
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNavigateDays(t *testing.T) {
	m, _ := newModel(t)

	m, cmd := m.Update(runes("l"))
	if got := m.Day().Format(model.DateLayout); got != "2026-10-18" {
		t.Fatalf("day = %s, want 2026-10-18", got)
	}
	m, _ = m.Update(cmd())
	if len(m.items) != 1 || m.items[0].ID != "c" {
		t.Errorf("items = %+v, want block c", m.items)
	}
}

func TestStaleDayResultIgnored(t *testing.T) {
	m, _ := newModel(t)
	stale := m.Load()

	m, _ = m.Update(runes("h"))
	m, _ = m.Update(stale())
	if len(m.items) != 2 {
		t.Fatalf("items replaced by a result for another day")
	}
}

func TestToggleAndDeleteSelected(t *testing.T) {
	m, fb := newModel(t)

	m, _ = m.Update(runes("j"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if cmd == nil {
		t.Fatal("toggle returned no command")
	}
	next := cmd()
	if len(fb.toggled) != 1 || fb.toggled[0] != "b" {
		t.Fatalf("toggled = %v, want [b]", fb.toggled)
	}
	if _, reload := m.Update(next); reload == nil {
		t.Error("edit did not trigger a reload")
	}

	_, cmd = m.Update(runes("d"))
	cmd()
	if len(fb.deleted) != 1 || fb.deleted[0] != "b" {
		t.Errorf("deleted = %v, want [b]", fb.deleted)
	}
}
