package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/efficio/internal/theme"
)

// Layout manages the terminal frame: header, content, an optional notice
// line and the status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	NoticeHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		NoticeHeight:    1,
		StatusBarHeight: 1,
	}
}

func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.NoticeHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title on the left and connectivity on the right.
func (l Layout) RenderHeader(title, connectivity string) string {
	return l.spread(theme.HeaderStyle, title, connectivity)
}

// RenderNotice renders the latest notification, or a blank line.
func (l Layout) RenderNotice(message string) string {
	return theme.NoticeStyle.
		Width(l.Width).
		MaxHeight(l.NoticeHeight).
		Render(message)
}

// RenderStatusBar renders keyboard hints on the left and sync state on
// the right.
func (l Layout) RenderStatusBar(hints, syncState string) string {
	return l.spread(theme.StatusBarStyle, hints, syncState)
}

// RenderWithFrame stacks header, content, notice and status bar.
func (l Layout) RenderWithFrame(header, content, notice, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		notice,
		statusBar,
	)
}

// spread renders left and right segments in style, filling the gap so the
// bar spans the full width.
func (l Layout) spread(style lipgloss.Style, left, right string) string {
	leftRendered := style.Render(left)
	rightRendered := ""
	if right != "" {
		rightRendered = style.Align(lipgloss.Right).Render(right)
	}

	gap := l.Width -
		lipgloss.Width(leftRendered) -
		lipgloss.Width(rightRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, leftRendered, filler, rightRendered)
}
