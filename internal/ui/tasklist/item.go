package tasklist

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/theme"
)

// renderRow draws one task line: title, category, priority, due date and
// sync badge.
func renderRow(t model.Task, selected bool, now time.Time, width int) string {
	parts := []string{
		t.Title,
		theme.DimmedStyle.Render(t.Category),
		theme.PriorityStyle(t.Priority).Render(string(t.Priority)),
	}
	if due := dueLabel(t.DueDate, now); due != "" {
		style := theme.DimmedStyle
		if strings.HasPrefix(due, "overdue") && t.Status != model.StatusCompleted {
			style = lipgloss.NewStyle().Foreground(theme.ColorRed)
		}
		parts = append(parts, style.Render(due))
	}
	if badge := theme.SyncBadge(t.SyncStatus); badge != "" {
		parts = append(parts, badge)
	}

	line := strings.Join(parts, "  ")
	style := theme.ListItemStyle
	if selected {
		style = theme.SelectedItemStyle
	}
	if width > 0 {
		style = style.MaxWidth(width)
	}
	return style.Render(line)
}

// dueLabel describes a due date relative to now's calendar day.
func dueLabel(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	days := calendarDays(now, *due)
	switch {
	case days == 0:
		return "due today"
	case days == 1:
		return "due tomorrow"
	case days > 1:
		return fmt.Sprintf("due in %dd", days)
	default:
		return fmt.Sprintf("overdue %dd", -days)
	}
}

// calendarDays counts whole calendar days from a to b.
func calendarDays(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
