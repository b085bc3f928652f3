package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/dayplan/internal/task"
)

// Palette (256-color codes).
var (
	ColorAccent = lipgloss.Color("39")  // Blue
	ColorMuted  = lipgloss.Color("244") // Gray
	ColorDone   = lipgloss.Color("35")  // Green
	ColorAlert  = lipgloss.Color("208") // Orange
	ColorUrgent = lipgloss.Color("196") // Red
	ColorCell   = lipgloss.Color("250")
)

var (
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorDone)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorAlert)
	StyleHeader  = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Padding(0, 1)
)

var priorityStyles = map[task.Priority]lipgloss.Style{
	task.PriorityHigh:   lipgloss.NewStyle().Foreground(ColorUrgent).Bold(true),
	task.PriorityMedium: lipgloss.NewStyle().Foreground(ColorAlert),
	task.PriorityLow:    StyleSubtle,
}

// PriorityLabel renders a priority with a colored marker. Unknown values are
// shown as-is.
func PriorityLabel(p task.Priority) string {
	style, ok := priorityStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render("● " + string(p))
}
