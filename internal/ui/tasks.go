package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/josephgoksu/dayplan/internal/task"
)

// RenderTaskList renders one day's tasks in display order.
func RenderTaskList(date string, tasks []task.Task) string {
	var sb strings.Builder
	sb.WriteString(StyleHeader.Render(fmt.Sprintf("📅 %s", date)))
	sb.WriteString("\n")

	if len(tasks) == 0 {
		sb.WriteString(StyleSubtle.Render("  No tasks for this day.") + "\n")
		return sb.String()
	}

	table := &Table{
		Headers:  []string{"#", "ID", "Time", "", "Task", "Priority", "Tags"},
		MaxWidth: 48,
	}
	done := 0
	for i, t := range tasks {
		text := t.Text
		if t.Completed {
			done++
			text = "✓ " + text
		}
		if t.Archived {
			text += " (archived)"
		}
		tm := t.Time
		if tm == "" {
			tm = "--:--"
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(t.ID, 10),
			tm,
			t.Emoji,
			text,
			PriorityLabel(t.Priority),
			strings.Join(t.Tags, ", "),
		})
	}
	sb.WriteString(table.Render())
	sb.WriteString(StyleSubtle.Render(fmt.Sprintf(" %d of %d done", done, len(tasks))) + "\n")
	return sb.String()
}
