package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/todoflow/internal/model"
)

const dateLayout = "2006-01-02 15:04"

type ListPanelData struct {
	Title      string
	Tasks      []model.Task
	Cursor     int
	InputView  string
	FilterLine string
	Now        time.Time
}

type HelpPanelData struct {
	Bindings []string
	HelpView string
}

func StatusIcon(s model.Status) string {
	switch s {
	case model.StatusPending:
		return "[ ]"
	case model.StatusInProgress:
		return "[~]"
	case model.StatusCompleted:
		return "[x]"
	default:
		return "[?]"
	}
}

func priorityBadge(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return highStyle.Render("!!!")
	case model.PriorityMedium:
		return mediumStyle.Render("!! ")
	default:
		return lowStyle.Render("!  ")
	}
}

// TaskRow is the one-line summary used by the list pane.
func TaskRow(t model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(StatusIcon(t.Status) + " " + priorityBadge(t.Priority) + " ")
	title := t.Title
	if t.IsCompleted() {
		title = doneStyle.Render(title)
	}
	b.WriteString(title)
	if t.HasRecurrence() {
		b.WriteString(" ↻")
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(dateLayout)
		if !t.IsCompleted() && t.DueDate.Before(now) {
			due = errorStyle.Render("overdue " + due)
		}
		b.WriteString(" due:" + due)
	}
	if len(t.Tags) > 0 {
		b.WriteString(" #" + strings.Join(t.Tags, " #"))
	}
	return b.String()
}

func RenderListPanel(data ListPanelData) string {
	var b strings.Builder
	b.WriteString(data.Title + ":\n")
	if data.InputView != "" {
		b.WriteString(data.InputView + "\n")
	}
	if data.FilterLine != "" {
		b.WriteString(data.FilterLine + "\n")
	}
	if len(data.Tasks) == 0 {
		b.WriteString("  (no tasks)")
		return b.String()
	}
	for i, t := range data.Tasks {
		cursor := " "
		if i == data.Cursor {
			cursor = ">"
		}
		b.WriteString(fmt.Sprintf("%s %s\n", cursor, TaskRow(t, data.Now)))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// TaskDetailMarkdown describes t as markdown, including the next few
// occurrences when it repeats.
func TaskDetailMarkdown(t model.Task, previewCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	if t.Description != "" {
		b.WriteString(t.Description + "\n\n")
	}
	fmt.Fprintf(&b, "- **Status:** %s\n", t.Status)
	fmt.Fprintf(&b, "- **Priority:** %s\n", t.Priority)
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(t.Tags, ", "))
	}
	if t.DueDate != nil {
		fmt.Fprintf(&b, "- **Due:** %s\n", t.DueDate.Format(dateLayout))
	}
	if t.ReminderAt != nil {
		fmt.Fprintf(&b, "- **Reminder:** %s\n", t.ReminderAt.Format(dateLayout))
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed:** %s\n", t.CompletedAt.Format(dateLayout))
	}
	if t.ParentID != "" {
		fmt.Fprintf(&b, "- **Previous occurrence:** `%s`\n", shortID(t.ParentID))
	}
	fmt.Fprintf(&b, "- **ID:** `%s`\n", t.ID)

	if t.HasRecurrence() {
		fmt.Fprintf(&b, "\n## Repeats %s\n\n", *t.Recurrence)
		for _, line := range RecurrencePreview(t, previewCount) {
			b.WriteString("1. " + line + "\n")
		}
	}
	return b.String()
}

// RecurrencePreview lists the due dates the next occurrences would get.
// Tasks without a due date preview from their creation time.
func RecurrencePreview(t model.Task, count int) []string {
	if !t.HasRecurrence() || count <= 0 {
		return nil
	}
	from := t.CreatedAt
	if t.DueDate != nil {
		from = *t.DueDate
	}
	next, err := t.Recurrence.Preview(from, count)
	if err != nil {
		return []string{"error: " + err.Error()}
	}
	out := make([]string, 0, len(next))
	for _, d := range next {
		out = append(out, d.Format("Mon "+dateLayout))
	}
	return out
}

func RenderDetailPanel(t *model.Task, width int) string {
	if t == nil {
		return "details:\n(no selection)"
	}
	return RenderMarkdown(TaskDetailMarkdown(*t, 3), width)
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return "command: " + input
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help:\n%s\n%s", strings.Join(data.Bindings, "\n"), data.HelpView)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
