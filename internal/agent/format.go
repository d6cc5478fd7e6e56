package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/todoflow/internal/model"
)

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusPending:
		return "○"
	case model.StatusInProgress:
		return "◑"
	case model.StatusCompleted:
		return "●"
	default:
		return "?"
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}

func describe(t model.Task) string {
	tags := "none"
	if len(t.Tags) > 0 {
		tags = strings.Join(t.Tags, ", ")
	}
	due := "none"
	if t.DueDate != nil {
		due = formatTime(*t.DueDate)
	}
	recurring := "no"
	if t.Recurrence != nil {
		recurring = string(*t.Recurrence)
	}
	lines := []string{
		"Task: " + t.Title,
		"  ID: " + t.ID,
		"  Status: " + string(t.Status),
		"  Priority: " + string(t.Priority),
		"  Description: " + orNone(t.Description),
		"  Tags: " + tags,
		"  Due: " + due,
		"  Recurring: " + recurring,
	}
	if t.ParentID != "" {
		lines = append(lines, "  Previous occurrence: "+t.ParentID)
	}
	lines = append(lines, fmt.Sprintf("  Created: %s", formatTime(t.CreatedAt)))
	return strings.Join(lines, "\n")
}
