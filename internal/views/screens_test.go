package views

import (
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/todoflow/internal/model"
)

func recurringTask(t *testing.T) model.Task {
	t.Helper()
	due := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	task, err := model.NewTask(model.NewTaskInput{
		Title:       "Pay rent",
		Description: "Transfer to landlord",
		Tags:        []string{"home"},
		DueDate:     &due,
		Recurrence:  model.RulePtr(model.RecurrenceMonthly),
	}, due.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestTaskDetailMarkdownIncludesPreview(t *testing.T) {
	md := TaskDetailMarkdown(recurringTask(t), 3)
	for _, want := range []string{"# Pay rent", "**Status:** pending", "**Tags:** home", "## Repeats monthly", "2025-02-28 09:00", "2025-03-28 09:00"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRecurrencePreviewEmptyForOneOff(t *testing.T) {
	task := recurringTask(t)
	task.IsRecurring = false
	task.Recurrence = nil
	if got := RecurrencePreview(task, 3); got != nil {
		t.Fatalf("expected no preview, got %v", got)
	}
}

func TestRenderListPanelMarksCursorAndOverdue(t *testing.T) {
	task := recurringTask(t)
	out := RenderListPanel(ListPanelData{
		Title:  "tasks",
		Tasks:  []model.Task{task},
		Cursor: 0,
		Now:    task.DueDate.Add(time.Hour),
	})
	if !strings.Contains(out, "> [ ]") {
		t.Fatalf("cursor row missing:\n%s", out)
	}
	if !strings.Contains(out, "overdue") {
		t.Fatalf("overdue marker missing:\n%s", out)
	}
	if empty := RenderListPanel(ListPanelData{Title: "tasks"}); !strings.Contains(empty, "(no tasks)") {
		t.Fatalf("empty list placeholder missing:\n%s", empty)
	}
}

func TestRenderDetailPanelWithoutSelection(t *testing.T) {
	if got := RenderDetailPanel(nil, 40); !strings.Contains(got, "no selection") {
		t.Fatalf("unexpected detail panel: %q", got)
	}
}
