package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
)

func newDispatcher(t *testing.T) (*Dispatcher, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	svc := tasks.NewService(store, completion.New(store))
	return NewDispatcher(svc), store
}

func onlyTask(t *testing.T, store *storage.MemoryStore) model.Task {
	t.Helper()
	list, err := store.List(context.Background(), storage.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func TestToolsCoverClosedSet(t *testing.T) {
	names := map[ToolName]bool{}
	for _, tool := range Tools() {
		names[tool.Name] = true
		_, err := json.Marshal(tool)
		require.NoError(t, err)
		require.Equal(t, "object", tool.Parameters["type"])
	}
	for _, want := range []ToolName{ToolCreateTask, ToolListTasks, ToolGetTask, ToolUpdateTask, ToolDeleteTask, ToolCompleteTask} {
		require.True(t, names[want], "missing tool %s", want)
	}
	require.Len(t, names, 6)
}

func TestCreateAcceptsRelaxedJSON(t *testing.T) {
	d, store := newDispatcher(t)
	out, err := d.Call(context.Background(), "create_task", []byte(`{
		// comments and trailing commas are fine
		"title": "Water plants",
		"priority": "high",
		"due_date": "2025-06-01",
		"recurrence_rule": "weekly",
	}`))
	require.NoError(t, err)

	task := onlyTask(t, store)
	require.Contains(t, out, "Task created: 'Water plants'")
	require.Contains(t, out, task.ID)
	require.Contains(t, out, "Recurring: weekly")
	require.True(t, task.HasRecurrence())
}

func TestUnknownToolAndBadArguments(t *testing.T) {
	d, _ := newDispatcher(t)

	_, err := d.Call(context.Background(), "launch_rocket", nil)
	var te *ToolError
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeUnknownTool, te.Code)

	_, err = d.Call(context.Background(), "create_task", []byte(`{"title": "x", "colour": "red"}`))
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeInvalidArgument, te.Code)

	_, err = d.Call(context.Background(), "create_task", []byte(`{"title": "x", "priority": "urgent"}`))
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeInvalidArgument, te.Code)

	_, err = d.Call(context.Background(), "get_task", []byte(`{}`))
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeInvalidArgument, te.Code)
}

func TestMissingTaskReportsNotFoundText(t *testing.T) {
	d, _ := newDispatcher(t)
	for _, name := range []string{"get_task", "update_task", "delete_task", "complete_task"} {
		out, err := d.Call(context.Background(), name, []byte(`{"task_id": "abc"}`))
		require.NoError(t, err, name)
		require.Equal(t, "Task not found with ID: abc", out, name)
	}
}

func TestCompleteToggleAndSet(t *testing.T) {
	d, store := newDispatcher(t)
	ctx := context.Background()
	_, err := d.Call(ctx, "create_task", []byte(`{"title": "Stretch", "due_date": "2025-06-01T07:00:00Z", "recurrence_rule": "daily"}`))
	require.NoError(t, err)
	task := onlyTask(t, store)
	args := []byte(`{"task_id": "` + task.ID + `"}`)

	out, err := d.Call(ctx, "complete_task", args)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Task 'Stretch' marked as completed"), out)
	require.Contains(t, out, "Next occurrence due 2025-06-02T07:00:00Z")
	require.Equal(t, 2, store.Len())

	setArgs := []byte(`{"task_id": "` + task.ID + `", "set": true}`)
	out, err = d.Call(ctx, "complete_task", setArgs)
	require.NoError(t, err)
	require.Equal(t, "Task 'Stretch' marked as completed", out)
	require.Equal(t, 2, store.Len())

	out, err = d.Call(ctx, "complete_task", args)
	require.NoError(t, err)
	require.Equal(t, "Task 'Stretch' marked as pending", out)
}

func TestListGetUpdateDelete(t *testing.T) {
	d, store := newDispatcher(t)
	ctx := context.Background()

	out, err := d.Call(ctx, "list_tasks", nil)
	require.NoError(t, err)
	require.Equal(t, "No tasks found matching the criteria.", out)

	_, err = d.Call(ctx, "create_task", []byte(`{"title": "Read book", "tags": ["fun"]}`))
	require.NoError(t, err)
	task := onlyTask(t, store)

	out, err = d.Call(ctx, "list_tasks", []byte(`{"tag": "fun"}`))
	require.NoError(t, err)
	require.Contains(t, out, "Found 1 task(s):")
	require.Contains(t, out, "○ [medium] Read book | Tags: fun (ID: "+task.ID[:8]+")")

	out, err = d.Call(ctx, "update_task", []byte(`{"task_id": "`+task.ID+`", "priority": "high", "status": "in_progress"}`))
	require.NoError(t, err)
	require.Equal(t, "Task updated: 'Read book' (Status: in_progress, Priority: high)", out)

	out, err = d.Call(ctx, "get_task", []byte(`{"task_id": "`+task.ID+`"}`))
	require.NoError(t, err)
	require.Contains(t, out, "Task: Read book")
	require.Contains(t, out, "Status: in_progress")
	require.Contains(t, out, "Recurring: no")

	out, err = d.Call(ctx, "delete_task", []byte(`{"task_id": "`+task.ID+`"}`))
	require.NoError(t, err)
	require.Equal(t, "Task deleted successfully (ID: "+task.ID+")", out)
	require.Equal(t, 0, store.Len())
}

func TestParseCall(t *testing.T) {
	call, err := ParseCall(`  complete_task {"task_id": "abc"}`)
	require.NoError(t, err)
	require.Equal(t, ToolCompleteTask, call.Name)
	require.Equal(t, `{"task_id": "abc"}`, string(call.Args))

	call, err = ParseCall("/list_tasks")
	require.NoError(t, err)
	require.Equal(t, ToolListTasks, call.Name)
	require.Empty(t, call.Args)

	call, err = ParseCall(`get_task{"task_id":"x"}`)
	require.NoError(t, err)
	require.Equal(t, ToolGetTask, call.Name)

	var te *ToolError
	_, err = ParseCall("   ")
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeEmptyInput, te.Code)

	_, err = ParseCall("delete_task abc")
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeInvalidArgument, te.Code)

	_, err = ParseCall("fly away")
	require.True(t, errors.As(err, &te))
	require.Equal(t, ErrCodeUnknownTool, te.Code)
}
