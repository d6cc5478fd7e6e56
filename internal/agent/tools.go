// Package agent exposes task operations as named tools that take JSON
// arguments and answer with human-readable text.
package agent

import "fmt"

type ToolName string

const (
	ToolCreateTask   ToolName = "create_task"
	ToolListTasks    ToolName = "list_tasks"
	ToolGetTask      ToolName = "get_task"
	ToolUpdateTask   ToolName = "update_task"
	ToolDeleteTask   ToolName = "delete_task"
	ToolCompleteTask ToolName = "complete_task"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownTool     ErrorCode = "unknown_tool"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeUnavailable     ErrorCode = "unavailable"
)

type ToolError struct {
	Code    ErrorCode
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Tool describes one callable tool with a JSON schema for its arguments.
type Tool struct {
	Name        ToolName       `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func object(required []string, props map[string]any) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}

func str(desc string, enum ...string) map[string]any {
	p := map[string]any{"type": "string", "description": desc}
	if len(enum) > 0 {
		p["enum"] = enum
	}
	return p
}

var (
	priorities = []string{"low", "medium", "high"}
	statuses   = []string{"pending", "in_progress", "completed"}
	rules      = []string{"daily", "weekly", "monthly", "yearly"}
	sortFields = []string{"created_at", "due_date", "priority", "title", "status"}
)

func tagList() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Tag labels"}
}

// Tools returns the definitions of every tool in a stable order.
func Tools() []Tool {
	return []Tool{
		{
			Name:        ToolCreateTask,
			Description: "Create a new task. A recurrence rule makes it recurring.",
			Parameters: object([]string{"title"}, map[string]any{
				"title":           str("Task title"),
				"description":     str("Optional description"),
				"priority":        str("Priority level", priorities...),
				"tags":            tagList(),
				"due_date":        str("Due date, ISO 8601"),
				"reminder_at":     str("Reminder time, ISO 8601"),
				"recurrence_rule": str("Repeat interval", rules...),
			}),
		},
		{
			Name:        ToolListTasks,
			Description: "List tasks with optional filters.",
			Parameters: object(nil, map[string]any{
				"status":   str("Filter by status", statuses...),
				"priority": str("Filter by priority", priorities...),
				"search":   str("Keyword in title or description"),
				"tag":      str("Filter by tag"),
				"sort_by":  str("Sort field", sortFields...),
			}),
		},
		{
			Name:        ToolGetTask,
			Description: "Show one task in detail.",
			Parameters:  object([]string{"task_id"}, map[string]any{"task_id": str("Task id")}),
		},
		{
			Name:        ToolUpdateTask,
			Description: "Change fields of an existing task.",
			Parameters: object([]string{"task_id"}, map[string]any{
				"task_id":     str("Task id"),
				"title":       str("New title"),
				"description": str("New description"),
				"priority":    str("New priority", priorities...),
				"tags":        tagList(),
				"due_date":    str("New due date, ISO 8601"),
				"status":      str("New status", statuses...),
			}),
		},
		{
			Name:        ToolDeleteTask,
			Description: "Delete a task.",
			Parameters:  object([]string{"task_id"}, map[string]any{"task_id": str("Task id")}),
		},
		{
			Name:        ToolCompleteTask,
			Description: "Toggle completion of a task. With set=true the task is only ever marked completed. Completing a recurring task creates its next occurrence.",
			Parameters: object([]string{"task_id"}, map[string]any{
				"task_id": str("Task id"),
				"set":     map[string]any{"type": "boolean", "description": "Mark completed instead of toggling"},
			}),
		},
	}
}
