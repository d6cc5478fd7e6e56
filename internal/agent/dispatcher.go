package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
)

type handler func(ctx context.Context, raw []byte) (string, error)

// Dispatcher routes tool calls to the task service.
type Dispatcher struct {
	svc      *tasks.Service
	handlers map[ToolName]handler
	loc      *time.Location
}

func NewDispatcher(svc *tasks.Service) *Dispatcher {
	d := &Dispatcher{svc: svc, loc: time.Local}
	d.handlers = map[ToolName]handler{
		ToolCreateTask:   d.createTask,
		ToolListTasks:    d.listTasks,
		ToolGetTask:      d.getTask,
		ToolUpdateTask:   d.updateTask,
		ToolDeleteTask:   d.deleteTask,
		ToolCompleteTask: d.completeTask,
	}
	return d
}

// Call runs the named tool. Arguments may be JSON with comments or
// trailing commas. A missing task is reported in the returned text, not as
// an error.
func (d *Dispatcher) Call(ctx context.Context, name string, rawArgs []byte) (string, error) {
	h, ok := d.handlers[ToolName(strings.TrimSpace(name))]
	if !ok {
		return "", &ToolError{Code: ErrCodeUnknownTool, Message: fmt.Sprintf("unsupported tool: %s", name)}
	}
	out, err := h(ctx, rawArgs)
	if err == nil {
		return out, nil
	}
	var te *ToolError
	switch {
	case errors.As(err, &te):
		return "", te
	case errors.Is(err, completion.ErrTaskNotFound):
		return "", &ToolError{Code: ErrCodeNotFound, Message: err.Error()}
	case model.IsValidation(err), errors.Is(err, storage.ErrInvalidFilter):
		return "", &ToolError{Code: ErrCodeInvalidArgument, Message: err.Error()}
	case errors.Is(err, completion.ErrTransient):
		return "", &ToolError{Code: ErrCodeUnavailable, Message: "task is busy, try again"}
	default:
		return "", err
	}
}

func decodeArgs(raw []byte, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return &ToolError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ToolError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &ToolError{Code: ErrCodeInvalidArgument, Message: "task_id is required"}
	}
	return id, nil
}

func notFound(id string) string {
	return fmt.Sprintf("Task not found with ID: %s", id)
}

type createArgs struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
	DueDate        string   `json:"due_date"`
	ReminderAt     string   `json:"reminder_at"`
	RecurrenceRule string   `json:"recurrence_rule"`
}

func (d *Dispatcher) createTask(ctx context.Context, raw []byte) (string, error) {
	var args createArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	in := tasks.CreateInput{Title: args.Title, Description: args.Description, Tags: args.Tags}
	var err error
	if args.Priority != "" {
		if in.Priority, err = model.ParsePriority(args.Priority); err != nil {
			return "", err
		}
	}
	if in.DueDate, err = model.ParseDate(args.DueDate, d.loc); err != nil {
		return "", err
	}
	if in.ReminderAt, err = model.ParseDate(args.ReminderAt, d.loc); err != nil {
		return "", err
	}
	if args.RecurrenceRule != "" {
		rule, err := model.ParseRecurrenceRule(args.RecurrenceRule)
		if err != nil {
			return "", err
		}
		in.Recurrence = &rule
	}

	task, err := d.svc.Create(ctx, in)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task created: '%s' (ID: %s, Priority: %s", task.Title, task.ID, task.Priority)
	if task.DueDate != nil {
		fmt.Fprintf(&b, ", Due: %s", formatTime(*task.DueDate))
	}
	if task.Recurrence != nil {
		fmt.Fprintf(&b, ", Recurring: %s", *task.Recurrence)
	}
	b.WriteString(")")
	return b.String(), nil
}

type listArgs struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Search   string `json:"search"`
	Tag      string `json:"tag"`
	SortBy   string `json:"sort_by"`
}

func (d *Dispatcher) listTasks(ctx context.Context, raw []byte) (string, error) {
	var args listArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	filter := storage.Filter{Search: args.Search, Tag: args.Tag}
	var err error
	if args.Status != "" {
		if filter.Status, err = model.ParseStatus(args.Status); err != nil {
			return "", err
		}
	}
	if args.Priority != "" {
		if filter.Priority, err = model.ParsePriority(args.Priority); err != nil {
			return "", err
		}
	}
	if filter.SortBy, err = storage.ParseSortField(args.SortBy); err != nil {
		return "", err
	}

	list, err := d.svc.List(ctx, filter)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "No tasks found matching the criteria.", nil
	}
	lines := []string{fmt.Sprintf("Found %d task(s):", len(list))}
	for _, t := range list {
		line := fmt.Sprintf("  %s [%s] %s", statusIcon(t.Status), t.Priority, t.Title)
		if t.DueDate != nil {
			line += " | Due: " + formatTime(*t.DueDate)
		}
		if len(t.Tags) > 0 {
			line += " | Tags: " + strings.Join(t.Tags, ", ")
		}
		lines = append(lines, fmt.Sprintf("%s (ID: %s)", line, shortID(t.ID)))
	}
	return strings.Join(lines, "\n"), nil
}

type idArgs struct {
	TaskID string `json:"task_id"`
}

func (d *Dispatcher) getTask(ctx context.Context, raw []byte) (string, error) {
	var args idArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	id, err := requireID(args.TaskID)
	if err != nil {
		return "", err
	}
	t, err := d.svc.Get(ctx, id)
	if errors.Is(err, completion.ErrTaskNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return "", err
	}
	return describe(t), nil
}

type updateArgs struct {
	TaskID      string    `json:"task_id"`
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	Tags        *[]string `json:"tags"`
	DueDate     *string   `json:"due_date"`
	Status      *string   `json:"status"`
}

func (d *Dispatcher) updateTask(ctx context.Context, raw []byte) (string, error) {
	var args updateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	id, err := requireID(args.TaskID)
	if err != nil {
		return "", err
	}

	in := tasks.UpdateInput{Title: args.Title, Description: args.Description, Tags: args.Tags}
	if args.Priority != nil {
		p, err := model.ParsePriority(*args.Priority)
		if err != nil {
			return "", err
		}
		in.Priority = &p
	}
	if args.Status != nil {
		s, err := model.ParseStatus(*args.Status)
		if err != nil {
			return "", err
		}
		in.Status = &s
	}
	if args.DueDate != nil {
		due, err := model.ParseDate(*args.DueDate, d.loc)
		if err != nil {
			return "", err
		}
		in.DueDate, in.ClearDueDate = due, due == nil
	}

	t, err := d.svc.Update(ctx, id, in)
	if errors.Is(err, completion.ErrTaskNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task updated: '%s' (Status: %s, Priority: %s)", t.Title, t.Status, t.Priority), nil
}

func (d *Dispatcher) deleteTask(ctx context.Context, raw []byte) (string, error) {
	var args idArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	id, err := requireID(args.TaskID)
	if err != nil {
		return "", err
	}
	err = d.svc.Delete(ctx, id)
	if errors.Is(err, completion.ErrTaskNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task deleted successfully (ID: %s)", id), nil
}

type completeArgs struct {
	TaskID string `json:"task_id"`
	Set    bool   `json:"set"`
}

func (d *Dispatcher) completeTask(ctx context.Context, raw []byte) (string, error) {
	var args completeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	id, err := requireID(args.TaskID)
	if err != nil {
		return "", err
	}

	coord := d.svc.Coordinator()
	var res completion.Result
	if args.Set {
		res, err = coord.Complete(ctx, id)
	} else {
		res, err = coord.ToggleCompletion(ctx, id)
	}
	if errors.Is(err, completion.ErrTaskNotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Task '%s' marked as %s", res.Task.Title, res.Task.Status)
	if res.Clone != nil && res.Clone.DueDate != nil {
		msg += fmt.Sprintf(". Next occurrence due %s (ID: %s)", formatTime(*res.Clone.DueDate), res.Clone.ID)
	}
	return msg, nil
}
