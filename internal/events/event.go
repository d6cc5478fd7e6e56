package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/todoflow/internal/model"
)

type Kind string

const (
	KindTaskCreated        Kind = "task.created"
	KindTaskUpdated        Kind = "task.updated"
	KindTaskCompleted      Kind = "task.completed"
	KindTaskDeleted        Kind = "task.deleted"
	KindReminderDue        Kind = "task.reminder.due"
	KindRecurringTriggered Kind = "task.recurring.triggered"
)

// eventNamespace seeds deterministic ids for events that describe a single
// state transition, so a re-published transition keeps its id.
var eventNamespace = uuid.MustParse("6f1c1a52-52d4-4b7e-9f0e-6d3f0c7a9b21")

type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"event_type"`
	TaskID    string         `json:"task_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

func newEvent(kind Kind, taskID string, at time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		TaskID:    taskID,
		Timestamp: at.UTC(),
		Payload:   payload,
	}
}

func transitionID(kind Kind, taskID string, version int64) string {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%s:%s:%d", kind, taskID, version))).String()
}

func ruleValue(r *model.RecurrenceRule) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func TaskCreated(t model.Task, at time.Time) Event {
	return newEvent(KindTaskCreated, t.ID, at, map[string]any{
		"title":    t.Title,
		"priority": string(t.Priority),
	})
}

func TaskUpdated(t model.Task, changed map[string]any, at time.Time) Event {
	ev := newEvent(KindTaskUpdated, t.ID, at, changed)
	ev.ID = transitionID(KindTaskUpdated, t.ID, t.Version)
	return ev
}

func TaskDeleted(taskID string, at time.Time) Event {
	return newEvent(KindTaskDeleted, taskID, at, nil)
}

// TaskCompleted describes the pending->completed edge of t. The id is
// derived from the task id and the version written by that transition.
func TaskCompleted(t model.Task, at time.Time) Event {
	ev := newEvent(KindTaskCompleted, t.ID, at, map[string]any{
		"status":          string(t.Status),
		"is_recurring":    t.IsRecurring,
		"recurrence_rule": ruleValue(t.Recurrence),
		"version":         t.Version,
	})
	ev.ID = transitionID(KindTaskCompleted, t.ID, t.Version)
	return ev
}

func RecurringTriggered(original, clone model.Task, at time.Time) Event {
	payload := map[string]any{
		"original_task_id": original.ID,
		"recurrence_rule":  ruleValue(original.Recurrence),
		"next_due_date":    nil,
	}
	if clone.DueDate != nil {
		payload["next_due_date"] = clone.DueDate.Format(time.RFC3339)
	}
	ev := newEvent(KindRecurringTriggered, clone.ID, at, payload)
	ev.ID = transitionID(KindRecurringTriggered, clone.ID, 0)
	return ev
}

func ReminderDue(taskID, title string, triggerAt, at time.Time) Event {
	return newEvent(KindReminderDue, taskID, at, map[string]any{
		"title":      title,
		"trigger_at": triggerAt.UTC().Format(time.RFC3339),
	})
}

// PayloadString reads a string field from a decoded payload.
func (e Event) PayloadString(key string) string {
	v, _ := e.Payload[key].(string)
	return v
}

// PayloadInt64 reads an integer field. JSON decoding yields float64, so
// both shapes are accepted.
func (e Event) PayloadInt64(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func (e Event) PayloadBool(key string) bool {
	v, _ := e.Payload[key].(bool)
	return v
}
