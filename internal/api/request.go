package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
)

type createRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
	DueDate        string   `json:"due_date"`
	ReminderAt     string   `json:"reminder_at"`
	IsRecurring    bool     `json:"is_recurring"`
	RecurrenceRule string   `json:"recurrence_rule"`
}

func (b createRequest) input() (tasks.CreateInput, error) {
	in := tasks.CreateInput{Title: b.Title, Description: b.Description, Tags: b.Tags}
	if b.Priority != "" {
		p, err := model.ParsePriority(b.Priority)
		if err != nil {
			return in, err
		}
		in.Priority = p
	}
	var err error
	if in.DueDate, err = model.ParseDate(b.DueDate, time.UTC); err != nil {
		return in, err
	}
	if in.ReminderAt, err = model.ParseDate(b.ReminderAt, time.UTC); err != nil {
		return in, err
	}
	if b.RecurrenceRule != "" {
		rule, err := model.ParseRecurrenceRule(b.RecurrenceRule)
		if err != nil {
			return in, err
		}
		in.Recurrence = &rule
	} else if b.IsRecurring {
		return in, fmt.Errorf("%w: recurring task requires a recurrence rule", model.ErrInvalidTask)
	}
	return in, nil
}

// updateFromJSON reads a PATCH body. An explicit null clears an optional
// field; an absent key leaves it untouched.
func updateFromJSON(raw map[string]json.RawMessage) (tasks.UpdateInput, error) {
	var in tasks.UpdateInput
	for key, value := range raw {
		isNull := strings.TrimSpace(string(value)) == "null"
		switch key {
		case "title":
			var v string
			if err := decodeField(key, value, &v); err != nil {
				return in, err
			}
			in.Title = &v
		case "description":
			var v string
			if !isNull {
				if err := decodeField(key, value, &v); err != nil {
					return in, err
				}
			}
			in.Description = &v
		case "priority":
			var v string
			if err := decodeField(key, value, &v); err != nil {
				return in, err
			}
			p, err := model.ParsePriority(v)
			if err != nil {
				return in, err
			}
			in.Priority = &p
		case "status":
			var v string
			if err := decodeField(key, value, &v); err != nil {
				return in, err
			}
			st, err := model.ParseStatus(v)
			if err != nil {
				return in, err
			}
			in.Status = &st
		case "tags":
			v := []string{}
			if !isNull {
				if err := decodeField(key, value, &v); err != nil {
					return in, err
				}
			}
			in.Tags = &v
		case "due_date":
			t, clear, err := decodeTime(key, value, isNull)
			if err != nil {
				return in, err
			}
			in.DueDate, in.ClearDueDate = t, clear
		case "reminder_at":
			t, clear, err := decodeTime(key, value, isNull)
			if err != nil {
				return in, err
			}
			in.ReminderAt, in.ClearReminder = t, clear
		case "recurrence_rule":
			if isNull {
				in.ClearRecurrence = true
				continue
			}
			var v string
			if err := decodeField(key, value, &v); err != nil {
				return in, err
			}
			rule, err := model.ParseRecurrenceRule(v)
			if err != nil {
				return in, err
			}
			in.Recurrence = &rule
		case "is_recurring":
			var v bool
			if err := decodeField(key, value, &v); err != nil {
				return in, err
			}
			if !v {
				in.ClearRecurrence = true
			}
		}
	}
	if in.ClearRecurrence && in.Recurrence != nil {
		return in, fmt.Errorf("%w: recurrence_rule conflicts with is_recurring=false", model.ErrInvalidTask)
	}
	return in, nil
}

func decodeField(key string, value json.RawMessage, dst any) error {
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("%w: field %s has the wrong type", model.ErrInvalidTask, key)
	}
	return nil
}

func decodeTime(key string, value json.RawMessage, isNull bool) (*time.Time, bool, error) {
	if isNull {
		return nil, true, nil
	}
	var s string
	if err := decodeField(key, value, &s); err != nil {
		return nil, false, err
	}
	t, err := model.ParseDate(s, time.UTC)
	if err != nil {
		return nil, false, err
	}
	return t, t == nil, nil
}

func filterFromQuery(r *http.Request) (storage.Filter, error) {
	q := r.URL.Query()
	var f storage.Filter
	if v := q.Get("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if v := q.Get("priority"); v != "" {
		p, err := model.ParsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	f.Tag = q.Get("tag")
	f.Search = q.Get("search")
	sortBy, err := storage.ParseSortField(q.Get("sort_by"))
	if err != nil {
		return f, err
	}
	f.SortBy = sortBy
	switch strings.ToLower(q.Get("sort_order")) {
	case "", "asc":
	case "desc":
		f.Desc = true
	default:
		return f, fmt.Errorf("%w: sort_order must be asc or desc", storage.ErrInvalidFilter)
	}
	return f, nil
}
