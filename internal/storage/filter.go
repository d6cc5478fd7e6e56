package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandeepkv93/todoflow/internal/model"
)

var ErrInvalidFilter = errors.New("storage: invalid filter")

type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortDueDate   SortField = "due_date"
	SortPriority  SortField = "priority"
	SortTitle     SortField = "title"
	SortStatus    SortField = "status"
)

func ParseSortField(raw string) (SortField, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case "":
		return SortCreatedAt, nil
	case SortCreatedAt, SortDueDate, SortPriority, SortTitle, SortStatus:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported sort field %q", ErrInvalidFilter, raw)
	}
}

type Filter struct {
	Status    model.Status
	Priority  model.Priority
	Tag       string
	Search    string
	ParentID  string
	DueBefore *time.Time
	DueAfter  *time.Time
	SortBy    SortField
	Desc      bool
	Limit     int
	Offset    int
}

func (f Filter) Match(t model.Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.ParentID != "" && t.ParentID != f.ParentID {
		return false
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" && !model.HasTag(t, tag) {
		return false
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Search)); kw != "" {
		if !strings.Contains(strings.ToLower(t.Title), kw) && !strings.Contains(strings.ToLower(t.Description), kw) {
			return false
		}
	}
	if f.DueBefore != nil && (t.DueDate == nil || t.DueDate.After(*f.DueBefore)) {
		return false
	}
	if f.DueAfter != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueAfter)) {
		return false
	}
	return true
}

// ApplyFilter filters, sorts and paginates tasks in memory. The input slice
// is not modified.
func ApplyFilter(tasks []model.Task, f Filter) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	SortTasks(out, f.SortBy, f.Desc)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []model.Task{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}

// SortTasks orders tasks in place. Tasks without a due date sort last
// regardless of direction; ties fall back to creation time then id.
func SortTasks(tasks []model.Task, by SortField, desc bool) {
	if by == "" {
		by = SortCreatedAt
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if by == SortDueDate && (a.DueDate == nil) != (b.DueDate == nil) {
			return a.DueDate != nil
		}
		c := compareBy(a, b, by)
		if c == 0 {
			c = compareTime(a.CreatedAt, b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareBy(a, b model.Task, by SortField) int {
	switch by {
	case SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case SortStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortDueDate:
		if a.DueDate == nil || b.DueDate == nil {
			return 0
		}
		return compareTime(*a.DueDate, *b.DueDate)
	default:
		return compareTime(a.CreatedAt, b.CreatedAt)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
