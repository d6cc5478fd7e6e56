package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

var (
	ErrInvalidTask     = errors.New("model: invalid task")
	ErrInvalidStatus   = errors.New("model: invalid task status")
	ErrInvalidPriority = errors.New("model: invalid task priority")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities from most to least urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 99
	}
}

func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return p, nil
}

type Task struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description,omitempty"`
	Status      Status          `json:"status" yaml:"status"`
	Priority    Priority        `json:"priority" yaml:"priority"`
	Tags        []string        `json:"tags" yaml:"tags,omitempty"`
	DueDate     *time.Time      `json:"due_date" yaml:"due_date,omitempty"`
	ReminderAt  *time.Time      `json:"reminder_at" yaml:"reminder_at,omitempty"`
	IsRecurring bool            `json:"is_recurring" yaml:"is_recurring"`
	Recurrence  *RecurrenceRule `json:"recurrence_rule" yaml:"recurrence_rule,omitempty"`
	ParentID    string          `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	CompletedAt *time.Time      `json:"completed_at" yaml:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"updated_at"`
	// Version is owned by the store; zero means the task was never saved.
	Version int64 `json:"version" yaml:"-"`
}

// HasRecurrence reports whether completing t should spawn a clone.
func (t Task) HasRecurrence() bool {
	return t.IsRecurring && t.Recurrence != nil
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Clone returns a deep copy; tags and time pointers are not shared.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	out.DueDate = copyTime(t.DueDate)
	out.ReminderAt = copyTime(t.ReminderAt)
	out.CompletedAt = copyTime(t.CompletedAt)
	if t.Recurrence != nil {
		rule := *t.Recurrence
		out.Recurrence = &rule
	}
	return out
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTask)
	}
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidTask, MaxDescriptionLength)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if t.IsRecurring && t.Recurrence == nil {
		return fmt.Errorf("%w: recurring task requires a recurrence rule", ErrInvalidTask)
	}
	if !t.IsRecurring && t.Recurrence != nil {
		return fmt.Errorf("%w: recurrence rule set on non-recurring task", ErrInvalidTask)
	}
	if t.Recurrence != nil && !t.Recurrence.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecurrenceRule, *t.Recurrence)
	}
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		return fmt.Errorf("%w: completed_at is required when status is completed", ErrInvalidTask)
	}
	if t.Status != StatusCompleted && t.CompletedAt != nil {
		return fmt.Errorf("%w: completed_at must be nil when status is not completed", ErrInvalidTask)
	}
	for _, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("%w: empty tag", ErrInvalidTask)
		}
	}
	if len(NormalizeTags(t.Tags)) != len(t.Tags) {
		return fmt.Errorf("%w: duplicate tags", ErrInvalidTask)
	}
	if t.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalidTask)
	}
	return nil
}

// IsValidation reports whether err was produced by input validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidTask) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidPriority) ||
		errors.Is(err, ErrInvalidRecurrenceRule)
}

func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTask, MaxTitleLength)
	}
	return nil
}

// NormalizeTags trims tags, drops empty ones and removes case-insensitive
// duplicates. The first spelling of a tag wins and order is kept.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ParseTags splits a comma separated list and normalizes it.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(raw, ","))
}

func HasTag(t Task, tag string) bool {
	for _, item := range t.Tags {
		if strings.EqualFold(item, tag) {
			return true
		}
	}
	return false
}

type NewTaskInput struct {
	Title       string
	Description string
	Priority    Priority
	Tags        []string
	DueDate     *time.Time
	ReminderAt  *time.Time
	Recurrence  *RecurrenceRule
}

// NewTask builds a pending task with a fresh id. The recurrence flag is
// derived from the presence of a rule.
func NewTask(in NewTaskInput, now time.Time) (Task, error) {
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	t := Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      StatusPending,
		Priority:    priority,
		Tags:        NormalizeTags(in.Tags),
		DueDate:     copyTime(in.DueDate),
		ReminderAt:  copyTime(in.ReminderAt),
		IsRecurring: in.Recurrence != nil,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Recurrence != nil {
		rule := *in.Recurrence
		t.Recurrence = &rule
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// ParseDate accepts RFC 3339 plus the console formats "2006-01-02 15:04"
// and "2006-01-02". An empty string yields nil.
func ParseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if tm, err := time.Parse(time.RFC3339, raw); err == nil {
		return &tm, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if tm, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &tm, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q, use YYYY-MM-DD or YYYY-MM-DD HH:MM", ErrInvalidTask, raw)
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	tm := *v
	return &tm
}

func RulePtr(r RecurrenceRule) *RecurrenceRule { return &r }

func TimePtr(t time.Time) *time.Time { return &t }
