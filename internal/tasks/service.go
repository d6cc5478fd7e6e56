// Package tasks is the CRUD surface over the task store. Status changes
// are delegated to the completion coordinator.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/events"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

type CreateInput struct {
	Title       string
	Description string
	Priority    model.Priority
	Tags        []string
	DueDate     *time.Time
	ReminderAt  *time.Time
	Recurrence  *model.RecurrenceRule
}

// UpdateInput is a partial update. Nil fields are left alone; the Clear
// flags drop an optional value.
type UpdateInput struct {
	Title           *string
	Description     *string
	Priority        *model.Priority
	Tags            *[]string
	DueDate         *time.Time
	ClearDueDate    bool
	ReminderAt      *time.Time
	ClearReminder   bool
	Recurrence      *model.RecurrenceRule
	ClearRecurrence bool
	Status          *model.Status
}

func (in UpdateInput) touchesFields() bool {
	return in.Title != nil || in.Description != nil || in.Priority != nil || in.Tags != nil ||
		in.DueDate != nil || in.ClearDueDate || in.ReminderAt != nil || in.ClearReminder ||
		in.Recurrence != nil || in.ClearRecurrence
}

type Service struct {
	store       storage.Store
	coordinator *completion.Coordinator
	publisher   events.Publisher
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store storage.Store, coordinator *completion.Coordinator, opts ...Option) *Service {
	s := &Service{
		store:       store,
		coordinator: coordinator,
		publisher:   events.Discard{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Coordinator() *completion.Coordinator { return s.coordinator }

func (s *Service) Create(ctx context.Context, in CreateInput) (model.Task, error) {
	task, err := model.NewTask(model.NewTaskInput{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Tags:        in.Tags,
		DueDate:     in.DueDate,
		ReminderAt:  in.ReminderAt,
		Recurrence:  in.Recurrence,
	}, s.now())
	if err != nil {
		return model.Task{}, err
	}
	saved, err := s.store.Put(ctx, task)
	if err != nil {
		return model.Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	s.publish(ctx, events.TaskCreated(saved, s.now()))
	return saved, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Task, error) {
	task, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Task{}, fmt.Errorf("%w: %s", completion.ErrTaskNotFound, id)
	}
	return task, err
}

func (s *Service) List(ctx context.Context, filter storage.Filter) ([]model.Task, error) {
	return s.store.List(ctx, filter)
}

// Update applies field changes first and then, if requested, moves the
// status through the coordinator so a completion still spawns a clone.
// The two steps commit separately: when the status change fails after the
// fields were saved, the saved task is returned along with the error.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.Task, error) {
	if in.Status != nil && !in.Status.IsValid() {
		return model.Task{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, *in.Status)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if in.touchesFields() {
		current, err = s.updateFields(ctx, current, in)
		if err != nil {
			return model.Task{}, err
		}
	}
	if in.Status != nil && *in.Status != current.Status {
		res, err := s.coordinator.SetStatus(ctx, id, *in.Status)
		if err != nil {
			return current, err
		}
		current = res.Task
	}
	return current, nil
}

func (s *Service) updateFields(ctx context.Context, current model.Task, in UpdateInput) (model.Task, error) {
	for attempt := 0; ; attempt++ {
		next, changed := applyUpdate(current, in)
		if len(changed) == 0 {
			return current, nil
		}
		next.UpdatedAt = s.now()
		if err := next.Validate(); err != nil {
			return model.Task{}, err
		}
		saved, err := s.store.Put(ctx, next)
		switch {
		case err == nil:
			s.publish(ctx, events.TaskUpdated(saved, changed, s.now()))
			return saved, nil
		case errors.Is(err, storage.ErrConflict) && attempt < completion.DefaultMaxConflictRetries:
			if current, err = s.Get(ctx, current.ID); err != nil {
				return model.Task{}, err
			}
		case errors.Is(err, storage.ErrConflict):
			return model.Task{}, fmt.Errorf("%w: %w", completion.ErrTransient, err)
		case errors.Is(err, storage.ErrNotFound):
			return model.Task{}, fmt.Errorf("%w: %s", completion.ErrTaskNotFound, current.ID)
		default:
			return model.Task{}, fmt.Errorf("tasks: update: %w", err)
		}
	}
}

// applyUpdate returns the updated copy and the changed fields keyed by
// their wire name.
func applyUpdate(cur model.Task, in UpdateInput) (model.Task, map[string]any) {
	next := cur.Clone()
	changed := map[string]any{}

	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != cur.Title {
			next.Title = title
			changed["title"] = title
		}
	}
	if in.Description != nil {
		if desc := strings.TrimSpace(*in.Description); desc != cur.Description {
			next.Description = desc
			changed["description"] = desc
		}
	}
	if in.Priority != nil && *in.Priority != cur.Priority {
		next.Priority = *in.Priority
		changed["priority"] = string(*in.Priority)
	}
	if in.Tags != nil {
		tags := model.NormalizeTags(*in.Tags)
		if !slices.Equal(tags, cur.Tags) {
			next.Tags = tags
			changed["tags"] = tags
		}
	}
	switch {
	case in.ClearDueDate && cur.DueDate != nil:
		next.DueDate = nil
		changed["due_date"] = nil
	case in.DueDate != nil && (cur.DueDate == nil || !cur.DueDate.Equal(*in.DueDate)):
		next.DueDate = model.TimePtr(*in.DueDate)
		changed["due_date"] = in.DueDate.Format(time.RFC3339)
	}
	switch {
	case in.ClearReminder && cur.ReminderAt != nil:
		next.ReminderAt = nil
		changed["reminder_at"] = nil
	case in.ReminderAt != nil && (cur.ReminderAt == nil || !cur.ReminderAt.Equal(*in.ReminderAt)):
		next.ReminderAt = model.TimePtr(*in.ReminderAt)
		changed["reminder_at"] = in.ReminderAt.Format(time.RFC3339)
	}
	switch {
	case in.ClearRecurrence && (cur.IsRecurring || cur.Recurrence != nil):
		next.IsRecurring = false
		next.Recurrence = nil
		changed["recurrence_rule"] = nil
	case in.Recurrence != nil && (cur.Recurrence == nil || *cur.Recurrence != *in.Recurrence):
		next.IsRecurring = true
		next.Recurrence = model.RulePtr(*in.Recurrence)
		changed["recurrence_rule"] = string(*in.Recurrence)
	}
	return next, changed
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", completion.ErrTaskNotFound, id)
		}
		return fmt.Errorf("tasks: delete: %w", err)
	}
	s.publish(ctx, events.TaskDeleted(id, s.now()))
	return nil
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("event publish failed", "event_type", string(ev.Kind), "task_id", ev.TaskID, "err", err)
	}
}
