// Package completion owns the completion state machine of a task and the
// decision to spawn the next occurrence of a recurring task.
//
// Every transition runs as read, decide, commit against the store. The
// updated original and its clone are committed together under the
// original's version, so two racing completions of the same task can never
// both spawn a clone: the loser sees a conflict, re-reads a completed task
// and has nothing left to do.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/todoflow/internal/events"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

const DefaultMaxConflictRetries = 3

var (
	ErrTaskNotFound = errors.New("completion: task not found")
	ErrNotRecurring = errors.New("completion: task is not recurring")
	ErrTransient    = errors.New("completion: transient store failure")
)

// Result is the outcome of a transition. Changed is false when the task
// was already in the requested state; Clone is set only when a new
// occurrence was created by this call.
type Result struct {
	Task    model.Task
	Clone   *model.Task
	Changed bool
}

type Coordinator struct {
	store      storage.Store
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int
}

type Option func(*Coordinator)

func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMaxConflictRetries(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func New(store storage.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		publisher:  events.Discard{},
		logger:     slog.Default(),
		now:        time.Now,
		maxRetries: DefaultMaxConflictRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToggleCompletion flips a task between completed and pending. It is the
// interactive entry point; event consumers must use Complete instead, since
// a redelivered toggle would undo the completion.
func (c *Coordinator) ToggleCompletion(ctx context.Context, id string) (Result, error) {
	return c.transition(ctx, id, func(cur model.Task) model.Status {
		if cur.Status == model.StatusCompleted {
			return model.StatusPending
		}
		return model.StatusCompleted
	})
}

// Complete moves a task to completed. Calling it on a completed task is a
// no-op, which makes it safe to drive from at-least-once delivery.
func (c *Coordinator) Complete(ctx context.Context, id string) (Result, error) {
	return c.SetStatus(ctx, id, model.StatusCompleted)
}

// Reopen moves a completed task back to pending and leaves any other state
// alone. Clones spawned earlier are not touched.
func (c *Coordinator) Reopen(ctx context.Context, id string) (Result, error) {
	return c.transition(ctx, id, func(cur model.Task) model.Status {
		if cur.Status == model.StatusCompleted {
			return model.StatusPending
		}
		return cur.Status
	})
}

func (c *Coordinator) SetStatus(ctx context.Context, id string, status model.Status) (Result, error) {
	if !status.IsValid() {
		return Result{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}
	return c.transition(ctx, id, func(model.Task) model.Status { return status })
}

// CompleteIfCurrent completes the task unless it has changed since the
// completion that wrote version. A delivered task.completed event carries
// that version: if the task was reopened or edited afterwards, the event
// is stale and the call is a no-op. A zero version always completes.
func (c *Coordinator) CompleteIfCurrent(ctx context.Context, id string, version int64) (Result, error) {
	return c.transition(ctx, id, func(cur model.Task) model.Status {
		if version > 0 && cur.Version > version {
			c.logger.Debug("stale completion ignored", "task_id", id, "event_version", version, "stored_version", cur.Version)
			return cur.Status
		}
		return model.StatusCompleted
	})
}

func (c *Coordinator) transition(ctx context.Context, id string, decide func(model.Task) model.Status) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		cur, err := c.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return Result{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
			}
			return Result{}, fmt.Errorf("completion: load %s: %w", id, err)
		}

		target := decide(cur)
		if target == cur.Status {
			return Result{Task: cur}, nil
		}

		next, clone, err := c.apply(cur, target)
		if err != nil {
			return Result{}, err
		}
		writes := []model.Task{next}
		if clone != nil {
			writes = append(writes, *clone)
		}

		out, err := c.store.Commit(ctx, writes...)
		switch {
		case err == nil:
			res := Result{Task: out[0], Changed: true}
			if clone != nil {
				res.Clone = &out[1]
			}
			c.publish(ctx, cur.Status, res)
			return res, nil
		case errors.Is(err, storage.ErrConflict):
			lastErr = err
			c.logger.Debug("completion conflict, retrying", "task_id", id, "attempt", attempt+1)
			continue
		case errors.Is(err, storage.ErrNotFound):
			return Result{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		default:
			return Result{}, fmt.Errorf("completion: commit %s: %w", id, err)
		}
	}
	return Result{}, fmt.Errorf("%w: task %s still conflicting after %d attempts: %w", ErrTransient, id, c.maxRetries+1, lastErr)
}

// apply computes the new state of cur and, on the edge into completed for
// a recurring task, the clone to create alongside it.
func (c *Coordinator) apply(cur model.Task, target model.Status) (model.Task, *model.Task, error) {
	now := c.now()
	next := cur.Clone()
	next.Status = target
	next.UpdatedAt = now

	if next.IsRecurring != (next.Recurrence != nil) {
		c.logger.Warn("recurrence flag and rule disagree, treating task as non-recurring",
			"task_id", cur.ID, "is_recurring", cur.IsRecurring, "has_rule", cur.Recurrence != nil)
		next.IsRecurring = false
		next.Recurrence = nil
	}

	if target != model.StatusCompleted {
		next.CompletedAt = nil
		return next, nil, nil
	}

	next.CompletedAt = &now
	if !cur.HasRecurrence() {
		return next, nil, nil
	}
	clone, err := MakeClone(cur, now)
	if err != nil {
		return model.Task{}, nil, err
	}
	return next, &clone, nil
}

// MakeClone builds the next pending occurrence of original. It is exported
// for replay paths that rebuild a clone outside a transition.
func MakeClone(original model.Task, now time.Time) (model.Task, error) {
	if !original.HasRecurrence() {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotRecurring, original.ID)
	}
	due, err := model.NextOccurrence(original.DueDate, *original.Recurrence, now)
	if err != nil {
		return model.Task{}, err
	}

	clone := original.Clone()
	clone.ID = uuid.NewString()
	clone.Status = model.StatusPending
	clone.CompletedAt = nil
	clone.DueDate = &due
	clone.ReminderAt = nil
	clone.ParentID = original.ID
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.Version = 0
	if clone.Tags == nil {
		clone.Tags = []string{}
	}
	return clone, nil
}

func (c *Coordinator) publish(ctx context.Context, from model.Status, res Result) {
	if c.publisher == nil {
		return
	}
	now := c.now()
	var evs []events.Event
	if res.Task.Status == model.StatusCompleted {
		evs = append(evs, events.TaskCompleted(res.Task, now))
		if res.Clone != nil {
			evs = append(evs, events.RecurringTriggered(res.Task, *res.Clone, now))
		}
	} else {
		evs = append(evs, events.TaskUpdated(res.Task, map[string]any{
			"status":          string(res.Task.Status),
			"previous_status": string(from),
		}, now))
	}
	for _, ev := range evs {
		if err := c.publisher.Publish(ctx, ev); err != nil {
			c.logger.Warn("event publish failed", "event_type", string(ev.Kind), "task_id", ev.TaskID, "err", err)
		}
	}
}
