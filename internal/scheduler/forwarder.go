package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/todoflow/internal/events"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

// Forwarder turns fired reminders into task.reminder.due events.
type Forwarder struct {
	engine    *Engine
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewForwarder(engine *Engine, publisher events.Publisher, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{engine: engine, publisher: publisher, logger: logger, now: time.Now}
}

// Run forwards reminders until the engine stops or ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.engine.C():
			if !ok {
				return
			}
			f.forward(ctx, ev)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, ev ReminderEvent) {
	out := events.ReminderDue(ev.TaskID, ev.Title, ev.TriggerAt, f.now())
	if err := f.publisher.Publish(ctx, out); err != nil {
		f.logger.Warn("reminder publish failed", "task_id", ev.TaskID, "err", err)
		return
	}
	f.logger.Debug("reminder forwarded", "task_id", ev.TaskID, "trigger_at", ev.TriggerAt)
}

// reminderFor reports the reminder a task should have right now, if any.
func reminderFor(t model.Task, now time.Time) (ReminderEvent, bool) {
	if t.IsCompleted() || t.ReminderAt == nil || !t.ReminderAt.After(now) {
		return ReminderEvent{}, false
	}
	return ReminderEvent{TaskID: t.ID, Title: t.Title, TriggerAt: *t.ReminderAt}, true
}

// ScheduleFromStore loads every open task with a future reminder into
// engine and returns how many were scheduled.
func ScheduleFromStore(ctx context.Context, store storage.Store, engine *Engine, now time.Time) (int, error) {
	tasks, err := store.List(ctx, storage.Filter{})
	if err != nil {
		return 0, fmt.Errorf("scheduler: load tasks: %w", err)
	}
	n := 0
	for _, t := range tasks {
		ev, ok := reminderFor(t, now)
		if !ok {
			continue
		}
		if err := engine.Schedule(ev); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Sync keeps the engine in step with task events. It is meant to sit
// beside the outbound publisher so every create, update, completion and
// delete adjusts the pending reminder of that task.
type Sync struct {
	engine *Engine
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewSync(engine *Engine, store storage.Store, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{engine: engine, store: store, logger: logger, now: time.Now}
}

func (s *Sync) Publish(ctx context.Context, ev events.Event) error {
	switch ev.Kind {
	case events.KindTaskDeleted, events.KindTaskCompleted:
		s.engine.Cancel(ev.TaskID)
	case events.KindTaskCreated, events.KindTaskUpdated, events.KindRecurringTriggered:
		t, err := s.store.Get(ctx, ev.TaskID)
		if errors.Is(err, storage.ErrNotFound) {
			s.engine.Cancel(ev.TaskID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("scheduler: sync %s: %w", ev.TaskID, err)
		}
		if r, ok := reminderFor(t, s.now()); ok {
			return s.engine.Schedule(r)
		}
		s.engine.Cancel(ev.TaskID)
	}
	return nil
}
