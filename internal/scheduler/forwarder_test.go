package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sandeepkv93/todoflow/internal/events"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func putTask(t *testing.T, store storage.Store, in model.NewTaskInput) model.Task {
	t.Helper()
	task, err := model.NewTask(in, time.Now())
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	saved, err := store.Put(context.Background(), task)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	return saved
}

func TestForwarderPublishesReminderDue(t *testing.T) {
	engine := NewEngine(4)
	rec := &events.Recorder{}
	fwd := NewForwarder(engine, rec, quietLogger())
	engine.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		fwd.Run(ctx)
		close(done)
	}()

	trigger := time.Now().Add(10 * time.Millisecond)
	if err := engine.Schedule(ReminderEvent{TaskID: "t1", Title: "Call the bank", TriggerAt: trigger}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(rec.OfKind(events.KindReminderDue)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reminder event")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ev := rec.OfKind(events.KindReminderDue)[0]
	if ev.TaskID != "t1" || ev.PayloadString("title") != "Call the bank" {
		t.Fatalf("unexpected reminder event: %+v", ev)
	}

	engine.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not exit after engine stop")
	}
}

func TestScheduleFromStoreSkipsPastAndCompleted(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	putTask(t, store, model.NewTaskInput{Title: "future", ReminderAt: &future})
	putTask(t, store, model.NewTaskInput{Title: "past", ReminderAt: &past})
	putTask(t, store, model.NewTaskInput{Title: "none"})
	done := putTask(t, store, model.NewTaskInput{Title: "done", ReminderAt: &future})
	done.Status = model.StatusCompleted
	done.CompletedAt = &now
	if _, err := store.Put(context.Background(), done); err != nil {
		t.Fatalf("complete: %v", err)
	}

	engine := NewEngine(4)
	n, err := ScheduleFromStore(context.Background(), store, engine, now)
	if err != nil {
		t.Fatalf("schedule from store: %v", err)
	}
	if n != 1 || engine.Pending() != 1 {
		t.Fatalf("expected one scheduled reminder, got n=%d pending=%d", n, engine.Pending())
	}
}

func TestSyncFollowsTaskEvents(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := NewEngine(4)
	syncer := NewSync(engine, store, quietLogger())
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	task := putTask(t, store, model.NewTaskInput{Title: "sync me", ReminderAt: &future})

	if err := syncer.Publish(ctx, events.TaskCreated(task, time.Now())); err != nil {
		t.Fatalf("created: %v", err)
	}
	if engine.Pending() != 1 {
		t.Fatalf("expected reminder after create, got %d", engine.Pending())
	}

	if err := syncer.Publish(ctx, events.TaskCompleted(task, time.Now())); err != nil {
		t.Fatalf("completed: %v", err)
	}
	if engine.Pending() != 0 {
		t.Fatalf("expected reminder cancelled after completion, got %d", engine.Pending())
	}

	if err := syncer.Publish(ctx, events.TaskUpdated(task, nil, time.Now())); err != nil {
		t.Fatalf("updated: %v", err)
	}
	if engine.Pending() != 1 {
		t.Fatalf("expected reminder back after update, got %d", engine.Pending())
	}

	if err := store.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := syncer.Publish(ctx, events.TaskUpdated(task, nil, time.Now())); err != nil {
		t.Fatalf("update of missing task: %v", err)
	}
	if engine.Pending() != 0 {
		t.Fatalf("expected reminder cancelled for missing task, got %d", engine.Pending())
	}
}
