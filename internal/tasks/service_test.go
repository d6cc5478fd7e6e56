package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/events"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
)

var testNow = time.Date(2025, 3, 3, 8, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *storage.MemoryStore, *events.Recorder) {
	t.Helper()
	store := storage.NewMemoryStore()
	rec := &events.Recorder{}
	clock := func() time.Time { return testNow }
	coord := completion.New(store, completion.WithPublisher(rec), completion.WithClock(clock))
	return NewService(store, coord, WithPublisher(rec), WithClock(clock)), store, rec
}

func TestCreatePublishesEvent(t *testing.T) {
	svc, _, rec := newService(t)
	task, err := svc.Create(context.Background(), CreateInput{
		Title: "  Book dentist  ",
		Tags:  []string{"health", "Health", " "},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Title != "Book dentist" || task.Priority != model.PriorityMedium || task.Version != 1 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if diff := cmp.Diff([]string{"health"}, task.Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	created := rec.OfKind(events.KindTaskCreated)
	if len(created) != 1 || created[0].TaskID != task.ID {
		t.Fatalf("expected created event, got %+v", created)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, store, _ := newService(t)
	if _, err := svc.Create(context.Background(), CreateInput{Title: "   "}); !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("nothing should be stored, got %d", store.Len())
	}
}

func TestUpdateChangesFieldsAndPublishesDiff(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, CreateInput{Title: "Plan trip"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	title := "Plan summer trip"
	high := model.PriorityHigh
	updated, err := svc.Update(ctx, task.ID, UpdateInput{
		Title:      &title,
		Priority:   &high,
		DueDate:    &due,
		Recurrence: model.RulePtr(model.RecurrenceYearly),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Priority != high || !updated.DueDate.Equal(due) || !updated.HasRecurrence() {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if updated.Version != task.Version+1 {
		t.Fatalf("expected version bump, got %d", updated.Version)
	}

	evs := rec.OfKind(events.KindTaskUpdated)
	if len(evs) != 1 {
		t.Fatalf("expected one update event, got %d", len(evs))
	}
	for _, key := range []string{"title", "priority", "due_date", "recurrence_rule"} {
		if _, ok := evs[0].Payload[key]; !ok {
			t.Fatalf("payload missing %q: %+v", key, evs[0].Payload)
		}
	}

	cleared, err := svc.Update(ctx, task.ID, UpdateInput{ClearRecurrence: true, ClearDueDate: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.IsRecurring || cleared.Recurrence != nil || cleared.DueDate != nil {
		t.Fatalf("expected cleared fields, got %+v", cleared)
	}
}

func TestUpdateWithoutChangesDoesNotWrite(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, CreateInput{Title: "Same"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "Same"
	got, err := svc.Update(ctx, task.ID, UpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != task.Version {
		t.Fatalf("no-op update must not write, version %d -> %d", task.Version, got.Version)
	}
	if n := len(rec.OfKind(events.KindTaskUpdated)); n != 0 {
		t.Fatalf("expected no update events, got %d", n)
	}
}

func TestUpdateStatusRoutesThroughCoordinator(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, CreateInput{Title: "Gym", Recurrence: model.RulePtr(model.RecurrenceDaily)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	completed := model.StatusCompleted
	got, err := svc.Update(ctx, task.ID, UpdateInput{Status: &completed})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("expected completed task, got %+v", got)
	}
	clones, err := store.List(ctx, storage.Filter{ParentID: task.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(clones) != 1 {
		t.Fatalf("expected one clone, got %d", len(clones))
	}
	if n := len(rec.OfKind(events.KindRecurringTriggered)); n != 1 {
		t.Fatalf("expected recurring event, got %d", n)
	}

	bogus := model.Status("done")
	if _, err := svc.Update(ctx, task.ID, UpdateInput{Status: &bogus}); !errors.Is(err, model.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

// completionConflictStore rejects every commit that completes a task.
type completionConflictStore struct {
	*storage.MemoryStore
}

func (s completionConflictStore) Commit(ctx context.Context, writes ...model.Task) ([]model.Task, error) {
	for _, w := range writes {
		if w.Status == model.StatusCompleted {
			return nil, storage.ErrConflict
		}
	}
	return s.MemoryStore.Commit(ctx, writes...)
}

func TestUpdateReturnsSavedFieldsWhenStatusFails(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := completionConflictStore{MemoryStore: mem}
	clock := func() time.Time { return testNow }
	coord := completion.New(store, completion.WithClock(clock), completion.WithMaxConflictRetries(0))
	svc := NewService(store, coord, WithClock(clock))
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateInput{Title: "Draft report"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "Final report"
	completed := model.StatusCompleted
	got, err := svc.Update(ctx, task.ID, UpdateInput{Title: &title, Status: &completed})
	if !errors.Is(err, completion.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if got.Title != title || got.Status != model.StatusPending {
		t.Fatalf("expected saved fields with pending status, got %+v", got)
	}
	stored, err := mem.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(got, stored); diff != "" {
		t.Fatalf("returned task differs from stored (-returned +stored):\n%s", diff)
	}
}

func TestUpdateRejectsInvalidTitle(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, CreateInput{Title: "Valid"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	empty := ""
	if _, err := svc.Update(ctx, task.ID, UpdateInput{Title: &empty}); !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMissingTaskMapsToNotFound(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, completion.ErrTaskNotFound) {
		t.Fatalf("get: expected ErrTaskNotFound, got %v", err)
	}
	title := "x"
	if _, err := svc.Update(ctx, "nope", UpdateInput{Title: &title}); !errors.Is(err, completion.ErrTaskNotFound) {
		t.Fatalf("update: expected ErrTaskNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "nope"); !errors.Is(err, completion.ErrTaskNotFound) {
		t.Fatalf("delete: expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeletePublishesEvent(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	task, err := svc.Create(ctx, CreateInput{Title: "Temp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
	if n := len(rec.OfKind(events.KindTaskDeleted)); n != 1 {
		t.Fatalf("expected delete event, got %d", n)
	}
}
