package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sandeepkv93/todoflow/internal/model"
)

func setupRepo(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "todoflow-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func newTestTask(t *testing.T, id, title string) model.Task {
	t.Helper()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")
	return model.Task{
		ID:        id,
		Title:     title,
		Status:    model.StatusPending,
		Priority:  model.PriorityMedium,
		Tags:      []string{},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": setupRepo(t),
		"memory": NewMemoryStore(),
	}
}

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func TestTaskCRUDAndList(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			due := parseRFC3339(t, "2026-02-10T09:00:00+02:00")
			task := newTestTask(t, "task-1", "Write schema")
			task.Description = "Design storage layout"
			task.Priority = model.PriorityHigh
			task.Tags = []string{"Work", "db"}
			task.DueDate = &due
			task.IsRecurring = true
			task.Recurrence = model.RulePtr(model.RecurrenceWeekly)

			saved, err := repo.Put(ctx, task)
			if err != nil {
				t.Fatalf("create task: %v", err)
			}
			if saved.Version != 1 {
				t.Fatalf("expected version 1, got %d", saved.Version)
			}

			got, err := repo.Get(ctx, task.ID)
			if err != nil {
				t.Fatalf("get task: %v", err)
			}
			if diff := cmp.Diff(saved, got, timeEqual); diff != "" {
				t.Fatalf("roundtrip mismatch (-want +got):\n%s", diff)
			}
			if _, offset := got.DueDate.Zone(); offset != 2*3600 {
				t.Fatalf("expected due date offset preserved, got %d", offset)
			}

			got.Title = "Write schema v2"
			got.Status = model.StatusInProgress
			updated, err := repo.Put(ctx, got)
			if err != nil {
				t.Fatalf("update task: %v", err)
			}
			if updated.Version != 2 {
				t.Fatalf("expected version 2, got %d", updated.Version)
			}

			inProgress, err := repo.List(ctx, Filter{Status: model.StatusInProgress})
			if err != nil {
				t.Fatalf("list tasks: %v", err)
			}
			if len(inProgress) != 1 || inProgress[0].Title != "Write schema v2" {
				t.Fatalf("unexpected list: %#v", inProgress)
			}

			if err := repo.Delete(ctx, task.ID); err != nil {
				t.Fatalf("delete task: %v", err)
			}
			if _, err := repo.Get(ctx, task.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got: %v", err)
			}
			if err := repo.Delete(ctx, task.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
			}
		})
	}
}

func TestPutRejectsStaleVersion(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := repo.Put(ctx, newTestTask(t, "task-v", "Versioned"))
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			first := saved
			first.Title = "first writer"
			if _, err := repo.Put(ctx, first); err != nil {
				t.Fatalf("first update: %v", err)
			}

			second := saved
			second.Title = "second writer"
			if _, err := repo.Put(ctx, second); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}

			if _, err := repo.Put(ctx, newTestTask(t, "task-v", "duplicate insert")); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict on duplicate insert, got %v", err)
			}

			missing := newTestTask(t, "ghost", "ghost")
			missing.Version = 4
			if _, err := repo.Put(ctx, missing); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
			}
		})
	}
}

func TestCommitIsAllOrNothing(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := repo.Put(ctx, newTestTask(t, "orig", "Original"))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := repo.Put(ctx, newTestTask(t, "taken", "Existing")); err != nil {
				t.Fatalf("create: %v", err)
			}

			saved.Title = "Changed"
			_, err = repo.Commit(ctx, saved, newTestTask(t, "taken", "Collides"))
			if !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			got, err := repo.Get(ctx, "orig")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Title != "Original" || got.Version != 1 {
				t.Fatalf("partial commit leaked: %#v", got)
			}

			out, err := repo.Commit(ctx, saved, newTestTask(t, "fresh", "Fresh"))
			if err != nil {
				t.Fatalf("commit: %v", err)
			}
			if len(out) != 2 || out[0].Version != 2 || out[1].Version != 1 {
				t.Fatalf("unexpected commit result: %#v", out)
			}
		})
	}
}

func TestCommitRejectsInvalidTask(t *testing.T) {
	repo := NewMemoryStore()
	bad := newTestTask(t, "bad", "Bad")
	bad.Status = model.StatusCompleted
	if _, err := repo.Put(context.Background(), bad); !model.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConcurrentWritersOnlyOneWins(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := repo.Put(ctx, newTestTask(t, "hot", "Contended"))
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			const writers = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			wg.Add(writers)
			for i := 0; i < writers; i++ {
				go func() {
					defer wg.Done()
					next := saved
					next.Title = "winner"
					if _, err := repo.Put(ctx, next); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					} else if !errors.Is(err, ErrConflict) {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()
			if wins != 1 {
				t.Fatalf("expected exactly one winner, got %d", wins)
			}
		})
	}
}

func TestDeleteThenRecreateAndParallelInserts(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := repo.Put(ctx, newTestTask(t, "gone", "Temporary")); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := repo.Delete(ctx, "gone"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			again, err := repo.Put(ctx, newTestTask(t, "gone", "Recreated"))
			if err != nil {
				t.Fatalf("recreate after delete: %v", err)
			}
			if again.Version != 1 || again.Title != "Recreated" {
				t.Fatalf("unexpected recreated task: %#v", again)
			}

			const writers = 8
			var wg sync.WaitGroup
			wg.Add(writers)
			for i := 0; i < writers; i++ {
				go func(i int) {
					defer wg.Done()
					id := fmt.Sprintf("parallel-%d", i)
					if _, err := repo.Put(ctx, newTestTask(t, id, "Parallel")); err != nil {
						t.Errorf("insert %s: %v", id, err)
					}
				}(i)
			}
			wg.Wait()

			list, err := repo.List(ctx, Filter{Search: "parallel"})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != writers {
				t.Fatalf("expected %d inserted tasks, got %d", writers, len(list))
			}
		})
	}
}

func TestDueDateKeepsZoneAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := newTestTask(t, "zoned", "Standup")
			due := time.Date(2025, 3, 8, 9, 0, 0, 0, ny)
			task.DueDate = &due
			task.IsRecurring = true
			task.Recurrence = model.RulePtr(model.RecurrenceDaily)
			if _, err := repo.Put(ctx, task); err != nil {
				t.Fatalf("put: %v", err)
			}

			got, err := repo.Get(ctx, "zoned")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if loc := got.DueDate.Location().String(); loc != "America/New_York" {
				t.Fatalf("expected America/New_York, got %s", loc)
			}
			next, err := model.NextOccurrence(got.DueDate, model.RecurrenceDaily, due)
			if err != nil {
				t.Fatalf("next occurrence: %v", err)
			}
			if want := time.Date(2025, 3, 9, 9, 0, 0, 0, ny); !next.Equal(want) || next.Hour() != 9 {
				t.Fatalf("expected %s, got %s", want, next)
			}

			got.Title = "Standup moved"
			if _, err := repo.Put(ctx, got); err != nil {
				t.Fatalf("update: %v", err)
			}
			again, err := repo.Get(ctx, "zoned")
			if err != nil {
				t.Fatalf("get after update: %v", err)
			}
			if loc := again.DueDate.Location().String(); loc != "America/New_York" {
				t.Fatalf("zone lost on update: %s", loc)
			}
		})
	}
}

func TestListAppliesFilterAndSort(t *testing.T) {
	for name, repo := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d1 := parseRFC3339(t, "2026-03-01T09:00:00Z")
			d2 := parseRFC3339(t, "2026-02-01T09:00:00Z")

			a := newTestTask(t, "a", "Pay rent")
			a.Tags = []string{"Finance"}
			a.DueDate = &d1
			b := newTestTask(t, "b", "Buy groceries")
			b.Priority = model.PriorityHigh
			b.DueDate = &d2
			c := newTestTask(t, "c", "Read book")
			c.Priority = model.PriorityLow
			for _, task := range []model.Task{a, b, c} {
				if _, err := repo.Put(ctx, task); err != nil {
					t.Fatalf("create %s: %v", task.ID, err)
				}
			}

			byDue, err := repo.List(ctx, Filter{SortBy: SortDueDate})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			ids := taskIDs(byDue)
			if diff := cmp.Diff([]string{"b", "a", "c"}, ids); diff != "" {
				t.Fatalf("due sort mismatch (-want +got):\n%s", diff)
			}

			byPriority, _ := repo.List(ctx, Filter{SortBy: SortPriority})
			if diff := cmp.Diff([]string{"b", "a", "c"}, taskIDs(byPriority)); diff != "" {
				t.Fatalf("priority sort mismatch (-want +got):\n%s", diff)
			}

			tagged, _ := repo.List(ctx, Filter{Tag: "finance"})
			if diff := cmp.Diff([]string{"a"}, taskIDs(tagged)); diff != "" {
				t.Fatalf("tag filter mismatch (-want +got):\n%s", diff)
			}

			searched, _ := repo.List(ctx, Filter{Search: "BOOK"})
			if diff := cmp.Diff([]string{"c"}, taskIDs(searched), cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("search mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func taskIDs(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
