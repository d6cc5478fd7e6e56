package storage

import (
	"context"
	"errors"

	"github.com/sandeepkv93/todoflow/internal/model"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrConflict = errors.New("storage: version conflict")
)

// Store owns persisted tasks. Writes are guarded by Task.Version: a zero
// version inserts and fails with ErrConflict if the id exists, any other
// version replaces only when it matches the stored one. Returned tasks are
// copies carrying the new version.
type Store interface {
	Get(ctx context.Context, id string) (model.Task, error)
	Put(ctx context.Context, in model.Task) (model.Task, error)
	// Commit applies all writes or none of them.
	Commit(ctx context.Context, writes ...model.Task) ([]model.Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]model.Task, error)
}

func validateWrites(writes []model.Task) error {
	seen := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
		if _, dup := seen[w.ID]; dup {
			return errors.New("storage: duplicate id in commit")
		}
		seen[w.ID] = struct{}{}
	}
	return nil
}
