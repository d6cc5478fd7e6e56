package storage

import (
	"context"
	"sync"

	"github.com/sandeepkv93/todoflow/internal/model"
)

// MemoryStore keeps tasks in a map behind one RWMutex. Commits are
// serialized; reads proceed in parallel with each other.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]model.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]model.Task)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, in model.Task) (model.Task, error) {
	out, err := s.Commit(ctx, in)
	if err != nil {
		return model.Task{}, err
	}
	return out[0], nil
}

func (s *MemoryStore) Commit(ctx context.Context, writes ...model.Task) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateWrites(writes); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range writes {
		cur, exists := s.tasks[w.ID]
		switch {
		case w.Version == 0 && exists:
			return nil, ErrConflict
		case w.Version != 0 && !exists:
			return nil, ErrNotFound
		case w.Version != 0 && cur.Version != w.Version:
			return nil, ErrConflict
		}
	}
	out := make([]model.Task, 0, len(writes))
	for _, w := range writes {
		stored := w.Clone()
		stored.Version = w.Version + 1
		s.tasks[w.ID] = stored
		out = append(out, stored.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	all := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		all = append(all, t.Clone())
	}
	s.mu.RUnlock()
	return ApplyFilter(all, filter), nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
