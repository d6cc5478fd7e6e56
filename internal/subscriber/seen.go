package subscriber

import "sync"

// seenSet remembers the most recent ids up to a fixed capacity. The oldest
// id is forgotten first.
type seenSet struct {
	mu    sync.Mutex
	cap   int
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &seenSet{cap: capacity, ids: make(map[string]struct{}, capacity), order: make([]string, 0, capacity)}
}

func (s *seenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *seenSet) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return
	}
	if len(s.order) < s.cap {
		s.order = append(s.order, id)
	} else {
		delete(s.ids, s.order[s.next])
		s.order[s.next] = id
		s.next = (s.next + 1) % s.cap
	}
	s.ids[id] = struct{}{}
}
