package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"corretaje/internal/catalog/models"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

// InMemory is a map-backed catalog store for one kind.
type InMemory[E models.Entry[E]] struct {
	tx.MemoryGate
	mu     sync.RWMutex
	rows   map[int64]E
	nextID int64
}

func NewInMemory[E models.Entry[E]]() *InMemory[E] {
	return &InMemory[E]{rows: make(map[int64]E), nextID: 1}
}

func (s *InMemory[E]) Create(ctx context.Context, e E) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(e); err != nil {
		return err
	}
	e.SetKey(s.nextID)
	s.nextID++
	s.rows[e.Key()] = e.Clone()
	return nil
}

func (s *InMemory[E]) Update(ctx context.Context, e E) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[e.Key()]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUnique(e); err != nil {
		return err
	}
	s.rows[e.Key()] = e.Clone()
	return nil
}

func (s *InMemory[E]) FindByID(_ context.Context, id int64) (E, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[id]
	if !ok {
		var zero E
		return zero, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *InMemory[E]) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[id]
	return ok, nil
}

// List orders by id ascending.
func (s *InMemory[E]) List(_ context.Context, skip, limit int) ([]E, error) {
	all := s.sorted()
	if skip >= len(all) {
		return []E{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// FindDefault returns the lowest-id active row flagged as default.
func (s *InMemory[E]) FindDefault(_ context.Context) (E, error) {
	for _, e := range s.sorted() {
		if e.Active() && e.Default() {
			return e, nil
		}
	}
	var zero E
	return zero, sentinel.ErrNotFound
}

// Snapshot implements tx.Snapshotter.
func (s *InMemory[E]) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.rows)
	next := s.nextID
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.rows = saved
		s.nextID = next
		s.mu.Unlock()
	}
}

func (s *InMemory[E]) sorted() []E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]E, 0, len(s.rows))
	for _, e := range s.rows {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b E) int { return cmp.Compare(a.Key(), b.Key()) })
	return out
}

func (s *InMemory[E]) checkUnique(e E) error {
	for id, other := range s.rows {
		if id == e.Key() {
			continue
		}
		theirs := other.Uniques()
		for i, u := range e.Uniques() {
			if u.Value == theirs[i].Value {
				return sentinel.Conflict(u.Field)
			}
		}
	}
	return nil
}
