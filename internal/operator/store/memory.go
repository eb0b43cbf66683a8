package store

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"corretaje/internal/operator/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

// InMemory is a map-backed operator store for tests and local runs.
type InMemory struct {
	tx.MemoryGate
	mu        sync.RWMutex
	operators map[domain.OperatorID]*models.Operator
	nextID    domain.OperatorID
}

func NewInMemory() *InMemory {
	return &InMemory{operators: make(map[domain.OperatorID]*models.Operator), nextID: 1}
}

func (s *InMemory) Create(ctx context.Context, op *models.Operator) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(op); err != nil {
		return err
	}
	op.ID = s.nextID
	s.nextID++
	cp := *op
	s.operators[op.ID] = &cp
	return nil
}

func (s *InMemory) Update(ctx context.Context, op *models.Operator) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.operators[op.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUnique(op); err != nil {
		return err
	}
	cp := *op
	s.operators[op.ID] = &cp
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id domain.OperatorID) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.operators[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.operators, id)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.OperatorID) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operators[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *op
	return &cp, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, op := range s.operators {
		if strings.EqualFold(op.Email, email) {
			cp := *op
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, skip, limit int) ([]*models.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*models.Operator, 0, len(s.operators))
	for _, op := range s.operators {
		cp := *op
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, skip, limit), nil
}

func (s *InMemory) CountByBroker(_ context.Context, number domain.BrokerNumber) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, op := range s.operators {
		if op.BrokerNumber != nil && *op.BrokerNumber == number {
			n++
		}
	}
	return n, nil
}

// Snapshot implements tx.Snapshotter.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.operators)
	next := s.nextID
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.operators = saved
		s.nextID = next
		s.mu.Unlock()
	}
}

func (s *InMemory) checkUnique(op *models.Operator) error {
	for id, other := range s.operators {
		if id == op.ID {
			continue
		}
		if strings.EqualFold(other.Email, op.Email) {
			return sentinel.Conflict("email")
		}
		if other.Username == op.Username {
			return sentinel.Conflict("username")
		}
	}
	return nil
}

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
