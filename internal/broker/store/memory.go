package store

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"corretaje/internal/broker/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

// InMemory is a map-backed broker store for tests and local runs.
type InMemory struct {
	tx.MemoryGate
	mu      sync.RWMutex
	brokers map[int64]*models.Broker
	nextID  int64
}

func NewInMemory() *InMemory {
	return &InMemory{brokers: make(map[int64]*models.Broker), nextID: 1}
}

func (s *InMemory) Create(ctx context.Context, b *models.Broker) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(b); err != nil {
		return err
	}
	b.ID = s.nextID
	s.nextID++
	s.brokers[b.ID] = clone(b)
	return nil
}

func (s *InMemory) Update(ctx context.Context, b *models.Broker) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brokers[b.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUnique(b); err != nil {
		return err
	}
	s.brokers[b.ID] = clone(b)
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id int64) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brokers[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.brokers, id)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.brokers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(b), nil
}

func (s *InMemory) FindByNumber(_ context.Context, number domain.BrokerNumber) (*models.Broker, error) {
	return s.findFirst(func(b *models.Broker) bool { return b.Number == number })
}

// FindByDocument searches active brokers only.
func (s *InMemory) FindByDocument(_ context.Context, document string) (*models.Broker, error) {
	return s.findFirst(func(b *models.Broker) bool { return b.IsActive() && b.Document == document })
}

// FindByEmail searches active brokers only.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Broker, error) {
	return s.findFirst(func(b *models.Broker) bool { return b.IsActive() && strings.EqualFold(b.Email, email) })
}

func (s *InMemory) ExistsNumber(ctx context.Context, number domain.BrokerNumber) (bool, error) {
	_, err := s.FindByNumber(ctx, number)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (s *InMemory) List(_ context.Context, skip, limit int) ([]*models.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*models.Broker, 0, len(s.brokers))
	for _, b := range s.brokers {
		all = append(all, clone(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if skip >= len(all) {
		return []*models.Broker{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.brokers), nil
}

// LockTable is a no-op; the memory transaction runner already serializes
// units of work.
func (s *InMemory) LockTable(context.Context) error { return nil }

// Snapshot implements tx.Snapshotter.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.brokers)
	next := s.nextID
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.brokers = saved
		s.nextID = next
		s.mu.Unlock()
	}
}

func (s *InMemory) findFirst(match func(*models.Broker) bool) (*models.Broker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Broker
	for _, b := range s.brokers {
		if match(b) && (found == nil || b.ID < found.ID) {
			found = b
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(found), nil
}

func (s *InMemory) checkUnique(b *models.Broker) error {
	for id, other := range s.brokers {
		if id == b.ID {
			continue
		}
		switch {
		case other.Number == b.Number:
			return sentinel.Conflict("numero")
		case strings.EqualFold(other.Email, b.Email):
			return sentinel.Conflict("email")
		case other.Document == b.Document:
			return sentinel.Conflict("documento")
		}
	}
	return nil
}

func clone(b *models.Broker) *models.Broker {
	cp := *b
	if b.BajaDate != nil {
		d := *b.BajaDate
		cp.BajaDate = &d
	}
	return &cp
}
