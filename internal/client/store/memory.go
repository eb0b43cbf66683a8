package store

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"corretaje/internal/client/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

// InMemory is a map-backed client store. Numbers come from a counter that,
// like the database sequence, never hands out the same value twice.
type InMemory struct {
	tx.MemoryGate
	mu      sync.RWMutex
	clients map[domain.ClientID]*models.Client
	nextNum int64
}

func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[domain.ClientID]*models.Client), nextNum: 1}
}

func (s *InMemory) Create(ctx context.Context, c *models.Client) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return sentinel.Conflict("id")
	}
	if err := s.checkUnique(c); err != nil {
		return err
	}
	c.Number = s.nextNum
	s.nextNum++
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *InMemory) Update(ctx context.Context, c *models.Client) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUnique(c); err != nil {
		return err
	}
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id domain.ClientID) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.clients, id)
	return nil
}

// CountByOperator counts clients created or last modified by the operator.
func (s *InMemory) CountByOperator(_ context.Context, id domain.OperatorID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.clients {
		if c.CreatedByID == id || c.ModifiedByID == id {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) FindByIDs(_ context.Context, ids []domain.ClientID) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.clients[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	sortByNumber(out)
	return out, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Client, error) {
	return s.findFirst(func(c *models.Client) bool { return strings.EqualFold(c.Email, email) })
}

func (s *InMemory) FindByDocument(_ context.Context, document string) (*models.Client, error) {
	return s.findFirst(func(c *models.Client) bool { return c.Document == document })
}

func (s *InMemory) List(_ context.Context, skip, limit int) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		all = append(all, &cp)
	}
	sortByNumber(all)
	if skip >= len(all) {
		return []*models.Client{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Snapshot implements tx.Snapshotter. The number counter is not restored,
// matching a database sequence under rollback.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.clients)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.clients = saved
		s.mu.Unlock()
	}
}

func (s *InMemory) findFirst(match func(*models.Client) bool) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) checkUnique(c *models.Client) error {
	for id, other := range s.clients {
		if id == c.ID {
			continue
		}
		if strings.EqualFold(other.Email, c.Email) {
			return sentinel.Conflict("email")
		}
		if other.Document == c.Document {
			return sentinel.Conflict("documento")
		}
	}
	return nil
}

func sortByNumber(cs []*models.Client) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Number < cs[j].Number })
}

// InMemoryLinks stores client-broker links keyed by the pair.
type InMemoryLinks struct {
	tx.MemoryGate
	mu    sync.RWMutex
	links map[linkKey]models.Link
}

type linkKey struct {
	client domain.ClientID
	broker domain.BrokerNumber
}

func NewInMemoryLinks() *InMemoryLinks {
	return &InMemoryLinks{links: make(map[linkKey]models.Link)}
}

func (s *InMemoryLinks) Create(ctx context.Context, l *models.Link) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{l.ClientID, l.BrokerNumber}
	if _, ok := s.links[key]; ok {
		return sentinel.Conflict("corredor_numero")
	}
	s.links[key] = *l
	return nil
}

func (s *InMemoryLinks) Delete(ctx context.Context, client domain.ClientID, broker domain.BrokerNumber) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{client, broker}
	if _, ok := s.links[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.links, key)
	return nil
}

func (s *InMemoryLinks) DeleteByClient(ctx context.Context, client domain.ClientID) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.links {
		if key.client == client {
			delete(s.links, key)
		}
	}
	return nil
}

func (s *InMemoryLinks) ListByClient(_ context.Context, client domain.ClientID) ([]models.Link, error) {
	return s.filter(func(l models.Link) bool { return l.ClientID == client }), nil
}

func (s *InMemoryLinks) ListByBroker(_ context.Context, broker domain.BrokerNumber) ([]models.Link, error) {
	return s.filter(func(l models.Link) bool { return l.BrokerNumber == broker }), nil
}

func (s *InMemoryLinks) CountByBroker(ctx context.Context, broker domain.BrokerNumber) (int, error) {
	links, err := s.ListByBroker(ctx, broker)
	return len(links), err
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryLinks) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.links)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.links = saved
		s.mu.Unlock()
	}
}

func (s *InMemoryLinks) filter(match func(models.Link) bool) []models.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Link{}
	for _, l := range s.links {
		if match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BrokerNumber != out[j].BrokerNumber {
			return out[i].BrokerNumber < out[j].BrokerNumber
		}
		return out[i].ClientID.String() < out[j].ClientID.String()
	})
	return out
}
