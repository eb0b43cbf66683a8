package store

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	"corretaje/internal/policy/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
)

// Resolver looks up the rows a movement references. Implementations return
// sentinel.ErrNotFound for missing rows.
type Resolver interface {
	Client(ctx context.Context, id domain.ClientID) (*models.ClientSummary, error)
	Broker(ctx context.Context, number domain.BrokerNumber) (*models.BrokerSummary, error)
	InsuranceType(ctx context.Context, id int64) (*models.InsuranceTypeSummary, error)
	Currency(ctx context.Context, id int64) (*models.CurrencySummary, error)
}

// InMemory keeps movements in a map and joins views through a Resolver,
// enforcing the same foreign keys and unique policy number as the table.
type InMemory struct {
	tx.MemoryGate
	mu       sync.RWMutex
	rows     map[int64]*models.Movement
	nextID   int64
	resolver Resolver
}

func NewInMemory(resolver Resolver) *InMemory {
	return &InMemory{rows: make(map[int64]*models.Movement), nextID: 1, resolver: resolver}
}

func (s *InMemory) Create(ctx context.Context, m *models.Movement) error {
	defer s.BeginWrite(ctx)()
	if err := s.checkReferences(ctx, m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(m); err != nil {
		return err
	}
	m.ID = s.nextID
	s.nextID++
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *InMemory) Update(ctx context.Context, m *models.Movement) error {
	defer s.BeginWrite(ctx)()
	if err := s.checkReferences(ctx, m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUnique(m); err != nil {
		return err
	}
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id int64) error {
	defer s.BeginWrite(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// List returns raw movements ordered by id, optionally restricted to one broker.
func (s *InMemory) List(_ context.Context, broker *domain.BrokerNumber, skip, limit int) ([]*models.Movement, error) {
	s.mu.RLock()
	all := make([]*models.Movement, 0, len(s.rows))
	for _, m := range s.rows {
		if broker != nil && (m.BrokerNumber == nil || *m.BrokerNumber != *broker) {
			continue
		}
		cp := *m
		all = append(all, &cp)
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if skip >= len(all) {
		return []*models.Movement{}, nil
	}
	all = all[skip:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemory) FindView(ctx context.Context, id int64, today domain.Date) (*models.View, error) {
	m, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, m, today)
}

func (s *InMemory) Query(ctx context.Context, q *models.Query) ([]*models.View, error) {
	views, err := s.matching(ctx, q)
	if err != nil {
		return nil, err
	}
	q.SortViews(views)
	return q.Page(views), nil
}

func (s *InMemory) Stats(ctx context.Context, q *models.Query) (*models.Stats, error) {
	views, err := s.matching(ctx, q)
	if err != nil {
		return nil, err
	}
	stats := models.NewStats()
	for _, v := range views {
		stats.Add(v.DurationClass, models.ClassStats{Count: 1, InsuredSum: v.InsuredAmount, PremiumSum: v.Premium})
	}
	return stats, nil
}

func (s *InMemory) CountByClient(_ context.Context, client domain.ClientID) (int, error) {
	return s.count(func(m *models.Movement) bool { return m.ClientID == client }), nil
}

func (s *InMemory) CountByBroker(_ context.Context, broker domain.BrokerNumber) (int, error) {
	return s.count(func(m *models.Movement) bool { return m.BrokerNumber != nil && *m.BrokerNumber == broker }), nil
}

// Snapshot implements tx.Snapshotter. The id counter is not restored,
// matching a database sequence under rollback.
func (s *InMemory) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.rows)
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.rows = saved
		s.mu.Unlock()
	}
}

func (s *InMemory) count(match func(*models.Movement) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.rows {
		if match(m) {
			n++
		}
	}
	return n
}

func (s *InMemory) matching(ctx context.Context, q *models.Query) ([]*models.View, error) {
	s.mu.RLock()
	rows := make([]*models.Movement, 0, len(s.rows))
	for _, m := range s.rows {
		cp := *m
		rows = append(rows, &cp)
	}
	s.mu.RUnlock()

	out := []*models.View{}
	for _, m := range rows {
		v, err := s.view(ctx, m, q.Today)
		if err != nil {
			return nil, err
		}
		if q.Matches(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *InMemory) view(ctx context.Context, m *models.Movement, today domain.Date) (*models.View, error) {
	v := &models.View{Movement: *m}
	client, err := s.resolver.Client(ctx, m.ClientID)
	switch {
	case err == nil:
		v.Client = *client
	case errors.Is(err, sentinel.ErrNotFound):
		v.Client = models.ClientSummary{ID: m.ClientID}
	default:
		return nil, err
	}
	if m.BrokerNumber != nil {
		b, err := s.resolver.Broker(ctx, *m.BrokerNumber)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		v.Broker = b
	}
	it, err := s.resolver.InsuranceType(ctx, m.InsuranceTypeID)
	switch {
	case err == nil:
		v.InsuranceType = *it
	case errors.Is(err, sentinel.ErrNotFound):
		v.InsuranceType = models.InsuranceTypeSummary{ID: m.InsuranceTypeID}
	default:
		return nil, err
	}
	if m.CurrencyID != nil {
		c, err := s.resolver.Currency(ctx, *m.CurrencyID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		v.Currency = c
	}
	v.Derive(today)
	return v, nil
}

func (s *InMemory) checkReferences(ctx context.Context, m *models.Movement) error {
	if err := reference(s.resolver.Client(ctx, m.ClientID)); err != nil {
		return wrapReference(err, "cliente_id")
	}
	if m.BrokerNumber != nil {
		if err := reference(s.resolver.Broker(ctx, *m.BrokerNumber)); err != nil {
			return wrapReference(err, "corredor_numero")
		}
	}
	if err := reference(s.resolver.InsuranceType(ctx, m.InsuranceTypeID)); err != nil {
		return wrapReference(err, "tipo_seguro_id")
	}
	if m.CurrencyID != nil {
		if err := reference(s.resolver.Currency(ctx, *m.CurrencyID)); err != nil {
			return wrapReference(err, "moneda_id")
		}
	}
	return nil
}

func reference[T any](_ T, err error) error {
	return err
}

func wrapReference(err error, field string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return sentinel.InvalidReference(field)
	}
	return err
}

func (s *InMemory) checkUnique(m *models.Movement) error {
	for id, other := range s.rows {
		if id != m.ID && other.PolicyNumber == m.PolicyNumber {
			return sentinel.Conflict("numero_poliza")
		}
	}
	return nil
}
