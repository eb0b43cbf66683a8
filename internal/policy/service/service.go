package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"corretaje/internal/authz"
	"corretaje/internal/platform/metrics"
	"corretaje/internal/policy/models"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/requestcontext"
)

var tracer = otel.Tracer("corretaje/internal/policy")

type Store interface {
	Create(ctx context.Context, m *models.Movement) error
	Update(ctx context.Context, m *models.Movement) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*models.Movement, error)
	List(ctx context.Context, broker *domain.BrokerNumber, skip, limit int) ([]*models.Movement, error)
	FindView(ctx context.Context, id int64, today domain.Date) (*models.View, error)
	Query(ctx context.Context, q *models.Query) ([]*models.View, error)
	Stats(ctx context.Context, q *models.Query) (*models.Stats, error)
}

// Service owns policy movement writes and the policy query engine. Every
// operation applies the broker scope of the calling principal.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("movement store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates and inserts a movement. A broker principal that names
// no broker gets its own number; naming another broker is forbidden.
func (s *Service) Create(ctx context.Context, p *domain.Principal, req *models.CreateMovementRequest) (*models.Movement, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	m := req.Movement()
	if p.IsBroker() && m.BrokerNumber == nil && p.BrokerNumber != nil {
		own := *p.BrokerNumber
		m.BrokerNumber = &own
	}
	if err := authz.CheckRecord(p, m.BrokerNumber); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	m.CreatedAt, m.UpdatedAt = now, now
	if err := s.store.Create(ctx, m); err != nil {
		return nil, translate(err, "failed to create policy movement")
	}
	s.logAudit(ctx, "policy_created",
		"movement_id", m.ID,
		"policy_number", m.PolicyNumber,
	)
	return m, nil
}

// Get returns the joined view of one movement.
func (s *Service) Get(ctx context.Context, p *domain.Principal, id int64) (*models.View, error) {
	v, err := s.store.FindView(ctx, id, requestcontext.Today(ctx))
	if err != nil {
		return nil, hideMissing(p, translate(err, "failed to load policy movement"))
	}
	if err := authz.CheckRecord(p, v.BrokerNumber); err != nil {
		return nil, err
	}
	return v, nil
}

// GetRaw returns one movement without joins.
func (s *Service) GetRaw(ctx context.Context, p *domain.Principal, id int64) (*models.Movement, error) {
	return s.load(ctx, p, id)
}

// Update applies a partial update and re-validates the whole record.
// Brokers cannot move a movement to another broker.
func (s *Service) Update(ctx context.Context, p *domain.Principal, id int64, req *models.UpdateMovementRequest) (*models.Movement, error) {
	m, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	req.Apply(m)
	if err := authz.CheckRecord(p, m.BrokerNumber); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, m); err != nil {
		return nil, translate(err, "failed to update policy movement")
	}
	s.logAudit(ctx, "policy_updated", "movement_id", m.ID)
	return m, nil
}

func (s *Service) Delete(ctx context.Context, p *domain.Principal, id int64) error {
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err, "failed to delete policy movement")
	}
	s.logAudit(ctx, "policy_deleted", "movement_id", id)
	return nil
}

// ListRaw pages through movements by id, scoped to the broker for broker principals.
func (s *Service) ListRaw(ctx context.Context, p *domain.Principal, skip, limit int) ([]*models.Movement, error) {
	scope := authz.ScopeList(p, nil)
	if scope.Empty {
		return []*models.Movement{}, nil
	}
	out, err := s.store.List(ctx, scope.Number, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policy movements")
	}
	return out, nil
}

// List runs the policy query engine.
func (s *Service) List(ctx context.Context, p *domain.Principal, f models.Filter) (result []*models.View, err error) {
	ctx, span := tracer.Start(ctx, "policy.List")
	defer s.finish(span, "list", time.Now(), &err)

	q, empty, err := s.resolve(ctx, p, f)
	if err != nil || empty {
		return []*models.View{}, err
	}
	out, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query policies")
	}
	span.SetAttributes(attribute.Int("policy.results", len(out)))
	return out, nil
}

// Stats aggregates the movements matching f per duration class.
func (s *Service) Stats(ctx context.Context, p *domain.Principal, f models.Filter) (result *models.Stats, err error) {
	ctx, span := tracer.Start(ctx, "policy.Stats")
	defer s.finish(span, "stats", time.Now(), &err)

	q, empty, err := s.resolve(ctx, p, f)
	if err != nil {
		return nil, err
	}
	if empty {
		return models.NewStats(), nil
	}
	out, err := s.store.Stats(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate policies")
	}
	return out, nil
}

func (s *Service) resolve(ctx context.Context, p *domain.Principal, f models.Filter) (*models.Query, bool, error) {
	if p == nil {
		return nil, false, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	scope := authz.ScopeList(p, f.BrokerNumber)
	f.BrokerNumber = scope.Number
	q, err := f.Resolve(requestcontext.Today(ctx))
	if err != nil {
		return nil, false, err
	}
	return q, scope.Empty, nil
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
	if s.metrics != nil {
		s.metrics.ObservePolicyQuery(op, start)
	}
}

func (s *Service) load(ctx context.Context, p *domain.Principal, id int64) (*models.Movement, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, hideMissing(p, translate(err, "failed to load policy movement"))
	}
	if err := authz.CheckRecord(p, m.BrokerNumber); err != nil {
		return nil, err
	}
	return m, nil
}

// hideMissing answers a broker's lookup of an absent movement the same way
// as one owned by another broker.
func hideMissing(p *domain.Principal, err error) error {
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	if forbidden := authz.CheckRecord(p, nil); forbidden != nil {
		return forbidden
	}
	return err
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "policy movement not found")
	case errors.Is(err, sentinel.ErrConflict):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeConflict, "a policy movement with this "+field+" already exists").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidReference):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeValidation, field+" references a missing record").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeValidation, "policy movement violates a data constraint").WithField(sentinel.FieldOf(err))
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if actor := requestcontext.OperatorID(ctx); actor != 0 {
		attributes = append(attributes, "actor_id", actor)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
