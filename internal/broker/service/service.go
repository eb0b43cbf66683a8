package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"corretaje/internal/broker/models"
	opmodels "corretaje/internal/operator/models"
	"corretaje/internal/platform/metrics"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
	"corretaje/pkg/requestcontext"
)

var tracer = otel.Tracer("corretaje/internal/broker")

type BrokerStore interface {
	Create(ctx context.Context, b *models.Broker) error
	Update(ctx context.Context, b *models.Broker) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*models.Broker, error)
	FindByNumber(ctx context.Context, number domain.BrokerNumber) (*models.Broker, error)
	FindByDocument(ctx context.Context, document string) (*models.Broker, error)
	FindByEmail(ctx context.Context, email string) (*models.Broker, error)
	List(ctx context.Context, skip, limit int) ([]*models.Broker, error)
	Count(ctx context.Context) (int, error)
	LockTable(ctx context.Context) error
}

// OperatorStore is the slice of the operator store onboarding writes to.
type OperatorStore interface {
	Create(ctx context.Context, op *opmodels.Operator) error
	FindByEmail(ctx context.Context, email string) (*opmodels.Operator, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// ReferenceCounter counts rows pointing at a broker number.
type ReferenceCounter interface {
	CountByBroker(ctx context.Context, number domain.BrokerNumber) (int, error)
}

type reference struct {
	name    string
	counter ReferenceCounter
}

// Service manages brokers and runs the broker onboarding flows.
type Service struct {
	brokers    BrokerStore
	operators  OperatorStore
	hasher     PasswordHasher
	tx         tx.Runner
	references []reference
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

// WithReferenceCheck makes Delete refuse while counter reports rows for the
// broker. name appears in the conflict message.
func WithReferenceCheck(name string, counter ReferenceCounter) Option {
	return func(s *Service) {
		s.references = append(s.references, reference{name: name, counter: counter})
	}
}

func New(brokers BrokerStore, operators OperatorStore, hasher PasswordHasher, runner tx.Runner, opts ...Option) (*Service, error) {
	if brokers == nil {
		return nil, errors.New("broker store is required")
	}
	if operators == nil {
		return nil, errors.New("operator store is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{brokers: brokers, operators: operators, hasher: hasher, tx: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create registers a broker. fecha_alta defaults to today.
func (s *Service) Create(ctx context.Context, req *models.CreateBrokerRequest) (*models.Broker, error) {
	if err := s.precheckBroker(ctx, req); err != nil {
		return nil, err
	}
	b := s.newBroker(ctx, req)
	if err := s.brokers.Create(ctx, b); err != nil {
		return nil, translate(err, "failed to create broker")
	}
	s.logAudit(ctx, "broker_created",
		"broker_id", b.ID,
		"broker_number", b.Number,
	)
	return b, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Broker, error) {
	b, err := s.brokers.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load broker")
	}
	return b, nil
}

func (s *Service) GetByNumber(ctx context.Context, number domain.BrokerNumber) (*models.Broker, error) {
	b, err := s.brokers.FindByNumber(ctx, number)
	if err != nil {
		return nil, translate(err, "failed to load broker")
	}
	return b, nil
}

// FindByDocument looks up an active broker by document number.
func (s *Service) FindByDocument(ctx context.Context, document string) (*models.Broker, error) {
	b, err := s.brokers.FindByDocument(ctx, document)
	if err != nil {
		return nil, translate(err, "failed to load broker")
	}
	return b, nil
}

// FindByEmail looks up an active broker by email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*models.Broker, error) {
	b, err := s.brokers.FindByEmail(ctx, email)
	if err != nil {
		return nil, translate(err, "failed to load broker")
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]*models.Broker, error) {
	out, err := s.brokers.List(ctx, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list brokers")
	}
	return out, nil
}

// Update applies a partial update. The broker number is immutable.
func (s *Service) Update(ctx context.Context, id int64, req *models.UpdateBrokerRequest) (*models.Broker, error) {
	b, err := s.brokers.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load broker")
	}
	if req.Number != nil && *req.Number != b.Number {
		return nil, dErrors.New(dErrors.CodeValidation, "numero cannot be changed").WithField("numero")
	}

	if req.Email != nil && *req.Email != b.Email {
		if err := s.checkFree(ctx, s.brokers.FindByEmail, *req.Email, "email", b.ID); err != nil {
			return nil, err
		}
		b.Email = *req.Email
	}
	if req.Document != nil && *req.Document != b.Document {
		if err := s.checkFree(ctx, s.brokers.FindByDocument, *req.Document, "documento", b.ID); err != nil {
			return nil, err
		}
		b.Document = *req.Document
	}
	apply(&b.GivenNames, req.GivenNames)
	apply(&b.Surnames, req.Surnames)
	apply(&b.Address, req.Address)
	apply(&b.Locality, req.Locality)
	apply(&b.Phone, req.Phone)
	apply(&b.Mobile, req.Mobile)
	apply(&b.Observations, req.Observations)
	apply(&b.License, req.License)
	apply(&b.Specialization, req.Specialization)
	if req.Role != nil {
		b.Role = *req.Role
	}
	if req.AltaDate != nil {
		b.AltaDate = *req.AltaDate
	}
	if req.BajaDate != nil {
		if req.BajaDate.IsZero() {
			b.BajaDate = nil
		} else {
			if req.BajaDate.Before(b.AltaDate) {
				return nil, dErrors.New(dErrors.CodeValidation, "fecha_baja must not precede fecha_alta").WithField("fecha_baja")
			}
			d := *req.BajaDate
			b.BajaDate = &d
		}
	}
	b.UpdatedAt = requestcontext.Now(ctx)

	if err := s.brokers.Update(ctx, b); err != nil {
		return nil, translate(err, "failed to update broker")
	}
	s.logAudit(ctx, "broker_updated",
		"broker_id", b.ID,
		"broker_number", b.Number,
	)
	return b, nil
}

// Delete removes an unreferenced broker.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.brokers.FindByID(ctx, id)
		if err != nil {
			return translate(err, "failed to load broker")
		}
		for _, ref := range s.references {
			n, err := ref.counter.CountByBroker(ctx, b.Number)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check broker references")
			}
			if n > 0 {
				return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("broker %d is still referenced by %s", b.Number, ref.name)).WithField("numero")
			}
		}
		if err := s.brokers.Delete(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrInUse) {
				return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("broker %d is still referenced", b.Number)).WithField("numero")
			}
			return translate(err, "failed to delete broker")
		}
		s.logAudit(ctx, "broker_deleted",
			"broker_id", id,
			"broker_number", b.Number,
		)
		return nil
	})
}

func (s *Service) precheckBroker(ctx context.Context, req *models.CreateBrokerRequest) error {
	if err := req.Number.Validate(); err != nil {
		return err
	}
	if _, err := s.brokers.FindByNumber(ctx, req.Number); err == nil {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("broker number %d is already assigned", req.Number)).WithField("numero")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check broker number")
	}
	if err := s.checkFree(ctx, s.brokers.FindByEmail, req.Email, "email", 0); err != nil {
		return err
	}
	return s.checkFree(ctx, s.brokers.FindByDocument, req.Document, "documento", 0)
}

func (s *Service) checkFree(ctx context.Context, find func(context.Context, string) (*models.Broker, error), value, field string, self int64) error {
	existing, err := find(ctx, value)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check "+field)
	case existing.ID != self:
		return dErrors.New(dErrors.CodeConflict, "a broker with this "+field+" already exists").WithField(field)
	}
	return nil
}

func (s *Service) newBroker(ctx context.Context, req *models.CreateBrokerRequest) *models.Broker {
	now := requestcontext.Now(ctx)
	alta := req.AltaDate
	if alta.IsZero() {
		alta = requestcontext.Today(ctx)
	}
	return &models.Broker{
		Number:         req.Number,
		Role:           req.Role,
		GivenNames:     req.GivenNames,
		Surnames:       req.Surnames,
		Document:       req.Document,
		Address:        req.Address,
		Locality:       req.Locality,
		Phone:          req.Phone,
		Mobile:         req.Mobile,
		Email:          req.Email,
		Observations:   req.Observations,
		License:        req.License,
		Specialization: req.Specialization,
		AltaDate:       alta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func translate(err error, msg string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "broker not found")
	case errors.Is(err, sentinel.ErrConflict):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeConflict, "a broker with this "+field+" already exists").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeValidation, "broker violates a data constraint").WithField(sentinel.FieldOf(err))
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
