package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"corretaje/internal/client/models"
	"corretaje/internal/platform/metrics"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/platform/tx"
	"corretaje/pkg/requestcontext"
)

var tracer = otel.Tracer("corretaje/internal/client")

type ClientStore interface {
	Create(ctx context.Context, c *models.Client) error
	Update(ctx context.Context, c *models.Client) error
	Delete(ctx context.Context, id domain.ClientID) error
	FindByID(ctx context.Context, id domain.ClientID) (*models.Client, error)
	FindByIDs(ctx context.Context, ids []domain.ClientID) ([]*models.Client, error)
	FindByEmail(ctx context.Context, email string) (*models.Client, error)
	FindByDocument(ctx context.Context, document string) (*models.Client, error)
	List(ctx context.Context, skip, limit int) ([]*models.Client, error)
}

type LinkStore interface {
	Create(ctx context.Context, l *models.Link) error
	Delete(ctx context.Context, client domain.ClientID, broker domain.BrokerNumber) error
	DeleteByClient(ctx context.Context, client domain.ClientID) error
	ListByClient(ctx context.Context, client domain.ClientID) ([]models.Link, error)
	ListByBroker(ctx context.Context, broker domain.BrokerNumber) ([]models.Link, error)
}

type BrokerLookup interface {
	ExistsNumber(ctx context.Context, number domain.BrokerNumber) (bool, error)
}

// DocumentTypes reports whether a document type id exists.
type DocumentTypes interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// PolicyCounter counts policy movements referencing a client.
type PolicyCounter interface {
	CountByClient(ctx context.Context, client domain.ClientID) (int, error)
}

// Service runs client CRUD and the client onboarding flow.
type Service struct {
	clients  ClientStore
	links    LinkStore
	brokers  BrokerLookup
	tx       tx.Runner
	docTypes DocumentTypes
	policies PolicyCounter
	newID    func() domain.ClientID
	logger   *slog.Logger
	metrics  *metrics.Metrics
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

// WithDocumentTypes makes create and update reject unknown tipo_documento_id values.
func WithDocumentTypes(d DocumentTypes) Option {
	return func(s *Service) {
		s.docTypes = d
	}
}

// WithPolicyCounter makes Delete refuse clients that still have policies.
func WithPolicyCounter(p PolicyCounter) Option {
	return func(s *Service) {
		s.policies = p
	}
}

// WithIDGenerator overrides UUID generation.
func WithIDGenerator(fn func() domain.ClientID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(clients ClientStore, links LinkStore, brokers BrokerLookup, runner tx.Runner, opts ...Option) (*Service, error) {
	if clients == nil {
		return nil, errors.New("client store is required")
	}
	if links == nil {
		return nil, errors.New("link store is required")
	}
	if brokers == nil {
		return nil, errors.New("broker lookup is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{clients: clients, links: links, brokers: brokers, tx: runner, newID: domain.NewClientID}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create inserts a client stamped with the principal as creator. When the
// principal is bound to a broker the client is linked to it in the same
// transaction.
func (s *Service) Create(ctx context.Context, p *domain.Principal, req *models.CreateClientRequest) (result *models.Client, err error) {
	ctx, span := tracer.Start(ctx, "client.Create")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	if p == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	if err := s.checkFree(ctx, s.clients.FindByEmail, req.Email, "email", domain.ClientID{}); err != nil {
		return nil, err
	}
	if err := s.checkFree(ctx, s.clients.FindByDocument, req.Document, "documento", domain.ClientID{}); err != nil {
		return nil, err
	}
	if err := s.checkDocumentType(ctx, req.DocumentTypeID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	c := &models.Client{
		ID:             s.newID(),
		GivenNames:     req.GivenNames,
		Surnames:       req.Surnames,
		DocumentTypeID: req.DocumentTypeID,
		Document:       req.Document,
		Address:        req.Address,
		Locality:       req.Locality,
		Phone:          req.Phone,
		Mobile:         req.Mobile,
		Email:          req.Email,
		BirthDate:      req.BirthDate,
		Observations:   req.Observations,
		CreatedByID:    p.OperatorID,
		ModifiedByID:   p.OperatorID,
		CreatedAt:      now,
		ModifiedAt:     now,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.clients.Create(ctx, c); err != nil {
			return translate(err, "failed to create client")
		}
		if p.BrokerNumber == nil {
			return nil
		}
		link := &models.Link{ClientID: c.ID, BrokerNumber: *p.BrokerNumber, AssignedAt: requestcontext.Today(ctx)}
		if err := s.links.Create(ctx, link); err != nil {
			return translate(err, "failed to link client to broker")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("client.number", c.Number))
	if s.metrics != nil {
		s.metrics.IncrementClientsCreated()
	}
	s.logAudit(ctx, "client_created",
		"client_id", c.ID.String(),
		"client_number", c.Number,
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id domain.ClientID) (*models.Client, error) {
	c, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load client")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]*models.Client, error) {
	out, err := s.clients.List(ctx, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list clients")
	}
	return out, nil
}

// Update applies a partial update and refreshes the modification stamps.
func (s *Service) Update(ctx context.Context, p *domain.Principal, id domain.ClientID, req *models.UpdateClientRequest) (*models.Client, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	c, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load client")
	}
	if req.Email != nil && *req.Email != c.Email {
		if err := s.checkFree(ctx, s.clients.FindByEmail, *req.Email, "email", c.ID); err != nil {
			return nil, err
		}
		c.Email = *req.Email
	}
	if req.Document != nil && *req.Document != c.Document {
		if err := s.checkFree(ctx, s.clients.FindByDocument, *req.Document, "documento", c.ID); err != nil {
			return nil, err
		}
		c.Document = *req.Document
	}
	if req.DocumentTypeID != nil {
		if err := s.checkDocumentType(ctx, req.DocumentTypeID); err != nil {
			return nil, err
		}
		v := *req.DocumentTypeID
		c.DocumentTypeID = &v
	}
	apply(&c.GivenNames, req.GivenNames)
	apply(&c.Surnames, req.Surnames)
	apply(&c.Address, req.Address)
	apply(&c.Locality, req.Locality)
	apply(&c.Phone, req.Phone)
	apply(&c.Mobile, req.Mobile)
	apply(&c.Observations, req.Observations)
	if req.BirthDate != nil {
		c.BirthDate = *req.BirthDate
	}
	c.ModifiedByID = p.OperatorID
	c.ModifiedAt = requestcontext.Now(ctx)

	if err := s.clients.Update(ctx, c); err != nil {
		return nil, translate(err, "failed to update client")
	}
	s.logAudit(ctx, "client_updated", "client_id", c.ID.String())
	return c, nil
}

// Delete removes the client's broker links and then the client. It fails
// with a conflict while policy movements reference the client.
func (s *Service) Delete(ctx context.Context, id domain.ClientID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.clients.FindByID(ctx, id); err != nil {
			return translate(err, "failed to load client")
		}
		if s.policies != nil {
			n, err := s.policies.CountByClient(ctx, id)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check client policies")
			}
			if n > 0 {
				return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("client has %d policy movements", n)).WithField("cliente_id")
			}
		}
		if err := s.links.DeleteByClient(ctx, id); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete client links")
		}
		if err := s.clients.Delete(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrInUse) {
				return dErrors.New(dErrors.CodeConflict, "client still has policy movements").WithField("cliente_id")
			}
			return translate(err, "failed to delete client")
		}
		s.logAudit(ctx, "client_deleted", "client_id", id.String())
		return nil
	})
}

// AddLink attaches a broker to an existing client.
func (s *Service) AddLink(ctx context.Context, id domain.ClientID, req *models.CreateLinkRequest) (*models.Link, error) {
	if _, err := s.clients.FindByID(ctx, id); err != nil {
		return nil, translate(err, "failed to load client")
	}
	ok, err := s.brokers.ExistsNumber(ctx, req.BrokerNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check broker")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("broker %d does not exist", req.BrokerNumber)).WithField("corredor_numero")
	}
	link := &models.Link{ClientID: id, BrokerNumber: req.BrokerNumber, AssignedAt: req.AssignedAt}
	if link.AssignedAt.IsZero() {
		link.AssignedAt = requestcontext.Today(ctx)
	}
	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "client is already linked to this broker").WithField("corredor_numero")
		}
		return nil, translate(err, "failed to link client")
	}
	s.logAudit(ctx, "client_linked",
		"client_id", id.String(),
		"broker_number", req.BrokerNumber,
	)
	return link, nil
}

func (s *Service) ListLinks(ctx context.Context, id domain.ClientID) ([]models.Link, error) {
	if _, err := s.clients.FindByID(ctx, id); err != nil {
		return nil, translate(err, "failed to load client")
	}
	out, err := s.links.ListByClient(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list client brokers")
	}
	return out, nil
}

func (s *Service) RemoveLink(ctx context.Context, id domain.ClientID, broker domain.BrokerNumber) error {
	if err := s.links.Delete(ctx, id, broker); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "client is not linked to this broker")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unlink client")
	}
	s.logAudit(ctx, "client_unlinked",
		"client_id", id.String(),
		"broker_number", broker,
	)
	return nil
}

// ListByBroker returns the clients linked to a broker ordered by client number.
func (s *Service) ListByBroker(ctx context.Context, broker domain.BrokerNumber) ([]*models.Client, error) {
	links, err := s.links.ListByBroker(ctx, broker)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list broker links")
	}
	if len(links) == 0 {
		return []*models.Client{}, nil
	}
	ids := make([]domain.ClientID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ClientID)
	}
	out, err := s.clients.FindByIDs(ctx, ids)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load broker clients")
	}
	return out, nil
}

func (s *Service) checkFree(ctx context.Context, find func(context.Context, string) (*models.Client, error), value, field string, self domain.ClientID) error {
	existing, err := find(ctx, value)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check "+field)
	case existing.ID != self:
		return dErrors.New(dErrors.CodeConflict, "a client with this "+field+" already exists").WithField(field)
	}
	return nil
}

func (s *Service) checkDocumentType(ctx context.Context, id *int64) error {
	if id == nil || s.docTypes == nil {
		return nil
	}
	ok, err := s.docTypes.Exists(ctx, *id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check document type")
	}
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "unknown document type").WithField("tipo_documento_id")
	}
	return nil
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
		return dErrors.New(dErrors.CodeNotFound, "client not found")
	case errors.Is(err, sentinel.ErrConflict):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeConflict, "a client with this "+field+" already exists").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidReference):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeValidation, field+" references a missing record").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeValidation, "client violates a data constraint").WithField(sentinel.FieldOf(err))
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
