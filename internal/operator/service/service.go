package service

import (
	"context"
	"errors"
	"log/slog"

	"corretaje/internal/authz"
	"corretaje/internal/operator/models"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/requestcontext"
)

type OperatorStore interface {
	Create(ctx context.Context, op *models.Operator) error
	Update(ctx context.Context, op *models.Operator) error
	Delete(ctx context.Context, id domain.OperatorID) error
	FindByID(ctx context.Context, id domain.OperatorID) (*models.Operator, error)
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
	List(ctx context.Context, skip, limit int) ([]*models.Operator, error)
}

// BrokerLookup confirms that a broker number is registered.
type BrokerLookup interface {
	ExistsNumber(ctx context.Context, number domain.BrokerNumber) (bool, error)
}

// ClientCounter counts clients whose audit stamps name an operator.
type ClientCounter interface {
	CountByOperator(ctx context.Context, id domain.OperatorID) (int, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// Service manages operator accounts.
type Service struct {
	operators OperatorStore
	brokers   BrokerLookup
	hasher    PasswordHasher
	clients   ClientCounter
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClientCounter refuses deletes of operators still stamped on clients.
func WithClientCounter(c ClientCounter) Option {
	return func(s *Service) {
		s.clients = c
	}
}

func New(operators OperatorStore, brokers BrokerLookup, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if operators == nil {
		return nil, errors.New("operator store is required")
	}
	if brokers == nil {
		return nil, errors.New("broker lookup is required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	s := &Service{operators: operators, brokers: brokers, hasher: hasher}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create registers an operator. Setting a commission needs commissions_edit.
func (s *Service) Create(ctx context.Context, p *domain.Principal, req *models.CreateOperatorRequest) (*models.Operator, error) {
	if req.CommissionPercent != nil {
		if err := authz.Require(p, authz.CommissionsEdit); err != nil {
			return nil, err
		}
	}
	if err := s.checkBroker(ctx, req.BrokerNumber); err != nil {
		return nil, err
	}
	if err := s.checkEmailFree(ctx, req.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password could not be hashed").WithField("password")
	}

	now := requestcontext.Now(ctx)
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	op := &models.Operator{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hash,
		GivenName:         req.GivenName,
		Surname:           req.Surname,
		Role:              req.Role,
		IsActive:          active,
		IsSuperuser:       req.IsSuperuser,
		CommissionPercent: req.CommissionPercent,
		BrokerNumber:      req.BrokerNumber,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, translate(err, "failed to create operator")
	}

	s.logAudit(ctx, "operator_created",
		"operator_id", op.ID,
		"role", op.Role,
	)
	return op, nil
}

// Get loads one operator.
func (s *Service) Get(ctx context.Context, id domain.OperatorID) (*models.Operator, error) {
	op, err := s.operators.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load operator")
	}
	return op, nil
}

// List returns operators ordered by id.
func (s *Service) List(ctx context.Context, skip, limit int) ([]*models.Operator, error) {
	ops, err := s.operators.List(ctx, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list operators")
	}
	return ops, nil
}

// Update applies the non-nil fields of req.
func (s *Service) Update(ctx context.Context, p *domain.Principal, id domain.OperatorID, req *models.UpdateOperatorRequest) (*models.Operator, error) {
	if req.CommissionPercent != nil {
		if err := authz.Require(p, authz.CommissionsEdit); err != nil {
			return nil, err
		}
	}
	op, err := s.operators.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load operator")
	}

	if req.Email != nil && *req.Email != op.Email {
		if err := s.checkEmailFree(ctx, *req.Email, op.ID); err != nil {
			return nil, err
		}
		op.Email = *req.Email
	}
	if req.BrokerNumber != nil {
		if err := s.checkBroker(ctx, req.BrokerNumber); err != nil {
			return nil, err
		}
		op.BrokerNumber = req.BrokerNumber
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password could not be hashed").WithField("password")
		}
		op.PasswordHash = hash
	}
	if req.Username != nil {
		op.Username = *req.Username
	}
	if req.GivenName != nil {
		op.GivenName = *req.GivenName
	}
	if req.Surname != nil {
		op.Surname = *req.Surname
	}
	if req.Role != nil {
		op.Role = *req.Role
	}
	if req.IsActive != nil {
		op.IsActive = *req.IsActive
	}
	if req.IsSuperuser != nil {
		op.IsSuperuser = *req.IsSuperuser
	}
	if req.CommissionPercent != nil {
		op.CommissionPercent = req.CommissionPercent
	}
	op.UpdatedAt = requestcontext.Now(ctx)

	if err := s.operators.Update(ctx, op); err != nil {
		return nil, translate(err, "failed to update operator")
	}
	s.logAudit(ctx, "operator_updated",
		"operator_id", op.ID,
	)
	return op, nil
}

// Delete removes an operator. Operators cannot delete their own account.
func (s *Service) Delete(ctx context.Context, p *domain.Principal, id domain.OperatorID) error {
	if p != nil && p.OperatorID == id {
		return dErrors.New(dErrors.CodeForbidden, "operators cannot delete their own account")
	}
	if s.clients != nil {
		n, err := s.clients.CountByOperator(ctx, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check operator references")
		}
		if n > 0 {
			return dErrors.New(dErrors.CodeConflict, "operator is still referenced by client records")
		}
	}
	if err := s.operators.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrInUse) {
			return dErrors.New(dErrors.CodeConflict, "operator is still referenced by client records")
		}
		return translate(err, "failed to delete operator")
	}
	s.logAudit(ctx, "operator_deleted",
		"operator_id", id,
	)
	return nil
}

func (s *Service) checkBroker(ctx context.Context, number *domain.BrokerNumber) error {
	if number == nil {
		return nil
	}
	ok, err := s.brokers.ExistsNumber(ctx, *number)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check broker")
	}
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "corredor_numero does not reference an existing broker").WithField("corredor_numero")
	}
	return nil
}

func (s *Service) checkEmailFree(ctx context.Context, email string, self domain.OperatorID) error {
	existing, err := s.operators.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	case existing.ID != self:
		return dErrors.New(dErrors.CodeConflict, "email already registered").WithField("email")
	}
	return nil
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "operator not found")
	case errors.Is(err, sentinel.ErrConflict):
		field := sentinel.FieldOf(err)
		return dErrors.New(dErrors.CodeConflict, field+" already registered").WithField(field)
	case errors.Is(err, sentinel.ErrInvalidReference):
		return dErrors.New(dErrors.CodeValidation, "corredor_numero does not reference an existing broker").WithField("corredor_numero")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeValidation, "operator violates a data constraint").WithField(sentinel.FieldOf(err))
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
