package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"corretaje/internal/authz"
	"corretaje/internal/broker/models"
	opmodels "corretaje/internal/operator/models"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/requestcontext"
)

// Onboarded is a broker together with its paired operator account.
type Onboarded struct {
	Broker   *models.Broker     `json:"corredor"`
	Operator *opmodels.Operator `json:"usuario"`
}

// CreateWithOperator inserts a broker and its operator account in one
// transaction. Uniqueness pre-checks and password hashing happen before the
// transaction opens.
func (s *Service) CreateWithOperator(ctx context.Context, req *models.CreateWithOperatorRequest) (result *Onboarded, err error) {
	ctx, span := tracer.Start(ctx, "broker.CreateWithOperator")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.Int("broker.number", int(req.Broker.Number)))

	hash, err := s.prepareOnboarding(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err = s.onboard(ctx, req, hash, false)
	if err != nil {
		return nil, err
	}
	s.recordOnboarded()
	s.logAudit(ctx, "broker_onboarded",
		"broker_id", result.Broker.ID,
		"broker_number", result.Broker.Number,
		"operator_id", result.Operator.ID,
	)
	return result, nil
}

// BootstrapAdmin creates the first broker with role admin and a superuser
// operator. It is refused once any broker exists.
func (s *Service) BootstrapAdmin(ctx context.Context, req *models.BootstrapRequest) (result *Onboarded, err error) {
	ctx, span := tracer.Start(ctx, "broker.BootstrapAdmin")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if n, err := s.brokers.Count(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count brokers")
	} else if n > 0 {
		return nil, errBootstrapClosed
	}

	onboarding := req.AsOnboarding()
	hash, err := s.hasher.Hash(onboarding.Operator.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "password could not be hashed").WithField("password")
	}
	result, err = s.onboard(ctx, onboarding, hash, true)
	if err != nil {
		return nil, err
	}
	s.recordOnboarded()
	s.logAudit(ctx, "admin_bootstrapped",
		"broker_id", result.Broker.ID,
		"broker_number", result.Broker.Number,
		"operator_id", result.Operator.ID,
	)
	return result, nil
}

var errBootstrapClosed = dErrors.New(dErrors.CodeValidation, "admin bootstrap is only allowed while no brokers exist")

func (s *Service) prepareOnboarding(ctx context.Context, req *models.CreateWithOperatorRequest) (string, error) {
	if req.Operator.CommissionPercent != nil {
		if err := authz.Require(requestcontext.Principal(ctx), authz.CommissionsEdit); err != nil {
			return "", err
		}
	}
	if err := s.precheckBroker(ctx, &req.Broker); err != nil {
		return "", err
	}
	if _, err := s.operators.FindByEmail(ctx, req.Operator.Email); err == nil {
		return "", dErrors.New(dErrors.CodeConflict, "an operator with this email already exists").WithField("usuario.email")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check operator email")
	}

	hash, err := s.hasher.Hash(req.Operator.Password)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "password could not be hashed").WithField("usuario.password")
	}
	return hash, nil
}

// onboard runs the two inserts as one unit. A failing operator insert rolls
// the broker back and is reported as a validation error.
func (s *Service) onboard(ctx context.Context, req *models.CreateWithOperatorRequest, hash string, bootstrap bool) (*Onboarded, error) {
	var out Onboarded
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if bootstrap {
			if err := s.brokers.LockTable(ctx); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock brokers")
			}
			n, err := s.brokers.Count(ctx)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count brokers")
			}
			if n > 0 {
				return errBootstrapClosed
			}
		}

		b := s.newBroker(ctx, &req.Broker)
		if err := s.brokers.Create(ctx, b); err != nil {
			return translate(err, "failed to create broker")
		}

		number := b.Number
		role := domain.RoleBroker
		if bootstrap {
			role = domain.RoleAdmin
		}
		op := &opmodels.Operator{
			Username:          req.Operator.Username,
			Email:             req.Operator.Email,
			PasswordHash:      hash,
			GivenName:         req.Operator.GivenName,
			Surname:           req.Operator.Surname,
			Role:              role,
			IsActive:          true,
			IsSuperuser:       bootstrap,
			CommissionPercent: req.Operator.CommissionPercent,
			BrokerNumber:      &number,
			CreatedAt:         b.CreatedAt,
			UpdatedAt:         b.CreatedAt,
		}
		if err := s.operators.Create(ctx, op); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "operator insert failed during broker onboarding",
					"error", err,
					"broker_number", b.Number,
				)
			}
			return dErrors.Wrap(err, dErrors.CodeValidation,
				"the operator account could not be created and the broker was not saved; check that the operator username and email are not already in use").
				WithField("usuario." + operatorField(err))
		}
		out = Onboarded{Broker: b, Operator: op}
		return nil
	})
	if err != nil {
		if _, ok := dErrors.As(err); !ok {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to onboard broker")
		}
		return nil, err
	}
	return &out, nil
}

func operatorField(err error) string {
	if f := sentinel.FieldOf(err); f != "" {
		return f
	}
	return "username"
}

func (s *Service) recordOnboarded() {
	if s.metrics != nil {
		s.metrics.IncrementBrokersOnboarded()
	}
}
