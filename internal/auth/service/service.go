package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	jwttoken "corretaje/internal/jwt_token"
	"corretaje/internal/operator/models"
	"corretaje/internal/platform/metrics"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/requestcontext"
)

// Messages returned to login callers. They are part of the API contract.
const (
	MsgInvalidCredentials = "Email o contraseña incorrectos"
	MsgInactiveUser       = "Usuario inactivo"
)

type OperatorStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Operator, error)
	FindByID(ctx context.Context, id domain.OperatorID) (*models.Operator, error)
}

type TokenIssuer interface {
	GenerateAccessToken(subject string) (string, time.Time, error)
	ValidateToken(token string) (*jwttoken.Claims, error)
}

type PasswordVerifier interface {
	Verify(plain, hash string) bool
	VerifyDummy(plain string)
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

// Service authenticates operators and resolves bearer tokens.
type Service struct {
	operators OperatorStore
	tokens    TokenIssuer
	passwords PasswordVerifier
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func New(operators OperatorStore, tokens TokenIssuer, passwords PasswordVerifier, opts ...Option) (*Service, error) {
	if operators == nil {
		return nil, errors.New("operator store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if passwords == nil {
		return nil, errors.New("password verifier is required")
	}
	s := &Service{operators: operators, tokens: tokens, passwords: passwords}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate checks email and password. Unknown emails still pay for one
// bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	op, err := s.operators.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			s.recordLogin("invalid_credentials")
			return nil, dErrors.New(dErrors.CodeInvalidCredentials, MsgInvalidCredentials)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
	}

	if !s.passwords.Verify(password, op.PasswordHash) {
		s.recordLogin("invalid_credentials")
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, MsgInvalidCredentials)
	}
	if !op.IsActive {
		s.recordLogin("inactive")
		return nil, dErrors.New(dErrors.CodeInactiveUser, MsgInactiveUser)
	}
	s.recordLogin("success")
	return op, nil
}

// Login authenticates and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	op, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	access, expiresAt, err := s.tokens.GenerateAccessToken(op.ID.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	s.logAudit(ctx, "operator_logged_in",
		"operator_id", op.ID,
	)
	return &Token{AccessToken: access, TokenType: "bearer", ExpiresAt: expiresAt}, nil
}

// ResolvePrincipal validates a bearer token and loads the operator behind it.
func (s *Service) ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	op, err := s.CurrentOperator(ctx, token)
	if err != nil {
		return nil, err
	}
	return op.Principal(), nil
}

// CurrentOperator is ResolvePrincipal returning the full operator record.
func (s *Service) CurrentOperator(ctx context.Context, token string) (*models.Operator, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	id, err := domain.ParseOperatorID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	op, err := s.operators.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "operator not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operator")
	}
	if !op.IsActive {
		return nil, dErrors.New(dErrors.CodeInactiveUser, MsgInactiveUser)
	}
	return op, nil
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementLogin(outcome)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}
