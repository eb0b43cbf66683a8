package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks OperatorStore,TokenIssuer,PasswordVerifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"corretaje/internal/auth/service/mocks"
	jwttoken "corretaje/internal/jwt_token"
	"corretaje/internal/operator/models"
	"corretaje/internal/platform/metrics"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	operators *mocks.MockOperatorStore
	tokens    *mocks.MockTokenIssuer
	passwords *mocks.MockPasswordVerifier
	metrics   *metrics.Metrics
	service   *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.operators = mocks.NewMockOperatorStore(s.ctrl)
	s.tokens = mocks.NewMockTokenIssuer(s.ctrl)
	s.passwords = mocks.NewMockPasswordVerifier(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	svc, err := New(s.operators, s.tokens, s.passwords, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.service = svc
	s.ctx = context.Background()
}

func (s *ServiceSuite) operator(active bool) *models.Operator {
	n := domain.BrokerNumber(4554)
	return &models.Operator{
		ID:           7,
		Email:        "b@x.com",
		PasswordHash: "$2a$10$hash",
		Role:         domain.RoleBroker,
		IsActive:     active,
		BrokerNumber: &n,
	}
}

func (s *ServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.tokens, s.passwords)
	s.Error(err)
	_, err = New(s.operators, nil, s.passwords)
	s.Error(err)
	_, err = New(s.operators, s.tokens, nil)
	s.Error(err)
}

func (s *ServiceSuite) TestLogin() {
	s.Run("issues a bearer token for valid credentials", func() {
		op := s.operator(true)
		exp := time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)
		s.operators.EXPECT().FindByEmail(gomock.Any(), "b@x.com").Return(op, nil)
		s.passwords.EXPECT().Verify("pw", op.PasswordHash).Return(true)
		s.tokens.EXPECT().GenerateAccessToken("7").Return("signed", exp, nil)

		token, err := s.service.Login(s.ctx, "  B@X.com ", "pw")
		s.Require().NoError(err)
		s.Equal("signed", token.AccessToken)
		s.Equal("bearer", token.TokenType)
		s.Equal(exp, token.ExpiresAt)
	})

	s.Run("unknown email burns a dummy comparison", func() {
		s.operators.EXPECT().FindByEmail(gomock.Any(), "nobody@x.com").Return(nil, sentinel.ErrNotFound)
		s.passwords.EXPECT().VerifyDummy("pw")

		_, err := s.service.Login(s.ctx, "nobody@x.com", "pw")
		s.ErrorIs(err, dErrors.New(dErrors.CodeInvalidCredentials, MsgInvalidCredentials))
	})

	s.Run("wrong password", func() {
		op := s.operator(true)
		s.operators.EXPECT().FindByEmail(gomock.Any(), "b@x.com").Return(op, nil)
		s.passwords.EXPECT().Verify("nope", op.PasswordHash).Return(false)

		_, err := s.service.Login(s.ctx, "b@x.com", "nope")
		s.ErrorIs(err, dErrors.New(dErrors.CodeInvalidCredentials, MsgInvalidCredentials))
	})

	s.Run("inactive operator with the right password", func() {
		op := s.operator(false)
		s.operators.EXPECT().FindByEmail(gomock.Any(), "b@x.com").Return(op, nil)
		s.passwords.EXPECT().Verify("pw", op.PasswordHash).Return(true)

		_, err := s.service.Login(s.ctx, "b@x.com", "pw")
		s.ErrorIs(err, dErrors.New(dErrors.CodeInactiveUser, MsgInactiveUser))
	})

	s.Run("store failure is internal", func() {
		s.operators.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		_, err := s.service.Login(s.ctx, "b@x.com", "pw")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues("success")))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues("invalid_credentials")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginAttempts.WithLabelValues("inactive")))
}

func (s *ServiceSuite) TestResolvePrincipal() {
	claims := func(sub string) *jwttoken.Claims {
		return &jwttoken.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
	}

	s.Run("returns the operator's principal", func() {
		s.tokens.EXPECT().ValidateToken("tok").Return(claims("7"), nil)
		s.operators.EXPECT().FindByID(gomock.Any(), domain.OperatorID(7)).Return(s.operator(true), nil)

		p, err := s.service.ResolvePrincipal(s.ctx, "tok")
		s.Require().NoError(err)
		s.Equal(domain.OperatorID(7), p.OperatorID)
		s.Equal(domain.RoleBroker, p.Role)
		s.Require().NotNil(p.BrokerNumber)
		s.Equal(domain.BrokerNumber(4554), *p.BrokerNumber)
	})

	s.Run("token errors pass through", func() {
		expired := dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		s.tokens.EXPECT().ValidateToken("old").Return(nil, expired)

		_, err := s.service.ResolvePrincipal(s.ctx, "old")
		s.ErrorIs(err, expired)
	})

	s.Run("non-numeric subject is unauthorized", func() {
		s.tokens.EXPECT().ValidateToken("tok").Return(claims("abc"), nil)

		_, err := s.service.ResolvePrincipal(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deleted operator is unauthorized", func() {
		s.tokens.EXPECT().ValidateToken("tok").Return(claims("7"), nil)
		s.operators.EXPECT().FindByID(gomock.Any(), domain.OperatorID(7)).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.ResolvePrincipal(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("deactivated operator is inactive", func() {
		s.tokens.EXPECT().ValidateToken("tok").Return(claims("7"), nil)
		s.operators.EXPECT().FindByID(gomock.Any(), domain.OperatorID(7)).Return(s.operator(false), nil)

		_, err := s.service.ResolvePrincipal(s.ctx, "tok")
		s.True(dErrors.HasCode(err, dErrors.CodeInactiveUser))
	})
}
