package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"corretaje/internal/auth/password"
	"corretaje/internal/broker/models"
	"corretaje/internal/broker/store"
	opstore "corretaje/internal/operator/store"
	"corretaje/internal/platform/metrics"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/tx"
	"corretaje/pkg/testutil"
)

type fixedCount int

func (f fixedCount) CountByBroker(context.Context, domain.BrokerNumber) (int, error) {
	return int(f), nil
}

type ServiceSuite struct {
	suite.Suite
	brokers   *store.InMemory
	operators *opstore.InMemory
	hasher    *password.Hasher
	metrics   *metrics.Metrics
	service   *Service
	admin     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.brokers = store.NewInMemory()
	s.operators = opstore.NewInMemory()
	s.hasher = password.NewHasher(password.MinCost)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = s.newService()
	s.admin = testutil.ContextAs(testutil.AdminPrincipal(), time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	runner := tx.NewMemoryRunner(s.brokers, s.operators)
	opts = append([]Option{WithMetrics(s.metrics), WithReferenceCheck("usuarios", s.operators)}, opts...)
	svc, err := New(s.brokers, s.operators, s.hasher, runner, opts...)
	s.Require().NoError(err)
	return svc
}

func brokerReq(number domain.BrokerNumber, email, document string) *models.CreateBrokerRequest {
	req := &models.CreateBrokerRequest{Number: number, GivenNames: "Laura", Surnames: "Núñez", Email: email, Document: document}
	req.Normalize()
	return req
}

func onboardingReq(number domain.BrokerNumber, email, document string) *models.CreateWithOperatorRequest {
	req := &models.CreateWithOperatorRequest{
		Broker:   *brokerReq(number, email, document),
		Operator: models.OperatorFields{Password: "s3cret-pass"},
	}
	req.Normalize()
	return req
}

func bootstrapReq() *models.BootstrapRequest {
	req := &models.BootstrapRequest{GivenNames: "Root", Surnames: "Admin", Document: "1", Email: "root@x.com", Password: "changeme1"}
	req.Normalize()
	return req
}

func (s *ServiceSuite) TestNumberBoundaries() {
	for _, tc := range []struct {
		number domain.BrokerNumber
		ok     bool
	}{{999, false}, {1000, true}, {9999, true}, {10000, false}} {
		_, err := s.service.Create(s.admin, brokerReq(tc.number, tc.number.String()+"@x.com", tc.number.String()))
		if tc.ok {
			s.NoError(err, tc.number)
		} else {
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), tc.number)
		}
	}
}

func (s *ServiceSuite) TestCreate() {
	b, err := s.service.Create(s.admin, brokerReq(4554, "laura@x.com", "123"))
	s.Require().NoError(err)
	s.Equal(domain.NewDate(2025, time.March, 3), b.AltaDate)
	s.Equal(models.RoleBroker, b.Role)
	s.True(b.IsActive())

	for field, req := range map[string]*models.CreateBrokerRequest{
		"numero":    brokerReq(4554, "other@x.com", "999"),
		"email":     brokerReq(4555, "LAURA@x.com", "999"),
		"documento": brokerReq(4556, "other@x.com", "123"),
	} {
		_, err := s.service.Create(s.admin, req)
		de, ok := dErrors.As(err)
		s.Require().True(ok, field)
		s.Equal(dErrors.CodeConflict, de.Code, field)
		s.Equal(field, de.Field)
	}
}

func (s *ServiceSuite) TestUpdate() {
	b, err := s.service.Create(s.admin, brokerReq(4554, "laura@x.com", "123"))
	s.Require().NoError(err)

	s.Run("number is immutable", func() {
		n := domain.BrokerNumber(4555)
		_, err := s.service.Update(s.admin, b.ID, &models.UpdateBrokerRequest{Number: &n})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("baja date deactivates and can be cleared", func() {
		baja := domain.NewDate(2025, time.December, 31)
		out, err := s.service.Update(s.admin, b.ID, &models.UpdateBrokerRequest{BajaDate: &baja})
		s.Require().NoError(err)
		s.False(out.IsActive())

		_, err = s.service.FindByEmail(s.admin, "laura@x.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "inactive brokers are not found by email")

		cleared := domain.Date{}
		out, err = s.service.Update(s.admin, b.ID, &models.UpdateBrokerRequest{BajaDate: &cleared})
		s.Require().NoError(err)
		s.True(out.IsActive())
	})

	s.Run("baja before alta is rejected", func() {
		baja := domain.NewDate(2024, time.January, 1)
		_, err := s.service.Update(s.admin, b.ID, &models.UpdateBrokerRequest{BajaDate: &baja})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestDelete() {
	s.Run("referenced broker conflicts", func() {
		out, err := s.service.CreateWithOperator(s.admin, onboardingReq(4554, "laura@x.com", "123"))
		s.Require().NoError(err)
		err = s.service.Delete(s.admin, out.Broker.ID)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeConflict, de.Code)
		s.Equal("numero", de.Field)
	})

	s.Run("extra reference checks are consulted", func() {
		svc := s.newService(WithReferenceCheck("movimientos_vigencia", fixedCount(3)))
		b, err := svc.Create(s.admin, brokerReq(4600, "free@x.com", "777"))
		s.Require().NoError(err)
		s.True(dErrors.HasCode(svc.Delete(s.admin, b.ID), dErrors.CodeConflict))
	})

	s.Run("unreferenced broker is removed", func() {
		b, err := s.service.Create(s.admin, brokerReq(4700, "gone@x.com", "888"))
		s.Require().NoError(err)
		s.Require().NoError(s.service.Delete(s.admin, b.ID))
		_, err = s.service.Get(s.admin, b.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCreateWithOperator() {
	out, err := s.service.CreateWithOperator(s.admin, onboardingReq(4554, "laura@x.com", "123"))
	s.Require().NoError(err)
	s.Require().NotNil(out.Operator.BrokerNumber)
	s.Equal(out.Broker.Number, *out.Operator.BrokerNumber)
	s.Equal(domain.RoleBroker, out.Operator.Role)
	s.Equal("laura@x.com", out.Operator.Username)
	s.True(s.hasher.Verify("s3cret-pass", out.Operator.PasswordHash))
	s.Equal(float64(1), promtest.ToFloat64(s.metrics.BrokersOnboarded))

	s.Run("operator email taken is reported before any insert", func() {
		req := onboardingReq(4555, "other@x.com", "456")
		req.Operator.Email = "laura@x.com"
		_, err := s.service.CreateWithOperator(s.admin, req)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("usuario.email", de.Field)
	})

	s.Run("operator insert failure rolls the broker back", func() {
		req := onboardingReq(4556, "third@x.com", "789")
		req.Operator.Username = "laura@x.com"
		_, err := s.service.CreateWithOperator(s.admin, req)
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeValidation, de.Code)
		s.Equal("usuario.username", de.Field)

		_, err = s.brokers.FindByNumber(context.Background(), 4556)
		s.Error(err, "broker insert must be rolled back")
	})

	s.Run("setting a commission needs commissions_edit", func() {
		req := onboardingReq(4557, "fourth@x.com", "000")
		pct := decimal.RequireFromString("12.5")
		req.Operator.CommissionPercent = &pct
		broker := testutil.ContextAs(testutil.BrokerPrincipal(2, 4554), time.Now())
		_, err := s.service.CreateWithOperator(broker, req)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestBootstrapAdmin() {
	anon := context.Background()

	out, err := s.service.BootstrapAdmin(anon, bootstrapReq())
	s.Require().NoError(err)
	s.Equal(models.DefaultBootstrapNumber, out.Broker.Number)
	s.Equal(models.RoleAdmin, out.Broker.Role)
	s.Equal(domain.RoleAdmin, out.Operator.Role)
	s.True(out.Operator.IsSuperuser)
	s.Equal("root@x.com", out.Operator.Email)

	_, err = s.service.BootstrapAdmin(anon, bootstrapReq())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "second bootstrap is refused")

	found, err := s.operators.FindByEmail(anon, "root@x.com")
	s.Require().NoError(err)
	s.Equal(out.Operator.ID, found.ID)
}
