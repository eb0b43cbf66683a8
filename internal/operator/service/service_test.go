package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"corretaje/internal/auth/password"
	"corretaje/internal/operator/models"
	"corretaje/internal/operator/store"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/testutil"
)

type knownBrokers map[domain.BrokerNumber]bool

func (k knownBrokers) ExistsNumber(_ context.Context, n domain.BrokerNumber) (bool, error) {
	return k[n], nil
}

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
	admin   context.Context
	hasher  *password.Hasher
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.hasher = password.NewHasher(password.MinCost)
	svc, err := New(s.store, knownBrokers{4554: true}, s.hasher)
	s.Require().NoError(err)
	s.service = svc
	s.admin = testutil.ContextAs(testutil.AdminPrincipal(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
}

func (s *ServiceSuite) createReq(email string) *models.CreateOperatorRequest {
	req := &models.CreateOperatorRequest{Email: email, Password: "long-enough", Role: domain.RoleBroker}
	req.Normalize()
	return req
}

func (s *ServiceSuite) TestCreate() {
	s.Run("hashes the password and stamps timestamps", func() {
		op, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("New@X.com"))
		s.Require().NoError(err)
		s.Equal("new@x.com", op.Email)
		s.Equal("new@x.com", op.Username)
		s.True(op.IsActive)
		s.True(s.hasher.Verify("long-enough", op.PasswordHash))
		s.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), op.CreatedAt)
	})

	s.Run("duplicate email is a conflict naming email", func() {
		_, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("new@x.com"))
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeConflict, de.Code)
		s.Equal("email", de.Field)
	})

	s.Run("unknown broker number is a validation error", func() {
		req := s.createReq("b@x.com")
		n := domain.BrokerNumber(1200)
		req.BrokerNumber = &n
		_, err := s.service.Create(s.admin, testutil.AdminPrincipal(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("setting a commission needs commissions_edit", func() {
		req := s.createReq("c@x.com")
		pct := decimal.NewFromInt(10)
		req.CommissionPercent = &pct

		broker := testutil.BrokerPrincipal(5, 4554)
		_, err := s.service.Create(s.admin, broker, req)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		op, err := s.service.Create(s.admin, testutil.AdminPrincipal(), req)
		s.Require().NoError(err)
		s.True(pct.Equal(*op.CommissionPercent))
	})
}

func (s *ServiceSuite) TestUpdate() {
	op, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("u@x.com"))
	s.Require().NoError(err)
	other, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("v@x.com"))
	s.Require().NoError(err)

	s.Run("applies only provided fields", func() {
		name := "Ana"
		updated, err := s.service.Update(s.admin, testutil.AdminPrincipal(), op.ID, &models.UpdateOperatorRequest{GivenName: &name})
		s.Require().NoError(err)
		s.Equal("Ana", updated.GivenName)
		s.Equal("u@x.com", updated.Email)
		s.Equal(op.PasswordHash, updated.PasswordHash)
	})

	s.Run("email taken by another operator", func() {
		email := other.Email
		_, err := s.service.Update(s.admin, testutil.AdminPrincipal(), op.ID, &models.UpdateOperatorRequest{Email: &email})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing operator", func() {
		_, err := s.service.Update(s.admin, testutil.AdminPrincipal(), 999, &models.UpdateOperatorRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDelete() {
	op, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("d@x.com"))
	s.Require().NoError(err)

	self := &domain.Principal{OperatorID: op.ID, Role: domain.RoleAdmin}
	s.True(dErrors.HasCode(s.service.Delete(s.admin, self, op.ID), dErrors.CodeForbidden))

	another := &domain.Principal{OperatorID: op.ID + 100, Role: domain.RoleAdmin}
	s.Require().NoError(s.service.Delete(s.admin, another, op.ID))
	_, err = s.service.Get(s.admin, op.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type stampedClients map[domain.OperatorID]int

func (c stampedClients) CountByOperator(_ context.Context, id domain.OperatorID) (int, error) {
	return c[id], nil
}

func (s *ServiceSuite) TestDeleteRefusedWhileClientsReferenceOperator() {
	op, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("stamp@x.com"))
	s.Require().NoError(err)

	other := &domain.Principal{OperatorID: op.ID + 100, Role: domain.RoleAdmin}
	clients := stampedClients{op.ID: 1}
	svc, err := New(s.store, knownBrokers{}, s.hasher, WithClientCounter(clients))
	s.Require().NoError(err)

	err = svc.Delete(s.admin, other, op.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	_, err = svc.Get(s.admin, op.ID)
	s.Require().NoError(err, "operator must survive a refused delete")

	delete(clients, op.ID)
	s.Require().NoError(svc.Delete(s.admin, other, op.ID))
}

func (s *ServiceSuite) TestCommissionHiddenFromViewersWithoutPermission() {
	pct := decimal.NewFromInt(12)
	op := &models.Operator{ID: 1, CommissionPercent: &pct}
	s.Nil(models.Response(op, false).CommissionPercent)
	s.NotNil(models.Response(op, true).CommissionPercent)
	s.NotNil(op.CommissionPercent, "original is untouched")
}
