package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"corretaje/internal/client/models"
	"corretaje/internal/client/store"
	"corretaje/internal/platform/metrics"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/tx"
	"corretaje/pkg/requestcontext"
	"corretaje/pkg/testutil"
)

type knownBrokers map[domain.BrokerNumber]bool

func (k knownBrokers) ExistsNumber(_ context.Context, n domain.BrokerNumber) (bool, error) {
	return k[n], nil
}

type knownDocTypes map[int64]bool

func (k knownDocTypes) Exists(_ context.Context, id int64) (bool, error) {
	return k[id], nil
}

type policyCounts map[domain.ClientID]int

func (p policyCounts) CountByClient(_ context.Context, id domain.ClientID) (int, error) {
	return p[id], nil
}

// failingLinks fails every link insert.
type failingLinks struct {
	*store.InMemoryLinks
}

func (f failingLinks) Create(context.Context, *models.Link) error {
	return errors.New("connection reset")
}

type ServiceSuite struct {
	suite.Suite
	clients  *store.InMemory
	links    *store.InMemoryLinks
	policies policyCounts
	metrics  *metrics.Metrics
	service  *Service
	today    time.Time
	admin    context.Context
	broker   context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clients = store.NewInMemory()
	s.links = store.NewInMemoryLinks()
	s.policies = policyCounts{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.today = time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)
	s.service = s.newService(s.links)
	s.admin = testutil.ContextAs(testutil.AdminPrincipal(), s.today)
	s.broker = testutil.ContextAs(testutil.BrokerPrincipal(2, 4554), s.today)
}

func (s *ServiceSuite) newService(links LinkStore) *Service {
	runner := tx.NewMemoryRunner(s.clients, s.links)
	svc, err := New(s.clients, links, knownBrokers{4554: true, 1200: true}, runner,
		WithDocumentTypes(knownDocTypes{1: true}),
		WithPolicyCounter(s.policies),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	return svc
}

func (s *ServiceSuite) createReq(email, document string) *models.CreateClientRequest {
	req := &models.CreateClientRequest{GivenNames: "Ana", Surnames: "Pérez", Document: document, Email: email}
	req.Normalize()
	return req
}

func (s *ServiceSuite) create(ctx context.Context, email, document string) *models.Client {
	c, err := s.service.Create(ctx, requestcontext.Principal(ctx), s.createReq(email, document))
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestCreate() {
	s.Run("admin create assigns number and audit ids without a link", func() {
		c := s.create(s.admin, "ana@x.com", "111")
		s.False(c.ID.IsNil())
		s.Equal(int64(1), c.Number)
		s.Equal(domain.OperatorID(1), c.CreatedByID)
		s.Equal(domain.OperatorID(1), c.ModifiedByID)
		s.Equal(s.today, c.CreatedAt)

		links, err := s.links.ListByClient(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Empty(links)
	})

	s.Run("broker create links the client to the broker dated today", func() {
		c := s.create(s.broker, "beto@x.com", "222")
		s.Equal(domain.OperatorID(2), c.CreatedByID)

		links, err := s.service.ListLinks(s.broker, c.ID)
		s.Require().NoError(err)
		s.Require().Len(links, 1)
		s.Equal(domain.BrokerNumber(4554), links[0].BrokerNumber)
		s.Equal(domain.NewDate(2025, time.April, 10), links[0].AssignedAt)
	})

	s.Run("duplicate email is a conflict naming email", func() {
		_, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("ANA@x.com", "999"))
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeConflict, de.Code)
		s.Equal("email", de.Field)
	})

	s.Run("duplicate document is a conflict naming documento", func() {
		_, err := s.service.Create(s.admin, testutil.AdminPrincipal(), s.createReq("new@x.com", "111"))
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("documento", de.Field)
	})

	s.Run("unknown document type is rejected", func() {
		req := s.createReq("doc@x.com", "333")
		unknown := int64(7)
		req.DocumentTypeID = &unknown
		_, err := s.service.Create(s.admin, testutil.AdminPrincipal(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Equal(float64(2), promtest.ToFloat64(s.metrics.ClientsCreated))
}

func (s *ServiceSuite) TestCreateRollsBackWhenLinkFails() {
	svc := s.newService(failingLinks{s.links})
	_, err := svc.Create(s.broker, testutil.BrokerPrincipal(2, 4554), s.createReq("roll@x.com", "444"))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	all, err := s.clients.List(context.Background(), 0, 10)
	s.Require().NoError(err)
	s.Empty(all, "client insert must roll back with the link")

	c := s.create(s.admin, "roll@x.com", "444")
	s.Equal(int64(2), c.Number, "numbers are not reused after rollback")
}

func (s *ServiceSuite) TestUpdate() {
	c := s.create(s.admin, "ana@x.com", "111")
	s.create(s.admin, "beto@x.com", "222")
	later := testutil.ContextAs(testutil.BrokerPrincipal(2, 4554), s.today.Add(time.Hour))

	s.Run("refreshes modification stamps", func() {
		name := "Ana María"
		out, err := s.service.Update(later, testutil.BrokerPrincipal(2, 4554), c.ID, &models.UpdateClientRequest{GivenNames: &name})
		s.Require().NoError(err)
		s.Equal("Ana María", out.GivenNames)
		s.Equal(domain.OperatorID(1), out.CreatedByID)
		s.Equal(domain.OperatorID(2), out.ModifiedByID)
		s.Equal(s.today.Add(time.Hour), out.ModifiedAt)
	})

	s.Run("changing to a taken email conflicts", func() {
		email := "beto@x.com"
		_, err := s.service.Update(later, testutil.AdminPrincipal(), c.ID, &models.UpdateClientRequest{Email: &email})
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("email", de.Field)
	})

	s.Run("keeping the own email is fine", func() {
		email := "ana@x.com"
		_, err := s.service.Update(later, testutil.AdminPrincipal(), c.ID, &models.UpdateClientRequest{Email: &email})
		s.NoError(err)
	})

	s.Run("missing client is not found", func() {
		_, err := s.service.Update(later, testutil.AdminPrincipal(), domain.NewClientID(), &models.UpdateClientRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDelete() {
	s.Run("cascades links", func() {
		c := s.create(s.broker, "ana@x.com", "111")
		s.Require().NoError(s.service.Delete(s.admin, c.ID))

		_, err := s.service.Get(s.admin, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		n, err := s.links.CountByBroker(context.Background(), 4554)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("refused while policies reference the client", func() {
		c := s.create(s.broker, "beto@x.com", "222")
		s.policies[c.ID] = 1
		err := s.service.Delete(s.admin, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		links, err := s.links.ListByClient(context.Background(), c.ID)
		s.Require().NoError(err)
		s.Len(links, 1, "links survive a refused delete")
	})
}

func (s *ServiceSuite) TestLinks() {
	c := s.create(s.admin, "ana@x.com", "111")

	s.Run("missing client is not found", func() {
		_, err := s.service.AddLink(s.admin, domain.NewClientID(), &models.CreateLinkRequest{BrokerNumber: 4554})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown broker is a validation error", func() {
		_, err := s.service.AddLink(s.admin, c.ID, &models.CreateLinkRequest{BrokerNumber: 9000})
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeValidation, de.Code)
		s.Equal("corredor_numero", de.Field)
	})

	s.Run("assigned date defaults to today", func() {
		link, err := s.service.AddLink(s.admin, c.ID, &models.CreateLinkRequest{BrokerNumber: 4554})
		s.Require().NoError(err)
		s.Equal(domain.NewDate(2025, time.April, 10), link.AssignedAt)
	})

	s.Run("duplicate pair conflicts", func() {
		_, err := s.service.AddLink(s.admin, c.ID, &models.CreateLinkRequest{BrokerNumber: 4554})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("list by broker returns linked clients", func() {
		s.create(s.admin, "solo@x.com", "555")
		out, err := s.service.ListByBroker(s.admin, 4554)
		s.Require().NoError(err)
		s.Require().Len(out, 1)
		s.Equal(c.ID, out[0].ID)

		empty, err := s.service.ListByBroker(s.admin, 1200)
		s.Require().NoError(err)
		s.NotNil(empty)
		s.Empty(empty)
	})

	s.Run("remove link", func() {
		s.Require().NoError(s.service.RemoveLink(s.admin, c.ID, 4554))
		err := s.service.RemoveLink(s.admin, c.ID, 4554)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
