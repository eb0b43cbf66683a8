package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"corretaje/internal/client/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	clients *InMemory
	links   *InMemoryLinks
	ctx     context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.clients = NewInMemory()
	s.links = NewInMemoryLinks()
	s.ctx = context.Background()
}

func newClient(email, document string) *models.Client {
	return &models.Client{ID: domain.NewClientID(), GivenNames: "Ana", Surnames: "Gómez", Email: email, Document: document}
}

func (s *InMemorySuite) TestNumbersAreSequential() {
	a, b := newClient("a@x.com", "1"), newClient("b@x.com", "2")
	s.Require().NoError(s.clients.Create(s.ctx, a))
	s.Require().NoError(s.clients.Create(s.ctx, b))
	s.Equal(int64(1), a.Number)
	s.Equal(int64(2), b.Number)

	s.Require().NoError(s.clients.Delete(s.ctx, b.ID))
	c := newClient("c@x.com", "3")
	s.Require().NoError(s.clients.Create(s.ctx, c))
	s.Equal(int64(3), c.Number, "deleted numbers are not handed out again")
}

func (s *InMemorySuite) TestUniqueness() {
	s.Require().NoError(s.clients.Create(s.ctx, newClient("a@x.com", "1")))

	err := s.clients.Create(s.ctx, newClient("A@x.com", "2"))
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Equal("email", sentinel.FieldOf(err))

	err = s.clients.Create(s.ctx, newClient("b@x.com", "1"))
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Equal("documento", sentinel.FieldOf(err))
}

func (s *InMemorySuite) TestSnapshotKeepsSequence() {
	restore := s.clients.Snapshot()
	s.Require().NoError(s.clients.Create(s.ctx, newClient("a@x.com", "1")))
	restore()

	all, err := s.clients.List(s.ctx, 0, 0)
	s.Require().NoError(err)
	s.Empty(all)

	next := newClient("a@x.com", "1")
	s.Require().NoError(s.clients.Create(s.ctx, next))
	s.Equal(int64(2), next.Number)
}

func (s *InMemorySuite) TestFindByIDsOrdersByNumber() {
	a, b := newClient("a@x.com", "1"), newClient("b@x.com", "2")
	s.Require().NoError(s.clients.Create(s.ctx, a))
	s.Require().NoError(s.clients.Create(s.ctx, b))

	out, err := s.clients.FindByIDs(s.ctx, []domain.ClientID{b.ID, domain.NewClientID(), a.ID})
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Equal(a.ID, out[0].ID)
	s.Equal(b.ID, out[1].ID)
}

func (s *InMemorySuite) TestLinks() {
	client := domain.NewClientID()
	link := &models.Link{ClientID: client, BrokerNumber: 4554, AssignedAt: domain.NewDate(2025, 1, 2)}
	s.Require().NoError(s.links.Create(s.ctx, link))

	err := s.links.Create(s.ctx, link)
	s.ErrorIs(err, sentinel.ErrConflict)

	s.Require().NoError(s.links.Create(s.ctx, &models.Link{ClientID: client, BrokerNumber: 1200}))
	byClient, err := s.links.ListByClient(s.ctx, client)
	s.Require().NoError(err)
	s.Require().Len(byClient, 2)
	s.Equal(domain.BrokerNumber(1200), byClient[0].BrokerNumber)

	n, err := s.links.CountByBroker(s.ctx, 4554)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Require().NoError(s.links.DeleteByClient(s.ctx, client))
	byClient, err = s.links.ListByClient(s.ctx, client)
	s.Require().NoError(err)
	s.Empty(byClient)
	s.ErrorIs(s.links.Delete(s.ctx, client, 4554), sentinel.ErrNotFound)
}
