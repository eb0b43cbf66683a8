package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"corretaje/internal/catalog/cache"
	"corretaje/internal/catalog/models"
	"corretaje/internal/catalog/store"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx            context.Context
	mr             *miniredis.Miniredis
	currencies     *Service[*models.Currency]
	currencyStore  *store.InMemory[*models.Currency]
	insurers       *Service[*models.Insurer]
	insuranceTypes *Service[*models.InsuranceType]
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC))
	s.mr = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	c := cache.NewRedis(client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var err error
	s.currencyStore = store.NewInMemory[*models.Currency]()
	s.currencies, err = New(models.KindCurrencies, Store[*models.Currency](s.currencyStore), WithCache[*models.Currency](c))
	s.Require().NoError(err)

	insurerStore := store.NewInMemory[*models.Insurer]()
	s.insurers, err = New(models.KindInsurers, Store[*models.Insurer](insurerStore))
	s.Require().NoError(err)

	s.insuranceTypes, err = New(models.KindInsuranceTypes, Store[*models.InsuranceType](store.NewInMemory[*models.InsuranceType]()),
		WithCheck(InsurerExists(insurerStore)))
	s.Require().NoError(err)
}

func (s *ServiceSuite) currency(code string, isDefault bool) *models.Currency {
	c, err := s.currencies.Create(s.ctx, &models.Currency{Code: code, Name: code, IsDefault: isDefault, IsActive: true})
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestCreate() {
	c := s.currency("UYU", false)
	s.Equal(int64(1), c.ID)
	s.Equal(time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC), c.CreatedAt)

	s.Run("duplicate code names codigo", func() {
		_, err := s.currencies.Create(s.ctx, &models.Currency{Code: "UYU", Name: "Otro", IsActive: true})
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal(dErrors.CodeConflict, de.Code)
		s.Equal("codigo", de.Field)
	})

	s.Run("empty name is a validation error", func() {
		_, err := s.currencies.Create(s.ctx, &models.Currency{Code: "USD", Name: "  "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("insurer names and fiscal ids are unique", func() {
		_, err := s.insurers.Create(s.ctx, &models.Insurer{Name: "BSE", FiscalIdentifier: "210001", IsActive: true})
		s.Require().NoError(err)
		_, err = s.insurers.Create(s.ctx, &models.Insurer{Name: "Otra", FiscalIdentifier: "210001", IsActive: true})
		de, ok := dErrors.As(err)
		s.Require().True(ok)
		s.Equal("fiscal_identifier", de.Field)
	})
}

func (s *ServiceSuite) TestInsuranceTypeReferences() {
	insurer, err := s.insurers.Create(s.ctx, &models.Insurer{Name: "BSE", FiscalIdentifier: "1", IsActive: true})
	s.Require().NoError(err)

	missing := int64(99)
	_, err = s.insuranceTypes.Create(s.ctx, &models.InsuranceType{Code: "AUTO", Name: "Automóvil", DefaultTermYears: 1, InsurerID: &missing})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.insuranceTypes.Create(s.ctx, &models.InsuranceType{Code: "AUTO", Name: "Automóvil", DefaultTermYears: 0})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "default term must be at least one year")

	t, err := s.insuranceTypes.Create(s.ctx, &models.InsuranceType{Code: "AUTO", Name: "Automóvil", DefaultTermYears: 1, InsurerID: &insurer.ID})
	s.Require().NoError(err)
	s.Equal(insurer.ID, *t.InsurerID)
}

func (s *ServiceSuite) TestDefaultIsFirstActiveFlagged() {
	_, err := s.currencies.Default(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.currency("ARS", false)
	first := s.currency("UYU", true)
	second := s.currency("USD", true)

	got, err := s.currencies.Default(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, got.ID)

	still, err := s.currencies.Get(s.ctx, second.ID)
	s.Require().NoError(err)
	s.True(still.IsDefault, "flagging another row does not clear earlier defaults")

	s.Require().NoError(s.currencies.Deactivate(s.ctx, first.ID))
	got, err = s.currencies.Default(s.ctx)
	s.Require().NoError(err)
	s.Equal(second.ID, got.ID)
}

func (s *ServiceSuite) TestUpdateAndDeactivate() {
	c := s.currency("UYU", false)
	s.currency("USD", false)

	name := "Peso uruguayo"
	out, err := s.currencies.Update(s.ctx, c.ID, &models.UpdateCurrency{Name: &name})
	s.Require().NoError(err)
	s.Equal("Peso uruguayo", out.Name)
	s.Equal("UYU", out.Code)

	code := "USD"
	_, err = s.currencies.Update(s.ctx, c.ID, &models.UpdateCurrency{Code: &code})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Require().NoError(s.currencies.Deactivate(s.ctx, c.ID))
	s.Require().NoError(s.currencies.Deactivate(s.ctx, c.ID), "deactivating twice is fine")
	got, err := s.currencies.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)

	s.True(dErrors.HasCode(s.currencies.Deactivate(s.ctx, 404), dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListIsCachedUntilWrite() {
	s.currency("UYU", false)

	first, err := s.currencies.List(s.ctx, 0, 100)
	s.Require().NoError(err)
	s.Len(first, 1)

	// a write behind the service's back is invisible while the page is cached
	s.Require().NoError(s.currencyStore.Create(s.ctx, &models.Currency{Code: "EUR", Name: "Euro", IsActive: true}))
	cached, err := s.currencies.List(s.ctx, 0, 100)
	s.Require().NoError(err)
	s.Len(cached, 1)

	s.currency("USD", false)
	fresh, err := s.currencies.List(s.ctx, 0, 100)
	s.Require().NoError(err)
	s.Len(fresh, 3)
	s.Equal([]string{"UYU", "EUR", "USD"}, []string{fresh[0].Code, fresh[1].Code, fresh[2].Code})
}
