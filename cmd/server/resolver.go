package main

import (
	"context"

	brokerstore "corretaje/internal/broker/store"
	catmodels "corretaje/internal/catalog/models"
	catstore "corretaje/internal/catalog/store"
	clientstore "corretaje/internal/client/store"
	policymodels "corretaje/internal/policy/models"
	"corretaje/pkg/domain"
)

// memoryResolver joins policy movements against the other in-memory stores,
// standing in for the foreign keys and joins the SQL schema provides.
type memoryResolver struct {
	clients        *clientstore.InMemory
	brokers        *brokerstore.InMemory
	insuranceTypes *catstore.InMemory[*catmodels.InsuranceType]
	currencies     *catstore.InMemory[*catmodels.Currency]
}

func (r *memoryResolver) Client(ctx context.Context, id domain.ClientID) (*policymodels.ClientSummary, error) {
	c, err := r.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &policymodels.ClientSummary{ID: c.ID, Number: c.Number, GivenNames: c.GivenNames, Surnames: c.Surnames}, nil
}

func (r *memoryResolver) Broker(ctx context.Context, number domain.BrokerNumber) (*policymodels.BrokerSummary, error) {
	b, err := r.brokers.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return &policymodels.BrokerSummary{Number: b.Number, GivenNames: b.GivenNames, Surnames: b.Surnames}, nil
}

func (r *memoryResolver) InsuranceType(ctx context.Context, id int64) (*policymodels.InsuranceTypeSummary, error) {
	t, err := r.insuranceTypes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &policymodels.InsuranceTypeSummary{ID: t.ID, Code: t.Code, Name: t.Name}, nil
}

func (r *memoryResolver) Currency(ctx context.Context, id int64) (*policymodels.CurrencySummary, error) {
	c, err := r.currencies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &policymodels.CurrencySummary{ID: c.ID, Code: c.Code, Symbol: c.Symbol}, nil
}
