package main

import (
	"context"
	"database/sql"
	"time"

	brokerservice "corretaje/internal/broker/service"
	brokerstore "corretaje/internal/broker/store"
	catmodels "corretaje/internal/catalog/models"
	catservice "corretaje/internal/catalog/service"
	catstore "corretaje/internal/catalog/store"
	clientservice "corretaje/internal/client/service"
	clientstore "corretaje/internal/client/store"
	operatorservice "corretaje/internal/operator/service"
	operatorstore "corretaje/internal/operator/store"
	"corretaje/internal/platform/postgres"
	policyservice "corretaje/internal/policy/service"
	policystore "corretaje/internal/policy/store"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/tx"
)

type operatorStore interface {
	operatorservice.OperatorStore
	brokerservice.ReferenceCounter
}

type brokerStore interface {
	brokerservice.BrokerStore
	ExistsNumber(ctx context.Context, number domain.BrokerNumber) (bool, error)
}

type clientStore interface {
	clientservice.ClientStore
	operatorservice.ClientCounter
}

type linkStore interface {
	clientservice.LinkStore
	brokerservice.ReferenceCounter
}

type policyStore interface {
	policyservice.Store
	clientservice.PolicyCounter
	brokerservice.ReferenceCounter
}

// stores is one complete persistence backend.
type stores struct {
	operators      operatorStore
	brokers        brokerStore
	clients        clientStore
	links          linkStore
	policies       policyStore
	docTypes       catservice.Store[*catmodels.DocumentType]
	currencies     catservice.Store[*catmodels.Currency]
	insuranceTypes catservice.Store[*catmodels.InsuranceType]
	insurers       catservice.Store[*catmodels.Insurer]
	runner         tx.Runner
}

func memoryStores() *stores {
	operators := operatorstore.NewInMemory()
	brokers := brokerstore.NewInMemory()
	clients := clientstore.NewInMemory()
	links := clientstore.NewInMemoryLinks()
	docTypes := catstore.NewInMemory[*catmodels.DocumentType]()
	currencies := catstore.NewInMemory[*catmodels.Currency]()
	insuranceTypes := catstore.NewInMemory[*catmodels.InsuranceType]()
	insurers := catstore.NewInMemory[*catmodels.Insurer]()
	policies := policystore.NewInMemory(&memoryResolver{
		clients:        clients,
		brokers:        brokers,
		insuranceTypes: insuranceTypes,
		currencies:     currencies,
	})

	return &stores{
		operators:      operators,
		brokers:        brokers,
		clients:        clients,
		links:          links,
		policies:       policies,
		docTypes:       docTypes,
		currencies:     currencies,
		insuranceTypes: insuranceTypes,
		insurers:       insurers,
		runner: tx.NewMemoryRunner(
			operators, brokers, clients, links,
			docTypes, currencies, insuranceTypes, insurers,
			policies,
		),
	}
}

func postgresStores(db *sql.DB, txTimeout time.Duration) *stores {
	return &stores{
		operators:      operatorstore.NewPostgres(db),
		brokers:        brokerstore.NewPostgres(db),
		clients:        clientstore.NewPostgres(db),
		links:          clientstore.NewPostgresLinks(db),
		policies:       policystore.NewPostgres(db),
		docTypes:       catstore.NewPostgres(db, catstore.DocumentTypes),
		currencies:     catstore.NewPostgres(db, catstore.Currencies),
		insuranceTypes: catstore.NewPostgres(db, catstore.InsuranceTypes),
		insurers:       catstore.NewPostgres(db, catstore.Insurers),
		runner:         postgres.NewTxRunner(db, txTimeout),
	}
}
