package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	authhandler "corretaje/internal/auth/handler"
	"corretaje/internal/auth/password"
	authservice "corretaje/internal/auth/service"
	brokerhandler "corretaje/internal/broker/handler"
	brokerservice "corretaje/internal/broker/service"
	"corretaje/internal/catalog/cache"
	cathandler "corretaje/internal/catalog/handler"
	catmodels "corretaje/internal/catalog/models"
	catservice "corretaje/internal/catalog/service"
	clienthandler "corretaje/internal/client/handler"
	clientservice "corretaje/internal/client/service"
	jwttoken "corretaje/internal/jwt_token"
	operatorhandler "corretaje/internal/operator/handler"
	operatorservice "corretaje/internal/operator/service"
	"corretaje/internal/platform/config"
	"corretaje/internal/platform/metrics"
	"corretaje/internal/platform/postgres"
	"corretaje/internal/platform/redis"
	policyhandler "corretaje/internal/policy/handler"
	policyservice "corretaje/internal/policy/service"
	httptransport "corretaje/internal/transport/http"
	"corretaje/migrations"
)

// app is the assembled process: one HTTP handler plus the resources it owns.
type app struct {
	handler http.Handler
	storage string
	closers []func() error
}

// newApp builds every store, service and handler from cfg. An empty
// DATABASE_URL selects the in-memory backend.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, reg *prometheus.Registry, clock func() time.Time) (*app, error) {
	a := &app{storage: "memory"}
	m := metrics.New(reg)
	var checks []httptransport.HealthCheck

	var st *stores
	if cfg.Database.URL == "" {
		st = memoryStores()
	} else {
		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.storage = "postgres"
		a.closers = append(a.closers, db.Close)
		checks = append(checks, db.PingContext)
		st = postgresStores(db, cfg.Database.TxTimeout)
	}

	var catalogCache catservice.Cache
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		checks = append(checks, rc.Health)
		catalogCache = cache.NewRedis(rc.Client, cfg.Catalog.CacheTTL, logger)
	}

	tokens, err := jwttoken.NewJWTService(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.AccessTokenTTL, jwttoken.WithClock(clock))
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("token service: %w", err)
	}
	hasher := password.NewHasher(cfg.Auth.BcryptCost)

	routes, err := buildHandlers(st, tokens, hasher, catalogCache, m, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.handler = httptransport.NewRouter(httptransport.Deps{
		Logger:      logger,
		Metrics:     m,
		Gatherer:    reg,
		Principals:  routes.principals,
		Health:      checks,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		Clock:       clock,
		Public:      routes.public,
		Protected:   routes.protected,
	})
	return a, nil
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openDatabase(ctx context.Context, cfg config.Database, logger *slog.Logger) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.RunMigrations {
		if err := postgres.Migrate(db, migrations.FS, migrations.Dir); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.InfoContext(ctx, "database migrations applied")
	}
	return db, nil
}

type mounts struct {
	principals *authservice.Service
	public     []httptransport.Mount
	protected  []httptransport.Mount
}

func buildHandlers(
	st *stores,
	tokens *jwttoken.JWTService,
	hasher *password.Hasher,
	catalogCache catservice.Cache,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*mounts, error) {
	authSvc, err := authservice.New(st.operators, tokens, hasher,
		authservice.WithLogger(logger),
		authservice.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	operatorSvc, err := operatorservice.New(st.operators, st.brokers, hasher,
		operatorservice.WithClientCounter(st.clients),
		operatorservice.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("operator service: %w", err)
	}

	brokerSvc, err := brokerservice.New(st.brokers, st.operators, hasher, st.runner,
		brokerservice.WithReferenceCheck("usuarios", st.operators),
		brokerservice.WithReferenceCheck("clientes_corredores", st.links),
		brokerservice.WithReferenceCheck("movimientos_vigencia", st.policies),
		brokerservice.WithLogger(logger),
		brokerservice.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("broker service: %w", err)
	}

	docTypes, err := catservice.New(catmodels.KindDocumentTypes, st.docTypes,
		catservice.WithCache[*catmodels.DocumentType](catalogCache),
		catservice.WithLogger[*catmodels.DocumentType](logger),
	)
	if err != nil {
		return nil, fmt.Errorf("document type service: %w", err)
	}
	currencies, err := catservice.New(catmodels.KindCurrencies, st.currencies,
		catservice.WithCache[*catmodels.Currency](catalogCache),
		catservice.WithLogger[*catmodels.Currency](logger),
	)
	if err != nil {
		return nil, fmt.Errorf("currency service: %w", err)
	}
	insuranceTypes, err := catservice.New(catmodels.KindInsuranceTypes, st.insuranceTypes,
		catservice.WithCache[*catmodels.InsuranceType](catalogCache),
		catservice.WithCheck(catservice.InsurerExists(st.insurers)),
		catservice.WithLogger[*catmodels.InsuranceType](logger),
	)
	if err != nil {
		return nil, fmt.Errorf("insurance type service: %w", err)
	}
	insurers, err := catservice.New(catmodels.KindInsurers, st.insurers,
		catservice.WithCache[*catmodels.Insurer](catalogCache),
		catservice.WithLogger[*catmodels.Insurer](logger),
	)
	if err != nil {
		return nil, fmt.Errorf("insurer service: %w", err)
	}

	clientSvc, err := clientservice.New(st.clients, st.links, st.brokers, st.runner,
		clientservice.WithDocumentTypes(docTypes),
		clientservice.WithPolicyCounter(st.policies),
		clientservice.WithMetrics(m),
		clientservice.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("client service: %w", err)
	}

	policySvc, err := policyservice.New(st.policies,
		policyservice.WithLogger(logger),
		policyservice.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("policy service: %w", err)
	}

	brokers := brokerhandler.New(brokerSvc, clientSvc, logger)
	return &mounts{
		principals: authSvc,
		public: []httptransport.Mount{
			authhandler.New(authSvc, logger).Register,
			brokers.RegisterPublic,
		},
		protected: []httptransport.Mount{
			operatorhandler.New(operatorSvc, logger).Register,
			brokers.Register,
			clienthandler.New(clientSvc, logger).Register,
			cathandler.New(docTypes, currencies, insuranceTypes, insurers, logger).Register,
			policyhandler.New(policySvc, logger).Register,
		},
	}, nil
}
