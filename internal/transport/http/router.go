// Package httptransport assembles the HTTP surface: shared middleware, the
// operational endpoints and the /api/v1 tree.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"corretaje/internal/platform/metrics"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/platform/middleware/auth"
	"corretaje/pkg/platform/middleware/metadata"
	"corretaje/pkg/platform/middleware/request"
	"corretaje/pkg/platform/middleware/requesttime"
)

const (
	APIPrefix      = "/api/v1"
	requestTimeout = 30 * time.Second
)

// Mount attaches a group of routes to a router.
type Mount func(r chi.Router)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything NewRouter needs. Public routes skip authentication;
// Protected routes run behind the bearer token middleware.
type Deps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Principals  auth.PrincipalResolver
	Health      []HealthCheck
	CORSOrigins []string
	Clock       func() time.Time
	Public      []Mount
	Protected   []Mount
}

// NewRouter builds the application handler.
func NewRouter(d Deps) http.Handler {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(chimw.RealIP)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.MiddlewareWithClock(clock))
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(request.Latency(d.Metrics))
	}
	r.Use(chimw.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})

	r.Get("/healthz", health(d.Logger, d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(APIPrefix, func(r chi.Router) {
		for _, mount := range d.Public {
			mount(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.Principals, d.Logger))
			for _, mount := range d.Protected {
				mount(r)
			}
		})
	})

	return corsHandler(d.CORSOrigins).Handler(r)
}

func corsHandler(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", request.HeaderRequestID},
		ExposedHeaders: []string{request.HeaderRequestID},
	})
}

func health(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "error", err)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
