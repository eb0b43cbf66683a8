package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"corretaje/internal/authz"
	"corretaje/internal/catalog/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Service is the per-kind catalog surface.
type Service[E any] interface {
	Create(ctx context.Context, e E) (E, error)
	Get(ctx context.Context, id int64) (E, error)
	List(ctx context.Context, skip, limit int) ([]E, error)
	Default(ctx context.Context) (E, error)
	Update(ctx context.Context, id int64, patch models.Patch[E]) (E, error)
	Deactivate(ctx context.Context, id int64) error
}

// Handler serves the four catalog collections. Reads are open to any
// authenticated operator; writes need the admin role.
type Handler struct {
	docTypes       Service[*models.DocumentType]
	currencies     Service[*models.Currency]
	insuranceTypes Service[*models.InsuranceType]
	insurers       Service[*models.Insurer]
	logger         *slog.Logger
}

func New(
	docTypes Service[*models.DocumentType],
	currencies Service[*models.Currency],
	insuranceTypes Service[*models.InsuranceType],
	insurers Service[*models.Insurer],
	logger *slog.Logger,
) *Handler {
	return &Handler{
		docTypes:       docTypes,
		currencies:     currencies,
		insuranceTypes: insuranceTypes,
		insurers:       insurers,
		logger:         logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	mount[*models.DocumentType, models.CreateDocumentType, models.UpdateDocumentType](r, h.logger, "/tipos-documento", h.docTypes, true)
	mount[*models.Currency, models.CreateCurrency, models.UpdateCurrency](r, h.logger, "/monedas", h.currencies, true)
	mount[*models.InsuranceType, models.CreateInsuranceType, models.UpdateInsuranceType](r, h.logger, "/tipos-seguro", h.insuranceTypes, true)
	mount[*models.Insurer, models.CreateInsurer, models.UpdateInsurer](r, h.logger, "/aseguradoras", h.insurers, false)
}

// mount wires one catalog collection. C and U are the create and update
// payloads; their pointer types build and patch rows.
func mount[E any, C any, U any, PC interface {
	*C
	models.Builder[E]
}, PU interface {
	*U
	models.Patch[E]
}](r chi.Router, logger *slog.Logger, path string, svc Service[E], defaultable bool) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			page, err := httputil.ParsePage(r.URL.Query())
			if err != nil {
				httputil.Fail(ctx, w, logger, err, "invalid pagination")
				return
			}
			out, err := svc.List(ctx, page.Skip, page.Limit)
			if err != nil {
				httputil.Fail(ctx, w, logger, err, "failed to list catalog")
				return
			}
			httputil.WriteJSON(w, http.StatusOK, out)
		})

		if defaultable {
			r.Get("/predeterminado", func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()
				out, err := svc.Default(ctx)
				if err != nil {
					httputil.Fail(ctx, w, logger, err, "failed to load default entry")
					return
				}
				httputil.WriteJSON(w, http.StatusOK, out)
			})
		}

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, ok := pathID(w, r, logger)
			if !ok {
				return
			}
			out, err := svc.Get(ctx, id)
			if err != nil {
				httputil.Fail(ctx, w, logger, err, "failed to load catalog entry")
				return
			}
			httputil.WriteJSON(w, http.StatusOK, out)
		})

		r.Group(func(r chi.Router) {
			r.Use(authz.AdminOnly(logger))

			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()
				req, ok := httputil.DecodeAndPrepare[C](w, r, logger, ctx, requestcontext.RequestID(ctx))
				if !ok {
					return
				}
				out, err := svc.Create(ctx, PC(req).Build())
				if err != nil {
					httputil.Fail(ctx, w, logger, err, "failed to create catalog entry")
					return
				}
				httputil.WriteJSON(w, http.StatusCreated, out)
			})

			update := func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()
				id, ok := pathID(w, r, logger)
				if !ok {
					return
				}
				req, ok := httputil.DecodeAndPrepare[U](w, r, logger, ctx, requestcontext.RequestID(ctx))
				if !ok {
					return
				}
				out, err := svc.Update(ctx, id, PU(req))
				if err != nil {
					httputil.Fail(ctx, w, logger, err, "failed to update catalog entry")
					return
				}
				httputil.WriteJSON(w, http.StatusOK, out)
			}
			r.Put("/{id}", update)
			r.Patch("/{id}", update)

			// DELETE deactivates; catalog rows are never removed
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()
				id, ok := pathID(w, r, logger)
				if !ok {
					return
				}
				if err := svc.Deactivate(ctx, id); err != nil {
					httputil.Fail(ctx, w, logger, err, "failed to deactivate catalog entry")
					return
				}
				httputil.WriteNoContent(w)
			})
		})
	})
}

func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(r.Context(), w, logger, err, "invalid catalog id")
		return 0, false
	}
	return id, true
}
