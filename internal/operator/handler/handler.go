package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"corretaje/internal/authz"
	"corretaje/internal/operator/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Service defines the operator operations the handler needs.
type Service interface {
	Create(ctx context.Context, p *domain.Principal, req *models.CreateOperatorRequest) (*models.Operator, error)
	Get(ctx context.Context, id domain.OperatorID) (*models.Operator, error)
	List(ctx context.Context, skip, limit int) ([]*models.Operator, error)
	Update(ctx context.Context, p *domain.Principal, id domain.OperatorID, req *models.UpdateOperatorRequest) (*models.Operator, error)
	Delete(ctx context.Context, p *domain.Principal, id domain.OperatorID) error
}

// Handler serves /usuarios.
type Handler struct {
	operators Service
	logger    *slog.Logger
}

func New(operators Service, logger *slog.Logger) *Handler {
	return &Handler{operators: operators, logger: logger}
}

// Register mounts the operator routes. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Route("/usuarios", func(r chi.Router) {
		r.With(authz.Middleware(h.logger, authz.UsersView)).Get("/", h.handleList)
		r.With(authz.Middleware(h.logger, authz.UsersCreate)).Post("/", h.handleCreate)
		r.Get("/me", h.handleMe)
		r.With(authz.Middleware(h.logger, authz.UsersView)).Get("/{id}", h.handleGet)
		r.With(authz.Middleware(h.logger, authz.UsersEdit)).Put("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.UsersEdit)).Patch("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.UsersDelete)).Delete("/{id}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.ParsePage(r.URL.Query())
	if err != nil {
		h.fail(ctx, w, err, "invalid pagination")
		return
	}
	ops, err := h.operators.List(ctx, page.Skip, page.Limit)
	if err != nil {
		h.fail(ctx, w, err, "failed to list operators")
		return
	}
	show := canSeeCommission(ctx)
	out := make([]*models.Operator, 0, len(ops))
	for _, op := range ops {
		out = append(out, models.Response(op, show))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateOperatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	op, err := h.operators.Create(ctx, requestcontext.Principal(ctx), req)
	if err != nil {
		h.fail(ctx, w, err, "failed to create operator")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.Response(op, canSeeCommission(ctx)))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	op, err := h.operators.Get(ctx, requestcontext.OperatorID(ctx))
	if err != nil {
		h.fail(ctx, w, err, "failed to load current operator")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Response(op, canSeeCommission(ctx)))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseOperatorID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err, "invalid operator id")
		return
	}
	op, err := h.operators.Get(ctx, id)
	if err != nil {
		h.fail(ctx, w, err, "failed to load operator")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Response(op, canSeeCommission(ctx)))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseOperatorID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err, "invalid operator id")
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateOperatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	op, err := h.operators.Update(ctx, requestcontext.Principal(ctx), id, req)
	if err != nil {
		h.fail(ctx, w, err, "failed to update operator")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Response(op, canSeeCommission(ctx)))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseOperatorID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, err, "invalid operator id")
		return
	}
	if err := h.operators.Delete(ctx, requestcontext.Principal(ctx), id); err != nil {
		h.fail(ctx, w, err, "failed to delete operator")
		return
	}
	httputil.WriteNoContent(w)
}

func canSeeCommission(ctx context.Context) bool {
	p := requestcontext.Principal(ctx)
	return p != nil && authz.Has(p.Role, authz.CommissionsView)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	httputil.Fail(ctx, w, h.logger, err, msg)
}
