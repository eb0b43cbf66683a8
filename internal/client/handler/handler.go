package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"corretaje/internal/authz"
	"corretaje/internal/client/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Service defines the client operations the handler needs.
type Service interface {
	Create(ctx context.Context, p *domain.Principal, req *models.CreateClientRequest) (*models.Client, error)
	Get(ctx context.Context, id domain.ClientID) (*models.Client, error)
	List(ctx context.Context, skip, limit int) ([]*models.Client, error)
	Update(ctx context.Context, p *domain.Principal, id domain.ClientID, req *models.UpdateClientRequest) (*models.Client, error)
	Delete(ctx context.Context, id domain.ClientID) error
	AddLink(ctx context.Context, id domain.ClientID, req *models.CreateLinkRequest) (*models.Link, error)
	ListLinks(ctx context.Context, id domain.ClientID) ([]models.Link, error)
	RemoveLink(ctx context.Context, id domain.ClientID, broker domain.BrokerNumber) error
}

// Handler serves /clientes and its broker-link sub-resource.
type Handler struct {
	clients Service
	logger  *slog.Logger
}

func New(clients Service, logger *slog.Logger) *Handler {
	return &Handler{clients: clients, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/clientes", func(r chi.Router) {
		r.With(authz.Middleware(h.logger, authz.ClientsView)).Get("/", h.handleList)
		r.With(authz.Middleware(h.logger, authz.ClientsCreate)).Post("/", h.handleCreate)
		r.With(authz.Middleware(h.logger, authz.ClientsView)).Get("/{id}", h.handleGet)
		r.With(authz.Middleware(h.logger, authz.ClientsEdit)).Put("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.ClientsEdit)).Patch("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.ClientsDelete)).Delete("/{id}", h.handleDelete)
		r.With(authz.Middleware(h.logger, authz.ClientsView)).Get("/{id}/corredores", h.handleListLinks)
		r.With(authz.Middleware(h.logger, authz.ClientsEdit)).Post("/{id}/corredores", h.handleAddLink)
		r.With(authz.Middleware(h.logger, authz.ClientsEdit)).Delete("/{id}/corredores/{numero}", h.handleRemoveLink)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.ParsePage(r.URL.Query())
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid pagination")
		return
	}
	out, err := h.clients.List(ctx, page.Skip, page.Limit)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to list clients")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateClientRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.clients.Create(ctx, requestcontext.Principal(ctx), req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to create client")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	c, err := h.clients.Get(ctx, id)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to load client")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateClientRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.clients.Update(ctx, requestcontext.Principal(ctx), id, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to update client")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	if err := h.clients.Delete(ctx, id); err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to delete client")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) handleListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	out, err := h.clients.ListLinks(ctx, id)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to list client brokers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAddLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateLinkRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	link, err := h.clients.AddLink(ctx, id, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to link client")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, link)
}

func (h *Handler) handleRemoveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	number, err := domain.ParseBrokerNumber(chi.URLParam(r, "numero"))
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid broker number")
		return
	}
	if err := h.clients.RemoveLink(ctx, id, number); err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to unlink client")
		return
	}
	httputil.WriteNoContent(w)
}

// clientID parses the {id} segment. Clients are addressed by UUID only, so
// numeric client numbers are rejected here.
func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) (domain.ClientID, bool) {
	id, err := domain.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(r.Context(), w, h.logger, err, "invalid client id")
		return domain.ClientID{}, false
	}
	return id, true
}
