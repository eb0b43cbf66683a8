package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"corretaje/internal/authz"
	"corretaje/internal/broker/models"
	"corretaje/internal/broker/service"
	clientmodels "corretaje/internal/client/models"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Service defines the broker operations the handler needs.
type Service interface {
	Create(ctx context.Context, req *models.CreateBrokerRequest) (*models.Broker, error)
	CreateWithOperator(ctx context.Context, req *models.CreateWithOperatorRequest) (*service.Onboarded, error)
	BootstrapAdmin(ctx context.Context, req *models.BootstrapRequest) (*service.Onboarded, error)
	Get(ctx context.Context, id int64) (*models.Broker, error)
	List(ctx context.Context, skip, limit int) ([]*models.Broker, error)
	Update(ctx context.Context, id int64, req *models.UpdateBrokerRequest) (*models.Broker, error)
	Delete(ctx context.Context, id int64) error
}

// ClientDirectory lists the clients linked to a broker.
type ClientDirectory interface {
	ListByBroker(ctx context.Context, number domain.BrokerNumber) ([]*clientmodels.Client, error)
}

// Handler serves /corredores.
type Handler struct {
	brokers Service
	clients ClientDirectory
	logger  *slog.Logger
}

func New(brokers Service, clients ClientDirectory, logger *slog.Logger) *Handler {
	return &Handler{brokers: brokers, clients: clients, logger: logger}
}

// RegisterPublic mounts the admin bootstrap, which needs no token; the
// zero-brokers precondition guards it instead.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/corredores/admin", h.handleBootstrap)
}

// Register mounts the authenticated broker routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/corredores", func(r chi.Router) {
		r.With(authz.Middleware(h.logger, authz.UsersView)).Get("/", h.handleList)
		r.With(authz.Middleware(h.logger, authz.UsersCreate)).Post("/", h.handleCreate)
		r.With(authz.Middleware(h.logger, authz.UsersCreate)).Post("/con-usuario", h.handleCreateWithOperator)
		r.With(authz.Middleware(h.logger, authz.UsersView)).Get("/{id}", h.handleGet)
		r.With(authz.Middleware(h.logger, authz.UsersEdit)).Put("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.UsersEdit)).Patch("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.UsersDelete)).Delete("/{id}", h.handleDelete)
		r.With(authz.Middleware(h.logger, authz.ClientsView)).Get("/{id}/clientes", h.handleClients)
	})
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.BootstrapRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.brokers.BootstrapAdmin(ctx, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "admin bootstrap failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.ParsePage(r.URL.Query())
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid pagination")
		return
	}
	out, err := h.brokers.List(ctx, page.Skip, page.Limit)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to list brokers")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateBrokerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	b, err := h.brokers.Create(ctx, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to create broker")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleCreateWithOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateWithOperatorRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.brokers.CreateWithOperator(ctx, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to onboard broker")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid broker id")
		return
	}
	b, err := h.brokers.Get(ctx, id)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to load broker")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid broker id")
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateBrokerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	b, err := h.brokers.Update(ctx, id, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to update broker")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid broker id")
		return
	}
	if err := h.brokers.Delete(ctx, id); err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to delete broker")
		return
	}
	httputil.WriteNoContent(w)
}

// handleClients lists a broker's clients. Broker principals may only list
// their own.
func (h *Handler) handleClients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid broker id")
		return
	}
	b, err := h.brokers.Get(ctx, id)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to load broker")
		return
	}
	number := b.Number
	if err := authz.CheckRecord(requestcontext.Principal(ctx), &number); err != nil {
		httputil.Fail(ctx, w, h.logger, err, "cross-broker client listing")
		return
	}
	clients, err := h.clients.ListByBroker(ctx, b.Number)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to list broker clients")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, clients)
}
