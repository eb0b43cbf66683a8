package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"corretaje/internal/authz"
	"corretaje/internal/policy/models"
	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Service defines the policy operations the handler needs.
type Service interface {
	Create(ctx context.Context, p *domain.Principal, req *models.CreateMovementRequest) (*models.Movement, error)
	Get(ctx context.Context, p *domain.Principal, id int64) (*models.View, error)
	GetRaw(ctx context.Context, p *domain.Principal, id int64) (*models.Movement, error)
	Update(ctx context.Context, p *domain.Principal, id int64, req *models.UpdateMovementRequest) (*models.Movement, error)
	Delete(ctx context.Context, p *domain.Principal, id int64) error
	List(ctx context.Context, p *domain.Principal, f models.Filter) ([]*models.View, error)
	ListRaw(ctx context.Context, p *domain.Principal, skip, limit int) ([]*models.Movement, error)
	Stats(ctx context.Context, p *domain.Principal, f models.Filter) (*models.Stats, error)
}

// Handler serves /polizas (joined, filterable) and /movimientos-vigencia (raw rows).
type Handler struct {
	policies Service
	logger   *slog.Logger
}

func New(policies Service, logger *slog.Logger) *Handler {
	return &Handler{policies: policies, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/polizas", func(r chi.Router) {
		r.With(authz.Middleware(h.logger, authz.PoliciesView)).Get("/", h.handleList)
		r.With(authz.Middleware(h.logger, authz.PoliciesView, authz.ReportsView)).Get("/estadisticas", h.handleStats)
		r.With(authz.Middleware(h.logger, authz.PoliciesCreate)).Post("/", h.handleCreate)
		r.With(authz.Middleware(h.logger, authz.PoliciesView)).Get("/{id}", h.handleGet)
		r.With(authz.Middleware(h.logger, authz.PoliciesEdit)).Put("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.PoliciesEdit)).Patch("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.PoliciesDelete)).Delete("/{id}", h.handleDelete)
	})
	r.Route("/movimientos-vigencia", func(r chi.Router) {
		r.With(authz.Middleware(h.logger, authz.PoliciesView)).Get("/", h.handleListRaw)
		r.With(authz.Middleware(h.logger, authz.PoliciesCreate)).Post("/", h.handleCreate)
		r.With(authz.Middleware(h.logger, authz.PoliciesView)).Get("/{id}", h.handleGetRaw)
		r.With(authz.Middleware(h.logger, authz.PoliciesEdit)).Put("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.PoliciesEdit)).Patch("/{id}", h.handleUpdate)
		r.With(authz.Middleware(h.logger, authz.PoliciesDelete)).Delete("/{id}", h.handleDelete)
	})
}

// handleList serves GET /polizas. When proximo_vencimiento is present the
// result never includes expired rows, even with incluir_vencidas=true.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid policy filter")
		return
	}
	out, err := h.policies.List(ctx, requestcontext.Principal(ctx), f)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to list policies")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid policy filter")
		return
	}
	out, err := h.policies.Stats(ctx, requestcontext.Principal(ctx), f)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to aggregate policies")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListRaw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := httputil.ParsePage(r.URL.Query())
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "invalid pagination")
		return
	}
	out, err := h.policies.ListRaw(ctx, requestcontext.Principal(ctx), page.Skip, page.Limit)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to list policy movements")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateMovementRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	m, err := h.policies.Create(ctx, requestcontext.Principal(ctx), req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to create policy movement")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.movementID(w, r)
	if !ok {
		return
	}
	v, err := h.policies.Get(ctx, requestcontext.Principal(ctx), id)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to load policy")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetRaw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.movementID(w, r)
	if !ok {
		return
	}
	m, err := h.policies.GetRaw(ctx, requestcontext.Principal(ctx), id)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to load policy movement")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.movementID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateMovementRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	m, err := h.policies.Update(ctx, requestcontext.Principal(ctx), id, req)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to update policy movement")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.movementID(w, r)
	if !ok {
		return
	}
	if err := h.policies.Delete(ctx, requestcontext.Principal(ctx), id); err != nil {
		httputil.Fail(ctx, w, h.logger, err, "failed to delete policy movement")
		return
	}
	httputil.WriteNoContent(w)
}

func (h *Handler) movementID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := domain.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(r.Context(), w, h.logger, err, "invalid policy movement id")
		return 0, false
	}
	return id, true
}

// filterParser collects the first parse error so parseFilter reads flat.
type filterParser struct {
	q   url.Values
	err error
}

func (p *filterParser) date(key string) *domain.Date {
	if p.err != nil {
		return nil
	}
	d, err := httputil.QueryDate(p.q, key)
	p.err = err
	return d
}

func (p *filterParser) decimal(key string) *decimal.Decimal {
	if p.err != nil {
		return nil
	}
	d, err := httputil.QueryDecimal(p.q, key)
	p.err = err
	return d
}

func (p *filterParser) int64(key string) *int64 {
	if p.err != nil {
		return nil
	}
	n, err := httputil.QueryInt64(p.q, key)
	p.err = err
	return n
}

func (p *filterParser) int(key string) *int {
	if p.err != nil {
		return nil
	}
	n, err := httputil.QueryInt(p.q, key)
	p.err = err
	return n
}

func (p *filterParser) bool(key string) *bool {
	if p.err != nil {
		return nil
	}
	b, err := httputil.QueryBool(p.q, key)
	p.err = err
	return b
}

func (p *filterParser) clientID(key string) *domain.ClientID {
	v := httputil.QueryString(p.q, key)
	if p.err != nil || v == nil {
		return nil
	}
	id, err := domain.ParseClientID(*v)
	if err != nil {
		p.err = dErrors.New(dErrors.CodeValidation, key+" must be a client UUID").WithField(key)
		return nil
	}
	return &id
}

func (p *filterParser) brokerNumber(key string) *domain.BrokerNumber {
	v := httputil.QueryString(p.q, key)
	if p.err != nil || v == nil {
		return nil
	}
	n, err := domain.ParseBrokerNumber(*v)
	if err != nil {
		p.err = dErrors.New(dErrors.CodeValidation, key+" must be a broker number").WithField(key)
		return nil
	}
	return &n
}

func parseFilter(q url.Values) (models.Filter, error) {
	page, err := httputil.ParsePage(q)
	if err != nil {
		return models.Filter{}, err
	}
	p := &filterParser{q: q}
	f := models.Filter{
		ClientID:        p.clientID("cliente_id"),
		BrokerNumber:    p.brokerNumber("corredor_id"),
		Status:          httputil.QueryString(q, "estado"),
		StartFrom:       p.date("fecha_inicio"),
		StartTo:         p.date("fecha_fin"),
		ExpiryFrom:      p.date("vencimiento_desde"),
		ExpiryTo:        p.date("vencimiento_hasta"),
		IncludeExpired:  p.bool("incluir_vencidas"),
		UpcomingDays:    p.int("proximo_vencimiento"),
		PolicyNumber:    httputil.QueryString(q, "numero_poliza"),
		InsuranceTypeID: p.int64("tipo_seguro_id"),
		CurrencyID:      p.int64("moneda_id"),
		InsuredMin:      p.decimal("suma_asegurada_min"),
		InsuredMax:      p.decimal("suma_asegurada_max"),
		PremiumMin:      p.decimal("prima_min"),
		PremiumMax:      p.decimal("prima_max"),
		ClientGivenName: httputil.QueryString(q, "cliente_nombre"),
		ClientSurname:   httputil.QueryString(q, "cliente_apellido"),
		SortBy:          q.Get("ordenar_por"),
		SortDir:         q.Get("orden"),
		Skip:            page.Skip,
		Limit:           page.Limit,
	}
	if v := httputil.QueryString(q, "tipo_duracion"); v != nil {
		c := models.DurationClass(*v)
		f.DurationClass = &c
	}
	if p.err != nil {
		return models.Filter{}, p.err
	}
	return f, nil
}
