package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corretaje/internal/policy/models"
	"corretaje/internal/policy/service"
	"corretaje/internal/policy/store"
	"corretaje/pkg/domain"
	"corretaje/pkg/platform/sentinel"
	"corretaje/pkg/testutil"
)

type resolver struct{}

func (resolver) Client(_ context.Context, id domain.ClientID) (*models.ClientSummary, error) {
	return &models.ClientSummary{ID: id, Number: 1, GivenNames: "Ana", Surnames: "Pérez"}, nil
}

func (resolver) Broker(_ context.Context, n domain.BrokerNumber) (*models.BrokerSummary, error) {
	if n != 4554 && n != 1200 {
		return nil, sentinel.ErrNotFound
	}
	return &models.BrokerSummary{Number: n}, nil
}

func (resolver) InsuranceType(_ context.Context, id int64) (*models.InsuranceTypeSummary, error) {
	return &models.InsuranceTypeSummary{ID: id, Code: "AUTO"}, nil
}

func (resolver) Currency(_ context.Context, id int64) (*models.CurrencySummary, error) {
	return &models.CurrencySummary{ID: id}, nil
}

var (
	now    = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	client = domain.NewClientID()
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(store.NewInMemory(resolver{}))
	require.NoError(t, err)
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func as(req *http.Request, p *domain.Principal) *http.Request {
	return testutil.WithTime(testutil.WithPrincipal(req, p), now)
}

func movementBody(policy, start, end, class string) map[string]any {
	return map[string]any{
		"cliente_id":        client.String(),
		"tipo_seguro_id":    1,
		"numero_poliza":     policy,
		"fecha_inicio":      start,
		"fecha_vencimiento": end,
		"suma_asegurada":    "150000.00",
		"prima":             "1200.50",
		"tipo_duracion":     class,
	}
}

func post(t *testing.T, router http.Handler, p *domain.Principal, body map[string]any) *models.Movement {
	t.Helper()
	rr := testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/polizas", body), p))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	return testutil.UnmarshalResponse[models.Movement](t, rr)
}

func TestCreatePolicy(t *testing.T) {
	router := newRouter(t)
	admin := testutil.AdminPrincipal()

	m := post(t, router, admin, movementBody("D-1", "2025-06-15", "2025-06-15", "daily"))
	assert.Equal(t, models.Daily, m.DurationClass)
	assert.Equal(t, "activa", m.Status)
	assert.Equal(t, "1200.5", m.Premium.String())

	t.Run("annual of 367 days is a 400", func(t *testing.T) {
		rr := testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/polizas",
			movementBody("A-1", "2025-01-01", "2026-01-02", "annual")), admin))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		assert.Equal(t, "fecha_vencimiento", testutil.UnmarshalErrorResponse(t, rr)["field"])
	})

	t.Run("duplicate policy number is a 409", func(t *testing.T) {
		rr := testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/movimientos-vigencia",
			movementBody("D-1", "2025-06-15", "2025-06-15", "daily")), admin))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "conflict")
	})

	t.Run("assistants cannot create", func(t *testing.T) {
		rr := testutil.DoRequest(router, as(testutil.NewJSONRequest(t, http.MethodPost, "/polizas",
			movementBody("D-2", "2025-06-15", "2025-06-15", "daily")), testutil.AssistantPrincipal(3)))
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestListPolicies(t *testing.T) {
	router := newRouter(t)
	admin := testutil.AdminPrincipal()
	post(t, router, admin, movementBody("OLD", "2025-05-01", "2025-05-31", "monthly"))
	soon := post(t, router, admin, movementBody("SOON", "2025-06-01", "2025-06-30", "monthly"))
	post(t, router, admin, movementBody("LATER", "2025-01-01", "2025-12-31", "annual"))

	list := func(t *testing.T, query string) []*models.View {
		t.Helper()
		rr := testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas?"+query), admin))
		testutil.AssertStatus(t, rr, http.StatusOK)
		return *testutil.UnmarshalResponse[[]*models.View](t, rr)
	}

	assert.Len(t, list(t, ""), 3, "expired rows are included by default")
	assert.Len(t, list(t, "incluir_vencidas=false"), 2)

	views := list(t, "proximo_vencimiento=30&incluir_vencidas=true")
	require.Len(t, views, 1)
	assert.Equal(t, soon.ID, views[0].ID)
	assert.True(t, views[0].Current)
	assert.Equal(t, 15, views[0].DaysToExpiry)
	assert.Equal(t, "Ana", views[0].Client.GivenNames)

	views = list(t, "ordenar_por=end_date&orden=desc&limit=2")
	require.Len(t, views, 2)
	assert.Equal(t, "LATER", views[0].PolicyNumber)
	assert.Equal(t, "SOON", views[1].PolicyNumber)

	views = list(t, "numero_poliza=soo&tipo_duracion=monthly")
	require.Len(t, views, 1)

	for _, query := range []string{
		"proximo_vencimiento=0",
		"proximo_vencimiento=366",
		"vencimiento_desde=2025-07-01&vencimiento_hasta=2025-06-01",
		"cliente_id=17",
		"prima_min=abc",
		"ordenar_por=color",
	} {
		rr := testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas?"+query), admin))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	}
	rr := testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas?proximo_vencimiento=365"), admin))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestPolicyStats(t *testing.T) {
	router := newRouter(t)
	admin := testutil.AdminPrincipal()
	post(t, router, admin, movementBody("W", "2025-06-01", "2025-06-07", "weekly"))
	post(t, router, admin, movementBody("A", "2025-01-01", "2025-12-31", "annual"))

	rr := testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas/estadisticas"), testutil.AssistantPrincipal(3)))
	testutil.AssertStatus(t, rr, http.StatusOK)
	stats := testutil.UnmarshalResponse[models.Stats](t, rr)
	assert.Equal(t, 2, stats.Total.Count)
	assert.Equal(t, 1, stats.ByClass[models.Weekly].Count)
	assert.Equal(t, 0, stats.ByClass[models.Quarterly].Count)
	assert.Equal(t, "2401", stats.Total.PremiumSum.String())

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas/estadisticas"), testutil.BrokerPrincipal(2, 4554)))
	testutil.AssertStatus(t, rr, http.StatusForbidden)
}

func TestBrokerPolicyScope(t *testing.T) {
	router := newRouter(t)
	own := testutil.BrokerPrincipal(2, 4554)
	other := testutil.BrokerPrincipal(5, 1200)

	mine := post(t, router, own, movementBody("MINE", "2025-06-01", "2025-06-30", "monthly"))
	theirs := post(t, router, other, movementBody("THEIRS", "2025-06-01", "2025-06-30", "monthly"))

	rr := testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas?corredor_id=1200"), own))
	testutil.AssertStatus(t, rr, http.StatusOK)
	views := *testutil.UnmarshalResponse[[]*models.View](t, rr)
	require.Len(t, views, 1)
	assert.Equal(t, mine.ID, views[0].ID)

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas/"+strconv.FormatInt(theirs.ID, 10)), own))
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/movimientos-vigencia/"+strconv.FormatInt(mine.ID, 10)), own))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodDelete, "/polizas/"+strconv.FormatInt(mine.ID, 10)), own))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodDelete, "/polizas/"+strconv.FormatInt(mine.ID, 10)), testutil.AdminPrincipal()))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(router, as(testutil.NewRequest(t, http.MethodGet, "/polizas/abc"), own))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
