package authz

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/testutil"
)

func TestRolePermissionTable(t *testing.T) {
	assert.Len(t, Permissions(domain.RoleAdmin), 15)
	assert.ElementsMatch(t, []Permission{
		PoliciesCreate, PoliciesView, PoliciesEdit,
		ClientsCreate, ClientsView, ClientsEdit,
		CommissionsView,
	}, Permissions(domain.RoleBroker))
	assert.ElementsMatch(t, []Permission{PoliciesView, ClientsView, ReportsView}, Permissions(domain.RoleAssistant))
	assert.Empty(t, Permissions(domain.Role("auditor")))
}

func TestRequire(t *testing.T) {
	broker := testutil.BrokerPrincipal(2, 4554)
	assistant := testutil.AssistantPrincipal(3)

	t.Run("nil principal is unauthorized", func(t *testing.T) {
		err := Require(nil, PoliciesView)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("subset of grants passes", func(t *testing.T) {
		require.NoError(t, Require(broker, PoliciesView, PoliciesEdit))
		require.NoError(t, Require(testutil.AdminPrincipal(), UsersDelete, CommissionsEdit))
	})

	t.Run("every declared permission is required", func(t *testing.T) {
		err := Require(assistant, PoliciesView, PoliciesEdit)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("brokers cannot delete policies", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(Require(broker, PoliciesDelete), dErrors.CodeForbidden))
	})

	t.Run("reports need reports_view", func(t *testing.T) {
		assert.Error(t, Require(broker, PoliciesView, ReportsView))
		assert.NoError(t, Require(assistant, PoliciesView, ReportsView))
	})
}

func TestScopeList(t *testing.T) {
	other := domain.BrokerNumber(1200)

	t.Run("broker requests are forced to own number", func(t *testing.T) {
		scope := ScopeList(testutil.BrokerPrincipal(2, 4554), &other)
		require.NotNil(t, scope.Number)
		assert.Equal(t, domain.BrokerNumber(4554), *scope.Number)
		assert.False(t, scope.Empty)
	})

	t.Run("broker without number sees nothing", func(t *testing.T) {
		p := &domain.Principal{OperatorID: 9, Role: domain.RoleBroker}
		assert.True(t, ScopeList(p, nil).Empty)
	})

	t.Run("admins keep the requested filter", func(t *testing.T) {
		scope := ScopeList(testutil.AdminPrincipal(), &other)
		assert.Equal(t, &other, scope.Number)
		assert.Nil(t, ScopeList(testutil.AdminPrincipal(), nil).Number)
	})
}

func TestCheckRecord(t *testing.T) {
	own := domain.BrokerNumber(4554)
	other := domain.BrokerNumber(1200)
	broker := testutil.BrokerPrincipal(2, own)

	assert.NoError(t, CheckRecord(broker, &own))
	assert.True(t, dErrors.HasCode(CheckRecord(broker, &other), dErrors.CodeForbidden))
	assert.True(t, dErrors.HasCode(CheckRecord(broker, nil), dErrors.CodeForbidden))
	assert.NoError(t, CheckRecord(testutil.AssistantPrincipal(3), &other))
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("forbidden without permission", func(t *testing.T) {
		h := Middleware(logger, ClientsDelete)(ok)
		req := testutil.WithPrincipal(httptest.NewRequest(http.MethodDelete, "/", nil), testutil.BrokerPrincipal(2, 4554))
		rr := testutil.DoRequest(h, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("unauthorized without principal", func(t *testing.T) {
		rr := testutil.DoRequest(Middleware(logger, ClientsView)(ok), httptest.NewRequest(http.MethodGet, "/", nil))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("passes through with permission", func(t *testing.T) {
		req := testutil.WithPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), testutil.AssistantPrincipal(3))
		rr := testutil.DoRequest(Middleware(logger, ClientsView)(ok), req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	t.Run("admin only", func(t *testing.T) {
		req := testutil.WithPrincipal(httptest.NewRequest(http.MethodPost, "/", nil), testutil.AssistantPrincipal(3))
		rr := testutil.DoRequest(AdminOnly(logger)(ok), req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}
