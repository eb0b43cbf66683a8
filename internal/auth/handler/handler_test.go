package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corretaje/internal/auth/password"
	"corretaje/internal/auth/service"
	jwttoken "corretaje/internal/jwt_token"
	"corretaje/internal/operator/models"
	"corretaje/internal/operator/store"
	"corretaje/pkg/domain"
	"corretaje/pkg/testutil"
)

type fixture struct {
	router http.Handler
	now    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{now: &now}

	hasher := password.NewHasher(password.MinCost)
	operators := store.NewInMemory()
	for _, seed := range []struct {
		email  string
		active bool
	}{{"active@x.com", true}, {"off@x.com", false}} {
		hash, err := hasher.Hash("correct-horse")
		require.NoError(t, err)
		require.NoError(t, operators.Create(context.Background(), &models.Operator{
			Username: seed.email, Email: seed.email, PasswordHash: hash,
			Role: domain.RoleAssistant, IsActive: seed.active,
		}))
	}

	tokens, err := jwttoken.NewJWTService("secret", "HS256", time.Second, jwttoken.WithClock(func() time.Time { return *f.now }))
	require.NoError(t, err)
	svc, err := service.New(operators, tokens, hasher)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	f.router = r
	return f
}

func login(t *testing.T, f *fixture, email, pw string) *http.Request {
	t.Helper()
	return testutil.NewFormRequest(t, "/login/access-token", url.Values{"username": {email}, "password": {pw}})
}

func TestAccessToken(t *testing.T) {
	f := newFixture(t)

	t.Run("valid credentials return a bearer token", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, login(t, f, "active@x.com", "correct-horse"))
		testutil.AssertStatus(t, rr, http.StatusOK)
		body := testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Equal(t, "bearer", (*body)["token_type"])
		assert.NotEmpty(t, (*body)["access_token"])
	})

	t.Run("wrong password is a 400 with the login message", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, login(t, f, "active@x.com", "nope"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, service.MsgInvalidCredentials, testutil.UnmarshalErrorResponse(t, rr)["error_description"])
	})

	t.Run("unknown email reads the same as a wrong password", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, login(t, f, "ghost@x.com", "correct-horse"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, service.MsgInvalidCredentials, testutil.UnmarshalErrorResponse(t, rr)["error_description"])
	})

	t.Run("inactive operator", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, login(t, f, "off@x.com", "correct-horse"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, service.MsgInactiveUser, testutil.UnmarshalErrorResponse(t, rr)["error_description"])
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, login(t, f, "", ""))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func TestTestTokenExpiry(t *testing.T) {
	f := newFixture(t)
	issued := *f.now

	rr := testutil.DoRequest(f.router, login(t, f, "active@x.com", "correct-horse"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	token := (*testutil.UnmarshalResponse[map[string]string](t, rr))["access_token"]

	testToken := func() int {
		req := testutil.WithBearer(testutil.NewRequest(t, http.MethodPost, "/login/test-token"), token)
		return testutil.DoRequest(f.router, req).Code
	}

	assert.Equal(t, http.StatusOK, testToken())

	*f.now = issued.Add(2 * time.Second)
	assert.Equal(t, http.StatusUnauthorized, testToken(), "a one second token is rejected two seconds later")

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, "/login/test-token"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
}
