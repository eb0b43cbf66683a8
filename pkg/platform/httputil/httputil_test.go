package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "corretaje/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("untyped errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("conflict names the field", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeConflict, "email already registered").WithField("email"))

		require.Equal(t, http.StatusConflict, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "email", body["field"])
		assert.Equal(t, "email already registered", body["error_description"])
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := map[dErrors.Code]int{
			dErrors.CodeValidation:         http.StatusBadRequest,
			dErrors.CodeInvalidCredentials: http.StatusBadRequest,
			dErrors.CodeInactiveUser:       http.StatusBadRequest,
			dErrors.CodeUnauthorized:       http.StatusUnauthorized,
			dErrors.CodeForbidden:          http.StatusForbidden,
			dErrors.CodeNotFound:           http.StatusNotFound,
			dErrors.CodeConflict:           http.StatusConflict,
		}
		for code, status := range cases {
			assert.Equal(t, status, StatusFor(code), string(code))
		}
	})
}

type prepareRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

func (r *prepareRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

func (r *prepareRequest) Validate() error {
	if r.Min > r.Max {
		return dErrors.New(dErrors.CodeValidation, "min must not exceed max")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	run := func(body string) (*prepareRequest, *httptest.ResponseRecorder) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[prepareRequest](w, r, logger, r.Context(), "req-1")
		if !ok {
			return nil, w
		}
		return req, w
	}

	t.Run("normalizes before tag validation", func(t *testing.T) {
		req, w := run(`{"name":"   "}`)
		assert.Nil(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"name"`)
	})

	t.Run("reports invalid email with json field name", func(t *testing.T) {
		_, w := run(`{"name":"x","email":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"email"`)
	})

	t.Run("runs cross-field validation", func(t *testing.T) {
		_, w := run(`{"name":"x","min":3,"max":1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "min must not exceed max")
	})

	t.Run("empty body is a bad request", func(t *testing.T) {
		_, w := run(``)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("valid request passes", func(t *testing.T) {
		req, _ := run(`{"name":" Ana ","min":1,"max":2}`)
		require.NotNil(t, req)
		assert.Equal(t, "Ana", req.Name)
	})
}

func TestParsePage(t *testing.T) {
	p, err := ParsePage(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Page{Skip: 0, Limit: DefaultLimit}, p)

	p, err = ParsePage(url.Values{"skip": {"10"}, "limit": {"5"}})
	require.NoError(t, err)
	assert.Equal(t, Page{Skip: 10, Limit: 5}, p)

	_, err = ParsePage(url.Values{"skip": {"-1"}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = ParsePage(url.Values{"limit": {"0"}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
