package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"corretaje/internal/auth/service"
	"corretaje/internal/authz"
	"corretaje/internal/operator/models"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Service defines the credential operations the handler needs.
type Service interface {
	Login(ctx context.Context, email, password string) (*service.Token, error)
	CurrentOperator(ctx context.Context, token string) (*models.Operator, error)
}

// Handler serves the login endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// Register mounts /login routes. Both are reachable without a prior session.
func (h *Handler) Register(r chi.Router) {
	r.Post("/login/access-token", h.handleAccessToken)
	r.Post("/login/test-token", h.handleTestToken)
}

// handleAccessToken exchanges form credentials for a bearer token. The
// username field carries the operator's email.
func (h *Handler) handleAccessToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		h.logger.WarnContext(ctx, "invalid login form",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid form body"))
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "username and password are required"))
		return
	}

	token, err := h.auth.Login(ctx, username, password)
	if err != nil {
		httputil.Fail(ctx, w, h.logger, err, "login failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, token)
}

// handleTestToken echoes the operator behind the presented token.
func (h *Handler) handleTestToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
		return
	}
	op, err := h.auth.CurrentOperator(ctx, strings.TrimSpace(token))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		httputil.Fail(ctx, w, h.logger, err, "token test failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.Response(op, authz.Has(op.Role, authz.CommissionsView)))
}
