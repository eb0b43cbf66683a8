package testutil

import (
	"context"
	"net/http"
	"time"

	"corretaje/pkg/domain"
	"corretaje/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated operator to the request context.
// This simulates what the auth middleware does for authenticated requests.
func WithPrincipal(req *http.Request, p *domain.Principal) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), p))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// AdminPrincipal returns a superuser admin principal.
func AdminPrincipal() *domain.Principal {
	return &domain.Principal{OperatorID: 1, Email: "admin@example.com", Role: domain.RoleAdmin, IsSuperuser: true}
}

// BrokerPrincipal returns a broker principal bound to number.
func BrokerPrincipal(id domain.OperatorID, number domain.BrokerNumber) *domain.Principal {
	n := number
	return &domain.Principal{OperatorID: id, Email: "broker@example.com", Role: domain.RoleBroker, BrokerNumber: &n}
}

// AssistantPrincipal returns an assistant principal.
func AssistantPrincipal(id domain.OperatorID) *domain.Principal {
	return &domain.Principal{OperatorID: id, Email: "assistant@example.com", Role: domain.RoleAssistant}
}

// ContextAs builds a context carrying p and a fixed clock.
func ContextAs(p *domain.Principal, now time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), p)
	return requestcontext.WithTime(ctx, now)
}
