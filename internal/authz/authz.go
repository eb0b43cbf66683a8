// Package authz maps operator roles to permission sets and enforces them on
// operations, including the broker self-scope rule for policy records.
package authz

import (
	"log/slog"
	"net/http"

	"corretaje/pkg/domain"
	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/httputil"
	"corretaje/pkg/requestcontext"
)

// Permission names one guarded capability.
type Permission string

const (
	UsersCreate     Permission = "users_create"
	UsersView       Permission = "users_view"
	UsersEdit       Permission = "users_edit"
	UsersDelete     Permission = "users_delete"
	PoliciesCreate  Permission = "policies_create"
	PoliciesView    Permission = "policies_view"
	PoliciesEdit    Permission = "policies_edit"
	PoliciesDelete  Permission = "policies_delete"
	ClientsCreate   Permission = "clients_create"
	ClientsView     Permission = "clients_view"
	ClientsEdit     Permission = "clients_edit"
	ClientsDelete   Permission = "clients_delete"
	ReportsView     Permission = "reports_view"
	CommissionsView Permission = "commissions_view"
	CommissionsEdit Permission = "commissions_edit"
)

// Role grants are complete and flat; no role inherits from another.
var rolePermissions = map[domain.Role]map[Permission]struct{}{
	domain.RoleAdmin: set(
		UsersCreate, UsersView, UsersEdit, UsersDelete,
		PoliciesCreate, PoliciesView, PoliciesEdit, PoliciesDelete,
		ClientsCreate, ClientsView, ClientsEdit, ClientsDelete,
		ReportsView, CommissionsView, CommissionsEdit,
	),
	domain.RoleBroker: set(
		PoliciesCreate, PoliciesView, PoliciesEdit,
		ClientsCreate, ClientsView, ClientsEdit,
		CommissionsView,
	),
	domain.RoleAssistant: set(
		PoliciesView, ClientsView, ReportsView,
	),
}

func set(perms ...Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return m
}

// Permissions returns the permission set of role. Unknown roles have none.
func Permissions(role domain.Role) []Permission {
	granted := rolePermissions[role]
	out := make([]Permission, 0, len(granted))
	for p := range granted {
		out = append(out, p)
	}
	return out
}

// Has reports whether role holds perm.
func Has(role domain.Role, perm Permission) bool {
	_, ok := rolePermissions[role][perm]
	return ok
}

// Require succeeds iff every permission in required is granted to the
// principal's role. A nil principal is unauthenticated.
func Require(p *domain.Principal, required ...Permission) error {
	if p == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	for _, perm := range required {
		if !Has(p.Role, perm) {
			return dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
		}
	}
	return nil
}

// RequireRole restricts an operation to the given role.
func RequireRole(p *domain.Principal, role domain.Role) error {
	if p == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if p.Role != role {
		return dErrors.New(dErrors.CodeForbidden, "insufficient permissions")
	}
	return nil
}

// Middleware enforces Require on every request routed through it.
func Middleware(logger *slog.Logger, required ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := requestcontext.Principal(ctx)
			if err := Require(principal, required...); err != nil {
				logger.WarnContext(ctx, "permission denied",
					"required", required,
					"operator_id", requestcontext.OperatorID(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly is Middleware for the admin role regardless of permissions.
func AdminOnly(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if err := RequireRole(requestcontext.Principal(ctx), domain.RoleAdmin); err != nil {
				logger.WarnContext(ctx, "admin role required",
					"operator_id", requestcontext.OperatorID(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
