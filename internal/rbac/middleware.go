package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cursos-vacacionales/panel/internal/platform/httpx"
)

// RoleResolver extracts the current role from a request context.
type RoleResolver func(ctx context.Context) Role

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Resolve RoleResolver
	Logger  *slog.Logger
}

// RequirePermission ensures the current role holds action on module.
func (m Middleware) RequirePermission(module Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := m.currentRole(r)
			if HasPermission(role, module, action) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac permission denied",
					slog.String("role", role.String()),
					slog.String("module", module.String()),
					slog.String("action", action.String()),
					slog.String("path", r.URL.Path),
				)
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

func (m Middleware) currentRole(r *http.Request) Role {
	if m.Resolve == nil {
		return RoleNone
	}
	return m.Resolve(r.Context())
}
