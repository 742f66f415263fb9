package modules

import (
	"net/http"

	"github.com/cursos-vacacionales/panel/internal/platform/httpx"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
)

type sessionUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	RoleName string `json:"role_name,omitempty"`
}

type modulePermissions struct {
	Module  string   `json:"module"`
	Actions []string `json:"actions"`
}

type sessionResponse struct {
	State        string              `json:"state"`
	User         sessionUser         `json:"user"`
	DefaultRoute string              `json:"default_route"`
	Routes       []string            `json:"routes"`
	Permissions  []modulePermissions `json:"permissions"`
}

// Session reports the signed-in identity and what it may reach.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	snap := session.SnapshotFromContext(r.Context())
	if !snap.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	role := snap.Role()
	resp := sessionResponse{
		State: snap.State.String(),
		User: sessionUser{
			ID:       snap.User.ID,
			Name:     snap.User.Name,
			Email:    snap.User.Email,
			Role:     role.String(),
			RoleName: snap.User.RoleName,
		},
		DefaultRoute: rbac.DefaultRoute(role),
		Routes:       []string{},
		Permissions:  []modulePermissions{},
	}
	if role.IsAdmin() {
		// The administrator bypass has no table rows; report everything.
		for _, route := range rbac.KnownRoutes() {
			resp.Routes = append(resp.Routes, route.Path)
		}
		for _, module := range rbac.Modules() {
			resp.Permissions = append(resp.Permissions, permissionsOf(module, rbac.AllActions))
		}
	} else {
		resp.Routes = append(resp.Routes, rbac.RoutesFor(role)...)
		for _, entry := range rbac.PermissionsFor(role) {
			resp.Permissions = append(resp.Permissions, permissionsOf(entry.Module, entry.Actions))
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func permissionsOf(module rbac.Module, actions rbac.ActionSet) modulePermissions {
	perm := modulePermissions{Module: module.String(), Actions: []string{}}
	for _, action := range actions.List() {
		perm.Actions = append(perm.Actions, action.String())
	}
	return perm
}
