// Package modules serves the guarded pages of the dashboard. Each page shows
// which actions the signed-in role may perform on its module.
package modules

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/internal/view"
)

// Handler renders module pages.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, templates: templates, csrf: csrf, rbac: rbacMW}
}

// MountRoutes registers every known page. Callers mount it behind the route
// guard; each page additionally requires view permission on its module.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, route := range rbac.KnownRoutes() {
		var page http.HandlerFunc
		switch route.Path {
		case rbac.DashboardRoute:
			page = h.dashboard
		case "/perfil":
			page = h.profile
		case "/sistema/permisos":
			page = h.permissions
		default:
			page = h.module(route)
		}
		guarded := h.rbac.RequirePermission(route.Module, rbac.ActionView)(page)
		r.Method(http.MethodGet, route.Path, guarded)
		r.Method(http.MethodGet, route.Path+"/*", guarded)
	}
}

type modulePageData struct {
	Module  string
	Actions []rbac.Action
}

type dashboardCard struct {
	Path    string
	Title   string
	Actions []rbac.Action
}

type dashboardPageData struct {
	Cards []dashboardCard
}

type matrixRow struct {
	Title string
	Cells [][]rbac.Action
}

type permissionsPageData struct {
	Roles []string
	Rows  []matrixRow
}

func (h *Handler) module(route rbac.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := session.RoleFromContext(r.Context())
		data := modulePageData{
			Module:  route.Module.String(),
			Actions: rbac.AllowedActions(role, route.Module).List(),
		}
		h.render(w, r, "pages/module.html", route.Module.Title(), data)
	}
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	role := session.RoleFromContext(r.Context())
	var cards []dashboardCard
	for _, item := range view.Navigation(role, "") {
		if item.Path == rbac.DashboardRoute {
			continue
		}
		module := moduleFor(item.Path)
		cards = append(cards, dashboardCard{
			Path:    item.Path,
			Title:   item.Title,
			Actions: rbac.AllowedActions(role, module).List(),
		})
	}
	h.render(w, r, "pages/dashboard.html", "Panel", dashboardPageData{Cards: cards})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/perfil.html", "Mi perfil", nil)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	roles := []rbac.Role{rbac.RoleTutor, rbac.RoleInstructor}
	data := permissionsPageData{}
	granted := make([]map[rbac.Module]rbac.ActionSet, len(roles))
	for i, role := range roles {
		data.Roles = append(data.Roles, role.String())
		granted[i] = make(map[rbac.Module]rbac.ActionSet)
		for _, entry := range rbac.PermissionsFor(role) {
			granted[i][entry.Module] = entry.Actions
		}
	}
	for _, module := range rbac.Modules() {
		row := matrixRow{Title: module.Title()}
		for i := range roles {
			row.Cells = append(row.Cells, granted[i][module].List())
		}
		data.Rows = append(data.Rows, row)
	}
	h.render(w, r, "pages/permisos.html", "Permisos", data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	snap := session.SnapshotFromContext(r.Context())
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	var flash *shared.FlashMessage
	if sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(r.Context(), sess)
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        snap.User,
		Role:        snap.Role(),
		Nav:         view.Navigation(snap.Role(), r.URL.Path),
		Data:        data,
	}
	if err := h.templates.Render(w, http.StatusOK, name, viewData); err != nil {
		h.logger.Error("render module page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func moduleFor(p string) rbac.Module {
	for _, route := range rbac.KnownRoutes() {
		if route.Path == p {
			return route.Module
		}
	}
	return rbac.ModuleUnknown
}
