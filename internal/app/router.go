package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	authhttp "github.com/cursos-vacacionales/panel/internal/auth/http"
	"github.com/cursos-vacacionales/panel/internal/guard"
	"github.com/cursos-vacacionales/panel/internal/modules"
	"github.com/cursos-vacacionales/panel/internal/observability"
	"github.com/cursos-vacacionales/panel/internal/platform/httpx"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthService    session.AuthService
	AuthHandler    *authhttp.Handler
	ModulesHandler *modules.Handler
	Guard          guard.Middleware
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range BaseStack() {
		r.Use(mw)
	}
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := web.StaticFiles()
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range SessionStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			AuthService:    params.AuthService,
		}) {
			r.Use(mw)
		}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, rbac.DefaultRoute(session.RoleFromContext(r.Context())), http.StatusSeeOther)
		})
		params.AuthHandler.MountRoutes(r)
		r.Get("/api/sesion", params.ModulesHandler.Session)

		r.Group(func(r chi.Router) {
			r.Use(params.Guard.Protect)
			params.ModulesHandler.MountRoutes(r)
		})

		r.NotFound(params.Guard.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})).ServeHTTP)
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
