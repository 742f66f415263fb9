package guard

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/internal/view"
)

// Recorder counts guard outcomes.
type Recorder interface {
	ObserveGuard(outcome string)
}

// Middleware applies the guard to HTTP requests. The session provider must
// already be attached to the request context.
type Middleware struct {
	Logger      *slog.Logger
	Templates   *view.Engine
	CSRF        *shared.CSRFManager
	Recorder    Recorder
	DeniedDelay time.Duration
}

type deniedPageData struct {
	Target string
	Delay  int
}

// Protect guards next.
func (m Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := session.SnapshotFromContext(r.Context())
		decision := EvaluateSnapshot(snap, r.URL.Path)
		if m.Recorder != nil {
			m.Recorder.ObserveGuard(decision.Outcome.String())
		}

		switch decision.Outcome {
		case OutcomeRender:
			next.ServeHTTP(w, r)
		case OutcomeLoading:
			w.Header().Set("Refresh", "1")
			w.Header().Set("Cache-Control", "no-store")
			m.render(w, r, snap, http.StatusOK, "pages/loading.html", "Cargando", nil)
		case OutcomeRedirectLogin:
			target := decision.Target + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusSeeOther)
		case OutcomeDenied:
			m.logger().Warn("route denied",
				slog.String("path", r.URL.Path),
				slog.String("role", snap.Role().String()),
				slog.String("redirect", decision.Target))
			delay := m.delaySeconds()
			w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", delay, decision.Target))
			w.Header().Set("Cache-Control", "no-store")
			m.render(w, r, snap, http.StatusForbidden, "pages/denied.html", "Acceso denegado", deniedPageData{
				Target: decision.Target,
				Delay:  delay,
			})
		}
	})
}

func (m Middleware) delaySeconds() int {
	if m.DeniedDelay <= 0 {
		return 0
	}
	return int(math.Ceil(m.DeniedDelay.Seconds()))
}

func (m Middleware) render(w http.ResponseWriter, r *http.Request, snap session.Snapshot, status int, name, title string, data any) {
	if m.Templates == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if m.CSRF != nil && sess != nil {
		csrfToken, _ = m.CSRF.EnsureToken(r.Context(), sess)
	}
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		User:        snap.User,
		Role:        snap.Role(),
		Nav:         view.Navigation(snap.Role(), r.URL.Path),
		Data:        data,
	}
	if err := m.Templates.Render(w, status, name, td); err != nil {
		m.logger().Error("render guard page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(status), status)
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
