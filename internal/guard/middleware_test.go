package guard_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursos-vacacionales/panel/internal/guard"
	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/view"
	_ "github.com/cursos-vacacionales/panel/testing"
)

type countingRecorder map[string]int

func (c countingRecorder) ObserveGuard(outcome string) {
	c[outcome]++
}

func newGuardMiddleware(t *testing.T, rec guard.Recorder) guard.Middleware {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	return guard.Middleware{Templates: templates, Recorder: rec, DeniedDelay: 2 * time.Second}
}

func serve(mw guard.Middleware, p *session.Provider, target string) *httptest.ResponseRecorder {
	protected := mw.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("protected content"))
	}))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if p != nil {
		req = req.WithContext(session.NewContext(req.Context(), p))
	}
	res := httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	return res
}

func TestProtectRendersAllowedRoute(t *testing.T) {
	rec := countingRecorder{}
	res := serve(newGuardMiddleware(t, rec), newProvider(t, "tutor-token"), "/mis-participantes/5")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "protected content", res.Body.String())
	assert.Equal(t, 1, rec["render"])
}

func TestProtectRedirectsAnonymousToLogin(t *testing.T) {
	rec := countingRecorder{}
	res := serve(newGuardMiddleware(t, rec), newProvider(t, ""), "/sistema/usuarios?page=2")

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login?next=%2Fsistema%2Fusuarios%3Fpage%3D2", res.Header().Get("Location"))
	assert.NotContains(t, res.Body.String(), "protected content")
	assert.Equal(t, 1, rec["redirect_login"])
}

func TestProtectDeniesWithPendingRedirect(t *testing.T) {
	rec := countingRecorder{}
	res := serve(newGuardMiddleware(t, rec), newProvider(t, "tutor-token"), "/sistema/usuarios")

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "2; url=/dashboard", res.Header().Get("Refresh"))
	assert.Contains(t, res.Body.String(), "Acceso denegado")
	assert.Contains(t, res.Body.String(), `href="/dashboard"`)
	assert.NotContains(t, res.Body.String(), "protected content")
	assert.Equal(t, 1, rec["denied"])
}

func TestProtectShowsLoadingWithoutProvider(t *testing.T) {
	rec := countingRecorder{}
	res := serve(newGuardMiddleware(t, rec), nil, "/dashboard")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "1", res.Header().Get("Refresh"))
	assert.Contains(t, res.Body.String(), "Cargando")
	assert.NotContains(t, res.Body.String(), "protected content")
	assert.Equal(t, 1, rec["loading"])
}

func TestProtectAdministratorBypass(t *testing.T) {
	res := serve(newGuardMiddleware(t, nil), newProvider(t, "admin-token"), "/sistema/permisos")
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestProtectWithoutTemplatesFallsBackToStatusText(t *testing.T) {
	res := serve(guard.Middleware{}, newProvider(t, "instructor-token"), "/finanzas/pagos")
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "0; url=/dashboard", res.Header().Get("Refresh"))
}
