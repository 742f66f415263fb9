package authhttp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursos-vacacionales/panel/internal/auth"
	authhttp "github.com/cursos-vacacionales/panel/internal/auth/http"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/internal/view"
	_ "github.com/cursos-vacacionales/panel/testing"
)

type stubService struct {
	accounts    map[string]auth.User
	passwords   map[string]string
	registerErr error
	logouts     []string
}

func newStubService() *stubService {
	return &stubService{
		accounts: map[string]auth.User{
			"tutor-token": {ID: "2", Name: "Tutora", Email: "tutor@example.com", Role: rbac.RoleTutor},
		},
		passwords: map[string]string{"tutor@example.com": "secreto123"},
	}
}

func (s *stubService) Login(ctx context.Context, creds auth.Credentials) (auth.Result, error) {
	if s.passwords[creds.Email] != creds.Password {
		return auth.Result{}, &auth.ServiceError{Status: 401, Err: auth.ErrInvalidCredentials}
	}
	for token, user := range s.accounts {
		if user.Email == creds.Email {
			return auth.Result{User: user, Token: token}, nil
		}
	}
	return auth.Result{}, auth.ErrInvalidCredentials
}

func (s *stubService) Register(ctx context.Context, reg auth.Registration) (auth.Result, error) {
	if s.registerErr != nil {
		return auth.Result{}, s.registerErr
	}
	user := auth.User{ID: "9", Name: reg.Name, Email: reg.Email, Role: rbac.RoleTutor}
	s.accounts["new-token"] = user
	return auth.Result{User: user, Token: "new-token"}, nil
}

func (s *stubService) CurrentUser(ctx context.Context, token string) (auth.User, error) {
	user, ok := s.accounts[token]
	if !ok {
		return auth.User{}, auth.ErrUnauthorized
	}
	return user, nil
}

func (s *stubService) Logout(ctx context.Context, token string) error {
	s.logouts = append(s.logouts, token)
	return nil
}

type harness struct {
	router   chi.Router
	sessions *shared.SessionManager
	service  *stubService
	// last is the browser session of the most recent request.
	last *shared.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	router := chi.NewRouter()
	authhttp.NewHandler(nil, templates, sessionManager, csrfManager).MountRoutes(router)
	return &harness{router: router, sessions: sessionManager, service: newStubService()}
}

// do runs req through the handler with a loaded browser session, a provider
// bound to it and a final commit, the way the middleware stack does.
func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	provider := session.NewProvider(h.service, session.NewBrowserStore(sess), nil)
	provider.Init(ctx)
	ctx = session.NewContext(ctx, provider)
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	require.NoError(t, h.sessions.Commit(ctx, res, req, sess))
	h.last = sess
	return res
}

func postForm(target string, values url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func TestLoginPage(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, httptest.NewRequest(http.MethodGet, "/login?next=/cursos", nil))

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), `name="next" value="/cursos"`)
}

func TestLoginValidationErrors(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, postForm("/login", url.Values{"email": {"no-es-correo"}, "password": {"x"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "Introduce un correo válido")
	assert.Contains(t, res.Body.String(), "Debe tener al menos 8 caracteres")
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, postForm("/login", url.Values{"email": {"tutor@example.com"}, "password": {"incorrecta"}}))

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "Correo o contraseña incorrectos")
	assert.Empty(t, h.last.Get(session.CredentialKey))
}

func TestLoginSuccessStoresCredentialAndRenewsSession(t *testing.T) {
	h := newHarness(t)
	first := h.do(t, httptest.NewRequest(http.MethodGet, "/login", nil))
	before := sessionCookie(t, first)

	res := h.do(t, postForm("/login", url.Values{"email": {"tutor@example.com"}, "password": {"secreto123"}}, before))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))
	assert.Equal(t, "tutor-token", h.last.Get(session.CredentialKey))
	assert.NotEqual(t, before.Value, sessionCookie(t, res).Value)
}

func TestLoginHonoursNextWhenAllowed(t *testing.T) {
	cases := map[string]string{
		"/mis-participantes/3": "/mis-participantes/3",
		"/sistema/usuarios":    "/dashboard",
		"//evil.example.com":   "/dashboard",
		"https://evil.example": "/dashboard",
	}
	for next, expected := range cases {
		t.Run(next, func(t *testing.T) {
			h := newHarness(t)
			res := h.do(t, postForm("/login", url.Values{
				"email":    {"tutor@example.com"},
				"password": {"secreto123"},
				"next":     {next},
			}))
			assert.Equal(t, http.StatusSeeOther, res.Code)
			assert.Equal(t, expected, res.Header().Get("Location"))
		})
	}
}

func TestLoginPageRedirectsSignedInUser(t *testing.T) {
	h := newHarness(t)
	login := h.do(t, postForm("/login", url.Values{"email": {"tutor@example.com"}, "password": {"secreto123"}}))
	cookie := sessionCookie(t, login)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookie)
	res := h.do(t, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))
}

func TestLogoutClearsCredential(t *testing.T) {
	h := newHarness(t)
	login := h.do(t, postForm("/login", url.Values{"email": {"tutor@example.com"}, "password": {"secreto123"}}))

	res := h.do(t, postForm("/logout", url.Values{}, sessionCookie(t, login)))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.Empty(t, h.last.Get(session.CredentialKey))
	assert.Equal(t, []string{"tutor-token"}, h.service.logouts)
}

func TestLogoutWithoutSessionIsHarmless(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, postForm("/logout", url.Values{}))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, h.service.logouts)
}

func TestRegisterPasswordMismatch(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, postForm("/registro", url.Values{
		"name":                  {"Nueva Tutora"},
		"email":                 {"nueva@example.com"},
		"password":              {"secreto123"},
		"password_confirmation": {"otraclave1"},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "Las contraseñas no coinciden")
	assert.Contains(t, res.Body.String(), `value="Nueva Tutora"`)
}

func TestRegisterShowsServiceFieldErrors(t *testing.T) {
	h := newHarness(t)
	h.service.registerErr = &auth.ServiceError{
		Status:  422,
		Message: "El correo ya está registrado",
		Fields:  map[string][]string{"email": {"unique"}},
		Err:     auth.ErrValidation,
	}
	res := h.do(t, postForm("/registro", url.Values{
		"name":                  {"Nueva Tutora"},
		"email":                 {"tutor@example.com"},
		"password":              {"secreto123"},
		"password_confirmation": {"secreto123"},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "Ya existe una cuenta con este correo")
	assert.Contains(t, res.Body.String(), "El correo ya está registrado")
}

func TestRegisterSignsIn(t *testing.T) {
	h := newHarness(t)
	res := h.do(t, postForm("/registro", url.Values{
		"name":                  {"Nueva Tutora"},
		"email":                 {"nueva@example.com"},
		"password":              {"secreto123"},
		"password_confirmation": {"secreto123"},
	}))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard", res.Header().Get("Location"))
	assert.Equal(t, "new-token", h.last.Get(session.CredentialKey))
}

func TestRefreshDropsRevokedCredential(t *testing.T) {
	h := newHarness(t)
	login := h.do(t, postForm("/login", url.Values{"email": {"tutor@example.com"}, "password": {"secreto123"}}))
	delete(h.service.accounts, "tutor-token")

	res := h.do(t, postForm("/perfil/refrescar", url.Values{}, sessionCookie(t, login)))

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.Empty(t, h.last.Get(session.CredentialKey))
}
