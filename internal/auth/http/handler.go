// Package authhttp serves the login, registration, logout and profile refresh
// pages of the dashboard.
package authhttp

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      auth.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/registro", h.showRegister)
	r.Post("/registro", h.handleRegister)
	r.Post("/logout", h.handleLogout)
	r.Post("/perfil/refrescar", h.handleRefresh)
}

type loginForm struct {
	Email string
}

type loginPageData struct {
	Form   loginForm
	Next   string
	Errors map[string]string
}

type registerForm struct {
	Name  string
	Email string
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	snap := session.SnapshotFromContext(r.Context())
	next := r.URL.Query().Get("next")
	if snap.Authenticated() && snap.Role().Valid() {
		http.Redirect(w, r, landingFor(snap.Role(), next), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/login.html", "Iniciar sesión", loginPageData{Next: safeNext(next)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	creds := auth.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue("next"))
	data := loginPageData{Form: loginForm{Email: creds.Email}, Next: next}

	if fields := auth.ValidationFields(h.validator.Struct(creds)); len(fields) > 0 {
		data.Errors = formErrors(fields)
		h.render(w, r, http.StatusUnprocessableEntity, "pages/login.html", "Iniciar sesión", data)
		return
	}

	provider := session.FromContext(r.Context())
	if provider == nil {
		h.logger.Error("session provider missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := provider.Login(r.Context(), creds); err != nil {
		h.logger.Info("login failed", slog.String("email", creds.Email), slog.Any("error", err))
		data.Errors = map[string]string{"general": auth.UserMessage(err)}
		h.render(w, r, failureStatus(err), "pages/login.html", "Iniciar sesión", data)
		return
	}

	h.signedIn(w, r, provider, next, "Bienvenido de nuevo")
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	snap := session.SnapshotFromContext(r.Context())
	if snap.Authenticated() && snap.Role().Valid() {
		http.Redirect(w, r, rbac.DefaultRoute(snap.Role()), http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "pages/registro.html", "Crear cuenta", registerPageData{})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	reg := auth.Registration{
		Name:                 strings.TrimSpace(r.PostFormValue("name")),
		Email:                strings.TrimSpace(r.PostFormValue("email")),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}
	data := registerPageData{Form: registerForm{Name: reg.Name, Email: reg.Email}}

	if fields := auth.ValidationFields(h.validator.Struct(reg)); len(fields) > 0 {
		data.Errors = formErrors(fields)
		h.render(w, r, http.StatusUnprocessableEntity, "pages/registro.html", "Crear cuenta", data)
		return
	}

	provider := session.FromContext(r.Context())
	if provider == nil {
		h.logger.Error("session provider missing during registration")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := provider.Register(r.Context(), reg); err != nil {
		h.logger.Info("registration failed", slog.String("email", reg.Email), slog.Any("error", err))
		data.Errors = auth.FieldErrors(err)
		if data.Errors == nil {
			data.Errors = make(map[string]string)
		}
		data.Errors["general"] = auth.UserMessage(err)
		h.render(w, r, failureStatus(err), "pages/registro.html", "Crear cuenta", data)
		return
	}

	h.signedIn(w, r, provider, "", "Tu cuenta ha sido creada")
}

func (h *Handler) signedIn(w http.ResponseWriter, r *http.Request, provider *session.Provider, next, greeting string) {
	sess := shared.SessionFromContext(r.Context())
	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: greeting})
	}
	http.Redirect(w, r, landingFor(provider.Role(), next), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if provider := session.FromContext(r.Context()); provider != nil {
		if err := provider.Logout(r.Context()); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	sess := shared.SessionFromContext(r.Context())
	h.sessionManager.Renew(sess)
	h.csrfManager.Rotate(sess)
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "info", Message: "Has cerrado sesión"})
	}
	http.Redirect(w, r, rbac.LoginRoute, http.StatusSeeOther)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	provider := session.FromContext(r.Context())
	if provider == nil {
		http.Redirect(w, r, rbac.LoginRoute, http.StatusSeeOther)
		return
	}
	provider.Refresh(r.Context())
	snap := provider.Snapshot()
	if !snap.Authenticated() {
		http.Redirect(w, r, rbac.LoginRoute, http.StatusSeeOther)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Datos actualizados"})
	}
	http.Redirect(w, r, landingFor(snap.Role(), "/perfil"), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.Render(w, status, name, viewData); err != nil {
		h.logger.Error("render auth page", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func formErrors(fields map[string][]string) map[string]string {
	out := make(map[string]string, len(fields))
	for field, rules := range fields {
		if len(rules) > 0 {
			out[field] = auth.RuleMessage(rules[0])
		}
	}
	return out
}

func failureStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, auth.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// safeNext keeps only same-site absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return next
}

// landingFor returns next when role may open it, the role's default route
// otherwise.
func landingFor(role rbac.Role, next string) string {
	next = safeNext(next)
	if next != "" {
		if u, err := url.Parse(next); err == nil && rbac.CanAccessRoute(role, u.Path) {
			return next
		}
	}
	return rbac.DefaultRoute(role)
}
