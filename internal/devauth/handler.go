package devauth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/platform/httpx"
)

// Handler exposes the authentication REST contract.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Get("/me", h.me)
	r.Post("/logout", h.logout)
}

type roleBody struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type userBody struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  roleBody `json:"role"`
}

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func toUserBody(a *Account) userBody {
	return userBody{
		ID:    a.ID,
		Name:  a.Name,
		Email: a.Email,
		Role:  roleBody{Slug: a.Role.String(), Name: roleNames[a.Role.String()]},
	}
}

var roleNames = map[string]string{
	"administrador": "Administrador",
	"tutor":         "Tutor",
	"instructor":    "Instructor",
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Message: "Solicitud no válida"})
		return
	}
	account, err := h.service.Authenticate(r.Context(), creds.Email, creds.Password)
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		httpx.JSON(w, http.StatusLocked, errorBody{Message: "La cuenta está bloqueada"})
		return
	case err != nil:
		httpx.JSON(w, http.StatusUnauthorized, errorBody{Message: "Credenciales no válidas"})
		return
	}
	h.issue(w, account, http.StatusOK)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := httpx.DecodeJSON(r, &reg); err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Message: "Solicitud no válida"})
		return
	}
	account, err := h.service.Register(r.Context(), reg)
	if err != nil {
		var svcErr *auth.ServiceError
		if errors.As(err, &svcErr) {
			httpx.JSON(w, svcErr.Status, errorBody{Message: svcErr.Message, Errors: svcErr.Fields})
			return
		}
		h.logger.Error("devauth register", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, errorBody{Message: "Error interno"})
		return
	}
	h.issue(w, account, http.StatusCreated)
}

func (h *Handler) issue(w http.ResponseWriter, account *Account, status int) {
	token, err := h.service.IssueToken(account)
	if err != nil {
		h.logger.Error("devauth issue token", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, errorBody{Message: "Error interno"})
		return
	}
	httpx.JSON(w, status, map[string]any{"user": toUserBody(account), "token": token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": toUserBody(account)})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.service.Revoke(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			httpx.JSON(w, http.StatusUnauthorized, errorBody{Message: "Credencial no válida"})
			return
		}
		h.logger.Error("devauth revoke", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, errorBody{Message: "Error interno"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*Account, bool) {
	account, _, err := h.service.Verify(r.Context(), bearerToken(r))
	if err != nil {
		httpx.JSON(w, http.StatusUnauthorized, errorBody{Message: "Credencial no válida"})
		return nil, false
	}
	return account, true
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
