package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials indicates a rejected email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account exists but may not sign in.
	ErrAccountLocked = errors.New("account locked")
	// ErrUnauthorized indicates the stored credential is invalid or expired.
	ErrUnauthorized = errors.New("credential rejected")
	// ErrValidation indicates the service rejected submitted fields.
	ErrValidation = errors.New("validation failed")
	// ErrUnavailable indicates the service could not be reached.
	ErrUnavailable = errors.New("authentication service unavailable")
	// ErrRejected indicates any other refusal by the service.
	ErrRejected = errors.New("request rejected")
	// ErrMalformedResponse indicates the service answered with an unusable payload.
	ErrMalformedResponse = errors.New("malformed authentication response")
)

// ServiceError describes a failure reported by the authentication service.
type ServiceError struct {
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth: %v (status %d)", e.Err, e.Status)
	}
	return fmt.Sprintf("auth: %v (status %d): %s", e.Err, e.Status, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// FieldErrors flattens per-field messages reported by the service into one
// line per field, translating known validation rules.
func FieldErrors(err error) map[string]string {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || len(svcErr.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(svcErr.Fields))
	for field, rules := range svcErr.Fields {
		messages := make([]string, 0, len(rules))
		for _, rule := range rules {
			messages = append(messages, RuleMessage(rule))
		}
		sort.Strings(messages)
		out[field] = strings.Join(messages, ". ")
	}
	return out
}

// UserMessage maps an authentication error to text safe to show in the UI.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Correo o contraseña incorrectos"
	case errors.Is(err, ErrAccountLocked):
		return "La cuenta está bloqueada"
	case errors.Is(err, ErrValidation):
		var svcErr *ServiceError
		if errors.As(err, &svcErr) && svcErr.Message != "" {
			return svcErr.Message
		}
		return "Revisa los datos del formulario"
	case errors.Is(err, ErrUnauthorized):
		return "La sesión ha expirado"
	case errors.Is(err, ErrUnavailable):
		return "El servicio de autenticación no está disponible"
	default:
		return "No se pudo completar la operación"
	}
}
