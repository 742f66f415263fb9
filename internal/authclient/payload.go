package authclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/rbac"
)

// flexibleID accepts both numeric and string identifiers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

type rolePayload struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type userPayload struct {
	ID    flexibleID   `json:"id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Role  *rolePayload `json:"role"`
}

type authPayload struct {
	User  *userPayload `json:"user"`
	Token string       `json:"token"`
}

type mePayload struct {
	User *userPayload `json:"user"`
}

type errorPayload struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// toDomain converts the wire user. A missing or unrecognised role slug is kept
// as rbac.RoleNone so authorization fails closed.
func (u *userPayload) toDomain() (auth.User, error) {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return auth.User{}, fmt.Errorf("authclient: user without id: %w", auth.ErrMalformedResponse)
	}
	user := auth.User{
		ID:    string(u.ID),
		Name:  u.Name,
		Email: u.Email,
	}
	if u.Role != nil {
		user.Role = rbac.ParseRole(u.Role.Slug)
		user.RoleName = u.Role.Name
	}
	return user, nil
}

func (p authPayload) result() (auth.Result, error) {
	if strings.TrimSpace(p.Token) == "" {
		return auth.Result{}, fmt.Errorf("authclient: missing token: %w", auth.ErrMalformedResponse)
	}
	user, err := p.User.toDomain()
	if err != nil {
		return auth.Result{}, err
	}
	return auth.Result{User: user, Token: p.Token}, nil
}
