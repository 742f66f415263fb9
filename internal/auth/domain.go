// Package auth holds the identity types exchanged with the authentication
// service and the error taxonomy for authentication failures.
package auth

import (
	"github.com/cursos-vacacionales/panel/internal/rbac"
)

// User represents an authenticated account as reported by the authentication service.
type User struct {
	ID       string
	Name     string
	Email    string
	Role     rbac.Role
	RoleName string
}

// Credentials are submitted on login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Registration carries the profile fields submitted on sign-up.
type Registration struct {
	Name                 string `json:"name" validate:"required,max=120"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// Result is returned by a successful login or registration.
type Result struct {
	User  User
	Token string
}
