// Package guard decides, on every navigation, whether the current identity may
// see a page: show a loading frame, send the visitor to login, deny with a
// pending redirect, or render.
package guard

import (
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/session"
)

// Outcome is the result of evaluating a navigation.
type Outcome uint8

const (
	OutcomeLoading Outcome = iota
	OutcomeRedirectLogin
	OutcomeDenied
	OutcomeRender
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeDenied:
		return "denied"
	case OutcomeRender:
		return "render"
	default:
		return "unknown"
	}
}

// Decision carries the outcome and, for redirects and denials, the target.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Evaluate is the pure guard decision for a path.
func Evaluate(state session.State, role rbac.Role, path string) Decision {
	switch state {
	case session.StateInitializing:
		return Decision{Outcome: OutcomeLoading}
	case session.StateAuthenticated:
		if !rbac.CanAccessRoute(role, path) {
			return Decision{Outcome: OutcomeDenied, Target: rbac.DefaultRoute(role)}
		}
		return Decision{Outcome: OutcomeRender}
	default:
		return Decision{Outcome: OutcomeRedirectLogin, Target: rbac.LoginRoute}
	}
}

// EvaluateSnapshot evaluates a session snapshot.
func EvaluateSnapshot(snap session.Snapshot, path string) Decision {
	return Evaluate(snap.State, snap.Role(), path)
}
