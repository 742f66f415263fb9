package session

import (
	"context"

	"github.com/cursos-vacacionales/panel/internal/rbac"
)

type providerContextKey struct{}

// NewContext stores the provider in context.
func NewContext(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerContextKey{}, p)
}

// FromContext extracts the provider from context.
func FromContext(ctx context.Context) *Provider {
	p, _ := ctx.Value(providerContextKey{}).(*Provider)
	return p
}

// RoleFromContext returns the role of the provider in context, RoleNone when
// there is none.
func RoleFromContext(ctx context.Context) rbac.Role {
	p := FromContext(ctx)
	if p == nil {
		return rbac.RoleNone
	}
	return p.Role()
}

// SnapshotFromContext returns the current snapshot, or an initializing one when
// no provider is attached.
func SnapshotFromContext(ctx context.Context) Snapshot {
	p := FromContext(ctx)
	if p == nil {
		return Snapshot{State: StateInitializing, Loading: true}
	}
	return p.Snapshot()
}
