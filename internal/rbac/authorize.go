package rbac

import (
	"path"
	"strings"
)

// HasPermission reports whether role may perform action on module. Every
// ambiguous input resolves to false; the administrator is granted everything.
func HasPermission(role Role, module Module, action Action) bool {
	if role == RoleNone {
		return false
	}
	if role == RoleAdministrator {
		return true
	}
	entries, ok := permissionTable[role]
	if !ok {
		return false
	}
	for _, entry := range entries {
		if entry.Module == module {
			return entry.Actions.Has(action)
		}
	}
	return false
}

// HasPermissionSlug is HasPermission over raw slugs. An empty action means view.
func HasPermissionSlug(role, module, action string) bool {
	r := ParseRole(role)
	if r == RoleNone {
		return false
	}
	a, ok := ParseAction(action)
	if !ok {
		return r == RoleAdministrator
	}
	if r == RoleAdministrator {
		return true
	}
	return HasPermission(r, ParseModule(module), a)
}

// AllowedActions returns the actions role holds on module.
func AllowedActions(role Role, module Module) ActionSet {
	var set ActionSet
	for _, a := range Actions() {
		if HasPermission(role, module, a) {
			set |= ActionSet(a)
		}
	}
	return set
}

// AllowedModules returns the modules on which role may at least view.
func AllowedModules(role Role) []Module {
	var out []Module
	for _, m := range Modules() {
		if HasPermission(role, m, ActionView) {
			out = append(out, m)
		}
	}
	return out
}

// CanAccessRoute reports whether role may open pathname. A prefix matches the
// path itself or any path below it; "/cursos" does not match "/cursos2".
func CanAccessRoute(role Role, pathname string) bool {
	if role == RoleNone {
		return false
	}
	if role == RoleAdministrator {
		return true
	}
	prefixes, ok := routeTable[role]
	if !ok || pathname == "" {
		return false
	}
	cleaned := path.Clean("/" + pathname)
	for _, prefix := range prefixes {
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+"/") {
			return true
		}
	}
	return false
}

// DefaultRoute is the landing page for role, used whenever access is denied.
func DefaultRoute(role Role) string {
	switch role {
	case RoleAdministrator, RoleTutor, RoleInstructor:
		return DashboardRoute
	default:
		return LoginRoute
	}
}

// IsAdmin reports whether role is the administrator.
func IsAdmin(role Role) bool { return role.IsAdmin() }

// IsTutor reports whether role is the tutor.
func IsTutor(role Role) bool { return role.IsTutor() }

// IsInstructor reports whether role is the instructor.
func IsInstructor(role Role) bool { return role.IsInstructor() }
