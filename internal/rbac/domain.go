package rbac

import (
	"strings"

	"golang.org/x/text/cases"
)

// Role is the closed set of identities the dashboard knows about.
type Role uint8

const (
	// RoleNone is the zero value: no identity or an unrecognised one.
	RoleNone Role = iota
	RoleAdministrator
	RoleTutor
	RoleInstructor
)

var roleSlugs = map[Role]string{
	RoleAdministrator: "administrador",
	RoleTutor:         "tutor",
	RoleInstructor:    "instructor",
}

// Roles lists every assignable role in display order.
func Roles() []Role {
	return []Role{RoleAdministrator, RoleTutor, RoleInstructor}
}

// String returns the slug used by the authentication service.
func (r Role) String() string {
	return roleSlugs[r]
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	_, ok := roleSlugs[r]
	return ok
}

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool { return r == RoleAdministrator }

// IsTutor reports whether r is the tutor role.
func (r Role) IsTutor() bool { return r == RoleTutor }

// IsInstructor reports whether r is the instructor role.
func (r Role) IsInstructor() bool { return r == RoleInstructor }

var fold = cases.Fold()

func normalize(raw string) string {
	return fold.String(strings.TrimSpace(raw))
}

// ParseRole maps a role slug to a Role. Unknown slugs yield RoleNone.
func ParseRole(slug string) Role {
	slug = normalize(slug)
	if slug == "" {
		return RoleNone
	}
	for role, known := range roleSlugs {
		if known == slug {
			return role
		}
	}
	return RoleNone
}

// Module is a functional area of the dashboard to which actions are scoped.
type Module uint8

const (
	// ModuleUnknown never matches a permission entry.
	ModuleUnknown Module = iota
	ModuleDashboard
	ModuleCourses
	ModuleGroups
	ModuleEnrollments
	ModuleAthletes
	ModuleInvoices
	ModulePayments
	ModuleUsers
	ModuleParticipants
	ModuleProfile
	ModulePermissions
)

var moduleSlugs = map[Module]string{
	ModuleDashboard:    "dashboard",
	ModuleCourses:      "cursos",
	ModuleGroups:       "grupos",
	ModuleEnrollments:  "inscripciones",
	ModuleAthletes:     "deportistas",
	ModuleInvoices:     "facturas",
	ModulePayments:     "pagos",
	ModuleUsers:        "usuarios",
	ModuleParticipants: "participantes",
	ModuleProfile:      "perfil",
	ModulePermissions:  "permisos",
}

var moduleTitles = map[Module]string{
	ModuleDashboard:    "Panel",
	ModuleCourses:      "Cursos",
	ModuleGroups:       "Grupos",
	ModuleEnrollments:  "Inscripciones",
	ModuleAthletes:     "Deportistas",
	ModuleInvoices:     "Facturas",
	ModulePayments:     "Pagos",
	ModuleUsers:        "Usuarios",
	ModuleParticipants: "Mis participantes",
	ModuleProfile:      "Perfil",
	ModulePermissions:  "Permisos",
}

// Modules lists every known module in navigation order.
func Modules() []Module {
	return []Module{
		ModuleDashboard,
		ModuleCourses,
		ModuleGroups,
		ModuleEnrollments,
		ModuleAthletes,
		ModuleParticipants,
		ModuleInvoices,
		ModulePayments,
		ModuleUsers,
		ModulePermissions,
		ModuleProfile,
	}
}

func (m Module) String() string {
	return moduleSlugs[m]
}

// Title is the human readable module name.
func (m Module) Title() string {
	return moduleTitles[m]
}

// ParseModule maps a module slug to a Module, returning ModuleUnknown on a miss.
func ParseModule(slug string) Module {
	slug = normalize(slug)
	for module, known := range moduleSlugs {
		if known == slug {
			return module
		}
	}
	return ModuleUnknown
}

// Action is the unit of permission granularity.
type Action uint8

const (
	ActionView Action = 1 << iota
	ActionCreate
	ActionEdit
	ActionDelete
)

var actionSlugs = map[Action]string{
	ActionView:   "view",
	ActionCreate: "create",
	ActionEdit:   "edit",
	ActionDelete: "delete",
}

// Actions lists every action in canonical order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}
}

func (a Action) String() string {
	return actionSlugs[a]
}

// ParseAction maps an action slug to an Action. An empty slug means view; any
// other unknown slug returns ok=false.
func ParseAction(slug string) (Action, bool) {
	slug = normalize(slug)
	if slug == "" {
		return ActionView, true
	}
	for action, known := range actionSlugs {
		if known == slug {
			return action, true
		}
	}
	return 0, false
}

// ActionSet is a bitmask of actions.
type ActionSet uint8

// AllActions grants every action.
const AllActions = ActionSet(ActionView | ActionCreate | ActionEdit | ActionDelete)

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	var set ActionSet
	for _, a := range actions {
		set |= ActionSet(a)
	}
	return set
}

// Has reports whether a is a member of the set. The zero Action is never a member.
func (s ActionSet) Has(a Action) bool {
	return a != 0 && s&ActionSet(a) == ActionSet(a)
}

// List expands the set in canonical order.
func (s ActionSet) List() []Action {
	out := make([]Action, 0, 4)
	for _, a := range Actions() {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// Entry grants a set of actions on one module.
type Entry struct {
	Module  Module
	Actions ActionSet
}
