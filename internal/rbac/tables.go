package rbac

// Well known navigation targets.
const (
	LoginRoute     = "/login"
	RegisterRoute  = "/registro"
	DashboardRoute = "/dashboard"
)

// permissionTable is read-only after package init. The administrator role is
// intentionally absent: it is granted everything without a lookup.
var permissionTable = map[Role][]Entry{
	RoleTutor: {
		{Module: ModuleDashboard, Actions: NewActionSet(ActionView)},
		{Module: ModuleParticipants, Actions: NewActionSet(ActionView, ActionCreate, ActionEdit)},
		{Module: ModuleEnrollments, Actions: NewActionSet(ActionView, ActionCreate)},
		{Module: ModuleCourses, Actions: NewActionSet(ActionView)},
		{Module: ModuleInvoices, Actions: NewActionSet(ActionView)},
		{Module: ModulePayments, Actions: NewActionSet(ActionView)},
		{Module: ModuleProfile, Actions: NewActionSet(ActionView, ActionEdit)},
	},
	RoleInstructor: {
		{Module: ModuleDashboard, Actions: NewActionSet(ActionView)},
		{Module: ModuleCourses, Actions: NewActionSet(ActionView)},
		{Module: ModuleGroups, Actions: NewActionSet(ActionView, ActionEdit)},
		{Module: ModuleAthletes, Actions: NewActionSet(ActionView)},
		{Module: ModuleProfile, Actions: NewActionSet(ActionView, ActionEdit)},
	},
}

// routeTable lists the path prefixes each non-administrator role may open.
var routeTable = map[Role][]string{
	RoleTutor: {
		"/dashboard",
		"/mis-participantes",
		"/cursos",
		"/inscripciones",
		"/mis-facturas",
		"/perfil",
	},
	RoleInstructor: {
		"/dashboard",
		"/cursos",
		"/grupos",
		"/deportistas",
		"/perfil",
	},
}

// Route describes a navigable page and the module it belongs to.
type Route struct {
	Path   string
	Module Module
}

// knownRoutes is the full navigation of the dashboard.
var knownRoutes = []Route{
	{Path: "/dashboard", Module: ModuleDashboard},
	{Path: "/cursos", Module: ModuleCourses},
	{Path: "/grupos", Module: ModuleGroups},
	{Path: "/inscripciones", Module: ModuleEnrollments},
	{Path: "/deportistas", Module: ModuleAthletes},
	{Path: "/mis-participantes", Module: ModuleParticipants},
	{Path: "/mis-facturas", Module: ModuleInvoices},
	{Path: "/finanzas/facturas", Module: ModuleInvoices},
	{Path: "/finanzas/pagos", Module: ModulePayments},
	{Path: "/sistema/usuarios", Module: ModuleUsers},
	{Path: "/sistema/permisos", Module: ModulePermissions},
	{Path: "/perfil", Module: ModuleProfile},
}

// PermissionsFor returns a copy of the permission entries granted to role.
func PermissionsFor(role Role) []Entry {
	entries := permissionTable[role]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// RoutesFor returns a copy of the route prefixes granted to role.
func RoutesFor(role Role) []string {
	routes := routeTable[role]
	out := make([]string, len(routes))
	copy(out, routes)
	return out
}

// KnownRoutes returns every navigable page.
func KnownRoutes() []Route {
	out := make([]Route, len(knownRoutes))
	copy(out, knownRoutes)
	return out
}

// NavigationFor returns the known routes role may open, in navigation order.
func NavigationFor(role Role) []Route {
	var out []Route
	for _, route := range knownRoutes {
		if CanAccessRoute(role, route.Path) {
			out = append(out, route)
		}
	}
	return out
}
