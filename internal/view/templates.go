package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	"github.com/cursos-vacacionales/panel/internal/shared"
	"github.com/cursos-vacacionales/panel/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// NavItem is one entry of the sidebar.
type NavItem struct {
	Path   string
	Title  string
	Active bool
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	User        *auth.User
	Role        rbac.Role
	Nav         []NavItem
	Data        any
}

// Navigation builds the sidebar for role, marking the entry covering current.
func Navigation(role rbac.Role, current string) []NavItem {
	routes := rbac.NavigationFor(role)
	items := make([]NavItem, 0, len(routes))
	for _, route := range routes {
		title := route.Module.Title()
		if route.Path == "/mis-facturas" {
			title = "Mis facturas"
		}
		items = append(items, NavItem{
			Path:   route.Path,
			Title:  title,
			Active: current == route.Path || strings.HasPrefix(current, route.Path+"/"),
		})
	}
	return items
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	funcMap := template.FuncMap{
		"can": func(role rbac.Role, module, action string) bool {
			return rbac.HasPermissionSlug(role.String(), module, action)
		},
		"roleName": func(user *auth.User) string {
			if user == nil {
				return ""
			}
			if user.RoleName != "" {
				return user.RoleName
			}
			return user.Role.String()
		},
		"actionLabel": actionLabel,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates, web.TemplatePatterns...)
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var actionLabels = map[rbac.Action]string{
	rbac.ActionView:   "Ver",
	rbac.ActionCreate: "Crear",
	rbac.ActionEdit:   "Editar",
	rbac.ActionDelete: "Eliminar",
}

func actionLabel(a rbac.Action) string {
	return actionLabels[a]
}
