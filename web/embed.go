package web

import (
	"embed"
	"io/fs"
)

// Templates holds the dashboard layouts, partials and pages.
//
//go:embed templates/**/*.html
var Templates embed.FS

//go:embed static/**/*
var static embed.FS

// TemplatePatterns lists the globs parsed into the view engine, layouts first.
var TemplatePatterns = []string{
	"templates/layouts/*.html",
	"templates/partials/*.html",
	"templates/pages/*.html",
}

// StaticFiles exposes the stylesheet tree rooted at static/, as served under /static/.
func StaticFiles() (fs.FS, error) {
	return fs.Sub(static, "static")
}
