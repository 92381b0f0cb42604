// Package theme renders evaluated pages through the project's HTML
// templates.
package theme

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/version"
)

// DefaultTemplate is the template every page falls back to.
const DefaultTemplate = "default"

// SiteData is the site-wide half of the template data.
type SiteData struct {
	Title     string
	Version   string
	Constants map[string]string
}

// PageData is what a theme template executes against.
type PageData struct {
	Site SiteData

	Title string
	Slug  string
	Path  string
	Body  template.HTML
	Toc   template.HTML

	// Page exposes the page's theme-config values plus git metadata for
	// keys the author left unset.
	Page map[string]string

	Generated GeneratedData
}

// GeneratedData records when and by what the page was produced.
type GeneratedData struct {
	At      string
	Date    string
	Version string
}

// NewGeneratedData stamps the current build.
func NewGeneratedData() GeneratedData {
	now := time.Now().UTC()
	return GeneratedData{
		At:      now.Format(time.RFC3339),
		Date:    now.Format("2006-01-02"),
		Version: version.Version,
	}
}

// Engine holds the parsed template set for a theme directory.
type Engine struct {
	templates *template.Template
}

// Load parses every *.html file in the theme directory. The default
// template must exist; it is the fallback for pages no rule matches.
func Load(dir string) (*Engine, error) {
	pattern := filepath.Join(dir, "*.html")
	tpl, err := template.New("").ParseGlob(pattern)
	if err != nil {
		return nil, rerrors.RenderFailed(dir, fmt.Errorf("parse theme templates: %w", err))
	}
	if tpl.Lookup(DefaultTemplate+".html") == nil {
		return nil, rerrors.ConfigInvalid(fmt.Sprintf("theme %s has no %s.html", dir, DefaultTemplate), nil)
	}
	return &Engine{templates: tpl}, nil
}

// Names lists the available template names, without the .html suffix.
func (e *Engine) Names() []string {
	var names []string
	for _, t := range e.templates.Templates() {
		if name := t.Name(); filepath.Ext(name) == ".html" {
			names = append(names, name[:len(name)-len(".html")])
		}
	}
	return names
}

// Render executes the named template with the page data.
func (e *Engine) Render(name string, data PageData) (string, error) {
	tpl := e.templates.Lookup(name + ".html")
	if tpl == nil {
		return "", rerrors.RenderFailed(name, fmt.Errorf("template %s.html not found in theme", name))
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", rerrors.RenderFailed(name, fmt.Errorf("execute template: %w", err))
	}
	return buf.String(), nil
}
