package page

import (
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Slug is the canonical, extension-free, project-relative identifier of a
// page. It is the join key between the reference table, the toctree and
// output paths. Equality is by normalized path, so slugs built from
// different spellings of the same name compare equal.
type Slug struct {
	path string
}

// NewSlug canonicalizes a path-like string into a Slug. Separators are
// normalized to forward slashes and the text to Unicode NFC.
func NewSlug(s string) Slug {
	s = norm.NFC.String(s)
	s = filepath.ToSlash(s)
	s = strings.TrimPrefix(s, "./")
	s = strings.Trim(s, "/")
	return Slug{path: path.Clean(s)}
}

// SlugFromSource derives a page slug from a source file path relative to
// the content directory: the directory joined with the file stem.
func SlugFromSource(contentDir, sourcePath string) (Slug, error) {
	rel, err := filepath.Rel(contentDir, sourcePath)
	if err != nil {
		return Slug{}, err
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return NewSlug(stem), nil
}

func (s Slug) String() string { return s.path }

// IsIndex reports whether the slug names a directory index page.
func (s Slug) IsIndex() bool {
	return s.path == "index" || strings.HasSuffix(s.path, "/index")
}

// OutputPath maps the slug to the file the rendered page is written to.
// With pretty URLs every page becomes a directory index so links need no
// .html suffix; index pages already are one.
func (s Slug) OutputPath(root string, pretty bool) string {
	if !pretty || s.IsIndex() {
		return filepath.Join(root, filepath.FromSlash(s.path)+".html")
	}
	return filepath.Join(root, filepath.FromSlash(s.path), "index.html")
}

// URLPath maps the slug to the site-root-relative URL the page is served
// under.
func (s Slug) URLPath(pretty bool) string {
	if !pretty {
		return "/" + s.path + ".html"
	}
	if s.path == "index" {
		return "/"
	}
	if strings.HasSuffix(s.path, "/index") {
		return "/" + strings.TrimSuffix(s.path, "index")
	}
	return "/" + s.path + "/"
}
