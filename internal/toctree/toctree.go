// Package toctree assembles the site navigation tree from toctree
// directive calls. Pages claim their children during the build phase; the
// tree is finalized once, after every page has been built, and rendered
// into nested lists for the theme.
package toctree

import (
	"html"
	"sort"
	"strings"

	"git.home.luguber.info/inful/rocket/internal/page"
)

// RootSlug is the slug whose toctree entries form the top level of the
// navigation.
const RootSlug = "index"

type entry struct {
	slug     page.Slug
	title    string
	parent   *entry
	children []*entry
}

// Tree collects parent→child navigation edges. A child keeps the first
// parent that claims it; later claims only contribute a title. After
// Finish the tree is frozen.
type Tree struct {
	root     page.Slug
	entries  map[page.Slug]*entry
	order    []page.Slug
	finished bool
}

// New returns an empty tree rooted at the index page.
func New() *Tree {
	return &Tree{
		root:    page.NewSlug(RootSlug),
		entries: make(map[page.Slug]*entry),
	}
}

func (t *Tree) ensure(slug page.Slug) *entry {
	if e, ok := t.entries[slug]; ok {
		return e
	}
	e := &entry{slug: slug}
	t.entries[slug] = e
	t.order = append(t.order, slug)
	return e
}

// isAncestor reports whether a is an ancestor of e (or e itself).
func isAncestor(a, e *entry) bool {
	for ; e != nil; e = e.parent {
		if e == a {
			return true
		}
	}
	return false
}

// Add records child under parent with an optional explicit title (empty
// means the title is filled in from page titles at Finish). Calls after
// Finish are ignored.
func (t *Tree) Add(parent, child page.Slug, title string) {
	if t.finished {
		return
	}

	pe := t.ensure(parent)
	ce := t.ensure(child)

	if ce.title == "" && title != "" {
		ce.title = title
	}
	if ce.parent == nil && ce != pe && !isAncestor(ce, pe) {
		ce.parent = pe
		pe.children = append(pe.children, ce)
	}
}

// Finish freezes the tree: entries without an explicit title take the
// built page's title (falling back to the slug), and every built page not
// claimed by any toctree is attached under the root so the navigation
// reaches the whole site. Calling Finish again has no effect.
func (t *Tree) Finish(titles map[page.Slug]string) {
	if t.finished {
		return
	}
	t.finished = true

	root := t.ensure(t.root)

	for _, slug := range t.order {
		e := t.entries[slug]
		if e.title == "" {
			e.title = titles[slug]
		}
		if e.title == "" {
			e.title = slug.String()
		}
	}

	orphans := make([]page.Slug, 0)
	for slug := range titles {
		if slug == t.root {
			continue
		}
		if e, ok := t.entries[slug]; ok {
			if e.parent == nil {
				orphans = append(orphans, slug)
			}
			continue
		}
		orphans = append(orphans, slug)
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].String() < orphans[j].String()
	})

	for _, slug := range orphans {
		e := t.ensure(slug)
		if e.title == "" {
			e.title = titles[slug]
		}
		if e.title == "" {
			e.title = slug.String()
		}
		if e.parent == nil && e != root {
			e.parent = root
			root.children = append(root.children, e)
		}
	}
}

// Finished reports whether the tree has been frozen.
func (t *Tree) Finished() bool {
	return t.finished
}

// HTML renders the navigation as nested lists, marking the current page.
func (t *Tree) HTML(current page.Slug, pretty bool) string {
	root, ok := t.entries[t.root]
	if !ok || len(root.children) == 0 {
		return ""
	}

	var b strings.Builder
	writeList(&b, root.children, current, pretty)
	return b.String()
}

func writeList(b *strings.Builder, entries []*entry, current page.Slug, pretty bool) {
	b.WriteString(`<ul class="toctree">`)
	for _, e := range entries {
		class := "toctree-item"
		if e.slug == current {
			class += " current"
		}
		b.WriteString(`<li class="` + class + `"><a href="`)
		b.WriteString(html.EscapeString(e.slug.URLPath(pretty)))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(e.title))
		b.WriteString(`</a>`)
		if len(e.children) > 0 {
			writeList(b, e.children, current, pretty)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
}
