package eval

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/rocket/internal/ast"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/logfields"
	"git.home.luguber.info/inful/rocket/internal/page"
)

// Dummy ignores its arguments and returns empty text. Used for inert
// directives like table and null.
type Dummy struct{}

func (Dummy) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	return "", nil
}

// Version emits the project version, optionally truncated to as many
// dot-separated components as its argument has.
type Version struct {
	parts []string
}

func NewVersion(version string) Version {
	return Version{parts: strings.Split(version, ".")}
}

func (v Version) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	switch len(args) {
	case 0:
		return strings.Join(v.parts, "."), nil
	case 1:
		arg, err := ev.Evaluate(args[0])
		if err != nil {
			return "", err
		}
		if arg == "" {
			return "", nil
		}

		n := strings.Count(arg, ".") + 1
		if n > len(v.parts) {
			n = len(v.parts)
		}
		return strings.Join(v.parts[:n], "."), nil
	default:
		return "", rerrors.Arity("version", "expected at most one argument")
	}
}

// Admonition renders a call-out box. One argument is the body under the
// default title; two arguments are an explicit title and the body.
type Admonition struct {
	title string
	class string
}

func NewAdmonition(title, class string) Admonition {
	return Admonition{title: title, class: class}
}

func (a Admonition) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	title := a.title
	var raw string
	switch len(args) {
	case 1:
		body, err := ev.Evaluate(args[0])
		if err != nil {
			return "", err
		}
		raw = body
	case 2:
		t, err := ev.Evaluate(args[0])
		if err != nil {
			return "", err
		}
		body, err := ev.Evaluate(args[1])
		if err != nil {
			return "", err
		}
		title = t
		raw = body
	default:
		return "", rerrors.Arity("admonition", "expected a body and an optional title")
	}

	body, _, err := ev.markdown.Render(raw)
	if err != nil {
		return "", rerrors.RenderFailed("admonition", err)
	}

	return fmt.Sprintf(
		"<div class=\"admonition admonition-%s\"><span class=\"admonition-title admonition-title-%s\">%s</span>%s</div>\n",
		a.class, a.class, title, body,
	), nil
}

// Concat evaluates every argument in order and joins the results.
type Concat struct{}

func (Concat) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	var b strings.Builder
	for _, arg := range args {
		out, err := ev.Evaluate(arg)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// Markdown concatenates its evaluated arguments and renders them. A title
// extracted from the text is recorded into the page theme config unless
// one is already set.
type Markdown struct{}

func (Markdown) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	body, err := Concat{}.Handle(ev, args)
	if err != nil {
		return "", err
	}

	rendered, title, err := ev.markdown.Render(body)
	if err != nil {
		return "", rerrors.RenderFailed("markdown", err)
	}

	if title != "" {
		if _, set := ev.themeConfig["title"]; !set {
			ev.themeConfig["title"] = title
		}
	}

	return strings.TrimSpace(rendered), nil
}

// Template is a user macro created by define-template: positional ${N}
// substitution with per-argument regular-expression checkers.
type Template struct {
	template string
	checkers []*regexp.Regexp
}

func NewTemplate(template string, checkers []*regexp.Regexp) Template {
	return Template{template: template, checkers: checkers}
}

var templateSlot = regexp.MustCompile(`\$\{(\d)\}`)

func (t Template) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	count := len(args)
	if len(t.checkers) > count {
		count = len(t.checkers)
	}

	values := make([]string, count)
	for i := 0; i < count; i++ {
		if i < len(args) {
			v, err := ev.Evaluate(args[i])
			if err != nil {
				return "", err
			}
			values[i] = v
		}
		if i < len(t.checkers) && !t.checkers[i].MatchString(values[i]) {
			return "", rerrors.Validation("template", fmt.Sprintf("argument %d does not match %q", i, t.checkers[i].String()))
		}
	}

	result := templateSlot.ReplaceAllStringFunc(t.template, func(m string) string {
		n, _ := strconv.Atoi(m[2 : len(m)-1])
		if n < len(values) {
			return values[n]
		}
		return ""
	})
	return result, nil
}

// DefineTemplate registers a Template under a new directive name. The
// registration is project-wide and survives page resets.
type DefineTemplate struct{}

func (DefineTemplate) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args) < 2 {
		return "", rerrors.Arity("define-template", "expected a name and a template")
	}

	name, err := ev.Evaluate(args[0])
	if err != nil {
		return "", err
	}
	template, err := ev.Evaluate(args[1])
	if err != nil {
		return "", err
	}

	checkers := make([]*regexp.Regexp, 0, len(args)-2)
	for _, arg := range args[2:] {
		pattern, err := ev.Evaluate(arg)
		if err != nil {
			return "", err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", rerrors.Validation("define-template", fmt.Sprintf("invalid checker pattern %q", pattern))
		}
		checkers = append(checkers, re)
	}

	ev.Register(name, NewTemplate(template, checkers))
	return "", nil
}

// DefinitionList renders (term body) pairs as definition list items. Any
// argument that is not a 2-node group fails the whole call.
type DefinitionList struct{}

func (DefinitionList) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	var b strings.Builder
	for _, arg := range args {
		if arg.IsLeaf() || len(arg.Children) != 2 {
			return "", rerrors.Validation("definition-list", "every entry must be a (term body) pair")
		}

		term, err := ev.Evaluate(arg.Children[0])
		if err != nil {
			return "", err
		}
		body, err := ev.Evaluate(arg.Children[1])
		if err != nil {
			return "", err
		}
		definition, _, err := ev.markdown.Render(body)
		if err != nil {
			return "", rerrors.RenderFailed("definition-list", err)
		}

		fmt.Fprintf(&b, "<dt>%s</dt><dd>%s</dd>", term, definition)
	}
	return b.String(), nil
}

// Include parses another source file, resolved relative to the including
// file's directory, and inlines its evaluated output.
type Include struct{}

func (Include) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args) != 1 {
		return "", rerrors.Arity("include", "expected exactly one path")
	}

	target, err := ev.Evaluate(args[0])
	if err != nil {
		return "", err
	}

	path := target
	if !filepath.IsAbs(path) {
		prefix := ""
		if src, ok := ev.parser.SourcePath(args[0].File); ok {
			prefix = filepath.Dir(src)
		}
		path = filepath.Join(prefix, path)
	}

	node, err := ev.parser.Parse(path)
	if err != nil {
		ev.logger.Error("Failed to parse included file",
			logfields.Source(path),
			logfields.Error(err))
		return "", ev.errorAt(args[0], err)
	}

	return ev.Evaluate(node)
}

// Import is include for side effects only: bindings and registrations
// stick, output is discarded.
type Import struct{}

func (Import) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if _, err := (Include{}).Handle(ev, args); err != nil {
		return "", err
	}
	return "", nil
}

// Let installs call-scoped bindings from an even-length key/value group,
// concatenates the remaining arguments, then restores every key exactly to
// its pre-call state, unconditionally.
type Let struct{}

func (Let) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args) < 1 {
		return "", rerrors.Arity("let", "expected a binding group")
	}

	kvs := args[0]
	if kvs.IsLeaf() {
		return "", rerrors.Arity("let", "bindings must be a group of key/value pairs")
	}
	if len(kvs.Children)%2 != 0 {
		return "", rerrors.Arity("let", "binding group must have an even number of nodes")
	}

	type savedBinding struct {
		key     string
		prev    *StoredValue
		existed bool
	}
	var saved []savedBinding

	restore := func() {
		for i := len(saved) - 1; i >= 0; i-- {
			s := saved[i]
			if s.existed {
				ev.ctx[s.key] = s.prev
			} else {
				delete(ev.ctx, s.key)
			}
		}
	}

	for i := 0; i < len(kvs.Children); i += 2 {
		key, err := ev.Evaluate(kvs.Children[i])
		if err != nil {
			restore()
			return "", err
		}
		value, err := ev.Evaluate(kvs.Children[i+1])
		if err != nil {
			restore()
			return "", err
		}

		prev, existed := ev.ctx[key]
		ev.ctx[key] = &StoredValue{Node: ast.NewText(value)}
		saved = append(saved, savedBinding{key: key, prev: prev, existed: existed})
	}

	result, err := Concat{}.Handle(ev, args[1:])
	restore()
	return result, err
}

// Define binds a value into the page-scoped context. define(key value)
// stores the node unevaluated, so later references see redefinitions of
// names it uses; define(evaluate key value) freezes the evaluated text.
type Define struct{}

func (Define) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", rerrors.Arity("define", "expected (key value) or (evaluate key value)")
	}

	first, err := ev.Evaluate(args[0])
	if err != nil {
		return "", err
	}

	var key string
	var valueNode *ast.Node
	eager := false

	if len(args) == 3 {
		if first != "evaluate" {
			return "", rerrors.Arity("define", "three-argument form must start with evaluate")
		}
		key, err = ev.Evaluate(args[1])
		if err != nil {
			return "", err
		}
		valueNode = args[2]
		eager = true
	} else {
		key = first
		valueNode = args[1]
	}

	var stored *ast.Node
	if eager {
		text, err := ev.Evaluate(valueNode)
		if err != nil {
			return "", err
		}
		stored = ast.NewTextAt(text, valueNode.File, valueNode.Line, valueNode.Column)
	} else {
		stored = valueNode
	}

	ev.ctx[key] = &StoredValue{Node: stored}
	return "", nil
}

// ThemeConfig overwrites page theme configuration from evaluated key/value
// pairs.
type ThemeConfig struct{}

func (ThemeConfig) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args)%2 != 0 {
		return "", rerrors.Arity("theme-config", "expected key/value pairs")
	}

	for i := 0; i < len(args); i += 2 {
		key, err := ev.Evaluate(args[i])
		if err != nil {
			return "", err
		}
		value, err := ev.Evaluate(args[i+1])
		if err != nil {
			return "", err
		}
		ev.themeConfig[key] = value
	}
	return "", nil
}

// TocTree declares the current page's children in the navigation tree.
// Entries are either a bare slug or a (title slug) group. The argument
// list is applied atomically: one malformed entry fails the whole call and
// the tree is left untouched.
type TocTree struct{}

func (TocTree) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	type tocEntry struct {
		slug  page.Slug
		title string
	}

	entries := make([]tocEntry, 0, len(args))
	for _, arg := range args {
		if arg.IsLeaf() {
			entries = append(entries, tocEntry{slug: page.NewSlug(arg.Text)})
			continue
		}
		if len(arg.Children) != 2 {
			return "", rerrors.Validation("toctree", "entry must be a slug or a (title slug) pair")
		}

		title, err := ev.Evaluate(arg.Children[0])
		if err != nil {
			return "", err
		}
		slug, err := ev.Evaluate(arg.Children[1])
		if err != nil {
			return "", err
		}
		entries = append(entries, tocEntry{slug: page.NewSlug(slug), title: title})
	}

	current := ev.Slug()
	for _, e := range entries {
		ev.toctree.Add(current, e.slug, e.title)
	}
	return "", nil
}

// Heading emits a markdown heading at a fixed level. The two-argument form
// (refid title) additionally registers a reference anchor on the current
// page.
type Heading struct {
	prefix string
}

func NewHeading(level int) Heading {
	if level < 1 || level > 6 {
		panic("heading level out of range")
	}
	return Heading{prefix: strings.Repeat("#", level)}
}

func (h Heading) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	switch len(args) {
	case 1:
		text, err := ev.Evaluate(args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("\n%s %s\n", h.prefix, text), nil
	case 2:
		refid, err := ev.Evaluate(args[0])
		if err != nil {
			return "", err
		}
		title, err := ev.Evaluate(args[1])
		if err != nil {
			return "", err
		}
		ev.AddRefDef(refid, title)
		return fmt.Sprintf("\n%s %s\n", h.prefix, title), nil
	default:
		return "", rerrors.Arity("heading", "expected a title and an optional reference id")
	}
}

// RefDefDirective registers a reference anchor without emitting anything.
type RefDefDirective struct{}

func (RefDefDirective) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args) != 2 {
		return "", rerrors.Arity("define-ref", "expected an id and a title")
	}

	id, err := ev.Evaluate(args[0])
	if err != nil {
		return "", err
	}
	title, err := ev.Evaluate(args[1])
	if err != nil {
		return "", err
	}

	ev.AddRefDef(id, title)
	return "", nil
}

// RefDirective emits a markdown link to a reference anchor. The path, and
// the title when not given explicitly, are placeholder tokens resolved
// during the link phase, so forward references across pages work.
type RefDirective struct{}

func (RefDirective) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", rerrors.Arity("ref", "expected a reference id and an optional title")
	}

	refid, err := ev.Evaluate(args[0])
	if err != nil {
		return "", err
	}

	var title string
	if len(args) == 2 {
		title, err = ev.Evaluate(args[1])
		if err != nil {
			return "", err
		}
	} else {
		title = ev.GetPlaceholder(refid, RefTitle)
	}

	path := ev.GetPlaceholder(refid, RefPath)
	return fmt.Sprintf("[%s](%s)", title, path), nil
}

// Steps renders a numbered step list. Each argument is a 3-node group
// whose first slot is ignored, or a leaf naming a context variable bound
// to such a group. Any malformed entry fails the whole directive with no
// partial output.
type Steps struct{}

func (Steps) Handle(ev *Evaluator, args []*ast.Node) (string, error) {
	stepParts := func(children []*ast.Node) (string, string, error) {
		if len(children) != 3 {
			return "", "", rerrors.Validation("steps", "step must be a group of three nodes")
		}
		title, err := ev.Evaluate(children[1])
		if err != nil {
			return "", "", err
		}
		body, err := ev.Evaluate(children[2])
		if err != nil {
			return "", "", err
		}
		return title, body, nil
	}

	var b strings.Builder
	b.WriteString(`<div class="steps">`)

	for i, stepNode := range args {
		var title, body string
		var err error

		if stepNode.IsLeaf() {
			sv, ok := ev.ctx[stepNode.Text]
			if !ok {
				return "", rerrors.Validation("steps", fmt.Sprintf("unknown step variable %q", stepNode.Text))
			}
			if sv.Node.IsLeaf() {
				return "", rerrors.Validation("steps", fmt.Sprintf("step variable %q is not bound to a group", stepNode.Text))
			}
			title, body, err = stepParts(sv.Node.Children)
		} else {
			title, body, err = stepParts(stepNode.Children)
		}
		if err != nil {
			return "", err
		}

		titleHTML, _, err := ev.markdown.Render(title)
		if err != nil {
			return "", rerrors.RenderFailed("steps", err)
		}
		bodyHTML, _, err := ev.markdown.Render(body)
		if err != nil {
			return "", rerrors.RenderFailed("steps", err)
		}

		b.WriteString(`<div class="steps__step"><div class="steps__bullet"><div class="steps__stepnumber">`)
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(`</div></div>`)
		fmt.Fprintf(&b, `<h4>%s</h4><div>%s</div></div>`, strings.TrimSpace(titleHTML), strings.TrimSpace(bodyHTML))
	}

	b.WriteString(`</div>`)
	return b.String(), nil
}
