// Package eval implements the directive evaluation engine: a tree-walking
// interpreter over document node trees with registry-dispatched directives,
// a variable context supporting call-scoped and page-scoped bindings, and a
// two-phase build/link protocol that resolves cross-page references through
// opaque placeholder tokens.
//
// One Evaluator instance drives a whole project build. The directive
// registry, reference table, placeholder table and toctree accumulate
// across pages; the variable context and theme config are per-page and are
// cleared by Reset between pages.
package eval

import (
	"encoding/hex"
	"html"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/rocket/internal/ast"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/markdown"
	"git.home.luguber.info/inful/rocket/internal/metrics"
	"git.home.luguber.info/inful/rocket/internal/page"
	"git.home.luguber.info/inful/rocket/internal/parser"
	"git.home.luguber.info/inful/rocket/internal/toctree"
)

// Handler is the capability every directive implements. Arguments arrive
// unevaluated; each handler decides which to evaluate and when, which is
// what makes lazy binding forms possible.
type Handler interface {
	Handle(ev *Evaluator, args []*ast.Node) (string, error)
}

// RefField selects which part of a reference a placeholder resolves to.
type RefField uint8

const (
	RefTitle RefField = iota
	RefPath
)

func (f RefField) String() string {
	if f == RefTitle {
		return "title"
	}
	return "path"
}

// StoredValue is a shared-ownership handle to a node bound in the variable
// context. Replacing a context slot must never invalidate a handle captured
// earlier by an in-flight call, which is exactly what let's save/restore
// discipline relies on.
type StoredValue struct {
	Node *ast.Node
}

type placeholderKey struct {
	refid string
	field RefField
}

// maxDepth bounds evaluation recursion so hostile or accidental deep
// nesting fails cleanly instead of exhausting the stack.
const maxDepth = 512

// Options configures a new Evaluator. Nil collaborators are replaced with
// defaults, which keeps tests terse.
type Options struct {
	Parser     *parser.Parser
	Markdown   *markdown.Renderer
	Toctree    *toctree.Tree
	PrettyURLs bool
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// Evaluator orchestrates directive dispatch and the two build passes.
type Evaluator struct {
	parser     *parser.Parser
	markdown   *markdown.Renderer
	toctree    *toctree.Tree
	prettyURLs bool
	logger     *slog.Logger
	metrics    metrics.Recorder

	// Project-wide state, accumulated across all pages.
	registry   map[string]Handler
	refdefs    map[string]page.RefDef
	tokens     map[string]placeholderKey
	tokenCache map[placeholderKey]string
	finalized  bool

	// Per-page state, cleared by Reset.
	slug        page.Slug
	ctx         map[string]*StoredValue
	themeConfig map[string]string

	depth int
}

// New returns an Evaluator with an empty registry.
func New(opts Options) *Evaluator {
	if opts.Parser == nil {
		opts.Parser = parser.New()
	}
	if opts.Markdown == nil {
		opts.Markdown = markdown.NewRenderer("")
	}
	if opts.Toctree == nil {
		opts.Toctree = toctree.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopRecorder{}
	}

	return &Evaluator{
		parser:      opts.Parser,
		markdown:    opts.Markdown,
		toctree:     opts.Toctree,
		prettyURLs:  opts.PrettyURLs,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		registry:    make(map[string]Handler),
		refdefs:     make(map[string]page.RefDef),
		tokens:      make(map[string]placeholderKey),
		tokenCache:  make(map[placeholderKey]string),
		ctx:         make(map[string]*StoredValue),
		themeConfig: make(map[string]string),
	}
}

// Register installs or overwrites a directive. The registry is
// project-wide: macros registered while evaluating one page stay available
// to every later page.
func (ev *Evaluator) Register(name string, h Handler) {
	ev.registry[name] = h
}

// Slug returns the slug of the page currently being evaluated.
func (ev *Evaluator) Slug() page.Slug { return ev.slug }

// SetSlug identifies the page about to be evaluated.
func (ev *Evaluator) SetSlug(s page.Slug) { ev.slug = s }

// Toctree exposes the navigation tree shared with the theme renderer.
func (ev *Evaluator) Toctree() *toctree.Tree { return ev.toctree }

// Parser exposes the parser shared with the project driver.
func (ev *Evaluator) Parser() *parser.Parser { return ev.parser }

// ThemeConfig returns a copy of the current page's theme configuration.
func (ev *Evaluator) ThemeConfig() map[string]string {
	return maps.Clone(ev.themeConfig)
}

// Reset clears per-page transient state: variable bindings and theme
// overrides. The registry, reference table, placeholder table and toctree
// are untouched.
func (ev *Evaluator) Reset() {
	ev.ctx = make(map[string]*StoredValue)
	ev.themeConfig = make(map[string]string)
}

// Evaluate walks a node. A leaf yields its text verbatim. A group is a
// directive or variable invocation: its first child must be a leaf naming
// the target, resolved first in the registry and then in the variable
// context. Handler failures propagate up the call chain to the page
// boundary.
func (ev *Evaluator) Evaluate(node *ast.Node) (string, error) {
	if node.IsLeaf() {
		return node.Text, nil
	}

	if ev.depth >= maxDepth {
		return "", ev.errorAt(node, rerrors.New(rerrors.CategoryValidation, rerrors.SeverityError, "evaluation recursion limit exceeded"))
	}
	ev.depth++
	defer func() { ev.depth-- }()

	if len(node.Children) == 0 {
		return "", ev.errorAt(node, rerrors.New(rerrors.CategoryValidation, rerrors.SeverityError, "empty directive invocation"))
	}

	head := node.Children[0]
	if !head.IsLeaf() {
		return "", ev.errorAt(head, rerrors.New(rerrors.CategoryValidation, rerrors.SeverityError, "directive name must be a literal"))
	}

	name := head.Text
	args := node.Children[1:]

	if h, ok := ev.registry[name]; ok {
		ev.metrics.IncDirectiveEval(name)
		out, err := h.Handle(ev, args)
		if err != nil {
			return "", ev.errorAt(node, err)
		}
		return out, nil
	}

	if _, ok := ev.ctx[name]; ok {
		return ev.Lookup(node, name, args)
	}

	return "", ev.errorAt(node, rerrors.UnknownDirective(name))
}

// Lookup resolves a bound variable by name and evaluates its stored node.
// Invocation arguments are accepted for call-shape symmetry but variables
// take none.
func (ev *Evaluator) Lookup(at *ast.Node, key string, args []*ast.Node) (string, error) {
	sv, ok := ev.ctx[key]
	if !ok {
		return "", ev.errorAt(at, rerrors.UndefinedVariable(key))
	}
	return ev.Evaluate(sv.Node)
}

// AddRefDef records a reference definition pointing at the current page.
// Redefinition is last-writer-wins.
func (ev *Evaluator) AddRefDef(id, title string) {
	ev.refdefs[id] = page.RefDef{Title: title, Slug: ev.slug}
}

// RefDef looks up a reference definition by id.
func (ev *Evaluator) RefDef(id string) (page.RefDef, bool) {
	def, ok := ev.refdefs[id]
	return def, ok
}

// GetPlaceholder returns the opaque token standing in for a reference
// field. The referenced id need not exist yet; forward references resolve
// during the link phase. Asking twice for the same id and field yields the
// same token, so re-evaluating a page is deterministic.
func (ev *Evaluator) GetPlaceholder(refid string, field RefField) string {
	key := placeholderKey{refid: refid, field: field}
	if tok, ok := ev.tokenCache[key]; ok {
		return tok
	}

	u := uuid.New()
	tok := "ref-" + hex.EncodeToString(u[:])
	ev.tokens[tok] = key
	ev.tokenCache[key] = tok
	return tok
}

// FinalizeRefs marks the end of the build phase: the reference table stops
// growing and substitution may begin. This is the synchronization barrier
// between the two passes.
func (ev *Evaluator) FinalizeRefs() {
	ev.finalized = true
}

// Finalized reports whether the build phase has been closed.
func (ev *Evaluator) Finalized() bool { return ev.finalized }

var tokenPattern = regexp.MustCompile(`ref-[0-9a-f]{32}`)

// SegmentBody splits a rendered body into literal and placeholder
// segments. Only tokens this evaluator issued become placeholders;
// authored text that merely looks like one stays literal.
func (ev *Evaluator) SegmentBody(body string) []page.Segment {
	var segments []page.Segment
	last := 0
	for _, m := range tokenPattern.FindAllStringIndex(body, -1) {
		token := body[m[0]:m[1]]
		if _, ok := ev.tokens[token]; !ok {
			continue
		}
		if m[0] > last {
			segments = append(segments, page.Literal(body[last:m[0]]))
		}
		segments = append(segments, page.Placeholder(token))
		last = m[1]
	}
	if last < len(body) {
		segments = append(segments, page.Literal(body[last:]))
	}
	return segments
}

// Substitute resolves every placeholder in a page's body against the
// finalized reference table and returns the linked text. Failures are
// local to the page.
func (ev *Evaluator) Substitute(p *page.Page) (string, error) {
	if !ev.finalized {
		return "", rerrors.InternalError("substitution before reference table finalize", nil)
	}
	if p.State != page.StateEvaluated {
		return "", rerrors.InternalError("page not ready for substitution", nil).
			WithContext("state", p.State.String()).
			WithContext("slug", p.Slug.String())
	}

	var b strings.Builder
	for _, seg := range p.Body {
		if seg.Kind == page.SegmentLiteral {
			b.WriteString(seg.Text)
			continue
		}

		key, ok := ev.tokens[seg.Text]
		if !ok {
			return "", rerrors.InternalError("unknown placeholder token", nil).
				WithContext("slug", p.Slug.String())
		}
		def, ok := ev.refdefs[key.refid]
		if !ok {
			return "", rerrors.UndefinedReference(key.refid).
				WithContext("slug", p.Slug.String())
		}

		switch key.field {
		case RefTitle:
			b.WriteString(html.EscapeString(def.Title))
		case RefPath:
			b.WriteString(def.Slug.URLPath(ev.prettyURLs))
		}
	}

	p.State = page.StateSubstituted
	return b.String(), nil
}

// errorAt attaches the node's source position to an error, once, at the
// deepest frame that has it.
func (ev *Evaluator) errorAt(node *ast.Node, err error) error {
	re, ok := err.(*rerrors.RocketError)
	if !ok {
		re = rerrors.InternalError("directive failure", err)
	}
	if _, has := re.Context["line"]; has {
		return re
	}
	re = re.WithContext("line", node.Line).WithContext("column", node.Column)
	if path, ok := ev.parser.SourcePath(node.File); ok {
		re = re.WithContext("source", path)
	}
	return re
}
