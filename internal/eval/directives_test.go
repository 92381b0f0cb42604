package eval

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/rocket/internal/ast"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/page"
	"git.home.luguber.info/inful/rocket/internal/parser"
	"git.home.luguber.info/inful/rocket/internal/toctree"
)

func leaf(text string) *ast.Node            { return ast.NewText(text) }
func group(children ...*ast.Node) *ast.Node { return ast.NewGroup(children...) }

func TestDummy_AnyArguments_EmptyOutput(t *testing.T) {
	ev := New(Options{})
	h := Dummy{}

	for _, args := range [][]*ast.Node{
		nil,
		{leaf("")},
		{group(leaf(""))},
	} {
		out, err := h.Handle(ev, args)
		require.NoError(t, err)
		require.Equal(t, "", out)
	}
}

func TestVersion_TruncatesToArgumentComponents(t *testing.T) {
	ev := New(Options{})
	ev.Register("concat", Concat{})
	h := NewVersion("3.4.0")

	out, err := h.Handle(ev, nil)
	require.NoError(t, err)
	require.Equal(t, "3.4.0", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("")})
	require.NoError(t, err)
	require.Equal(t, "", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("x")})
	require.NoError(t, err)
	require.Equal(t, "3", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("x.y")})
	require.NoError(t, err)
	require.Equal(t, "3.4", out)

	out, err = h.Handle(ev, []*ast.Node{
		group(leaf("concat"), leaf("3."), leaf("4")),
	})
	require.NoError(t, err)
	require.Equal(t, "3.4", out)
}

func TestVersion_ClampsWhenArgumentHasMoreComponents(t *testing.T) {
	ev := New(Options{})
	h := NewVersion("3.4.0")

	out, err := h.Handle(ev, []*ast.Node{leaf("a.b.c.d")})
	require.NoError(t, err)
	require.Equal(t, "3.4.0", out)
}

func TestVersion_TooManyArguments_ArityError(t *testing.T) {
	ev := New(Options{})
	h := NewVersion("3.4.0")

	_, err := h.Handle(ev, []*ast.Node{leaf("x"), leaf("y")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryArity))
}

func TestAdmonition_WrapsRenderedBody(t *testing.T) {
	ev := New(Options{})
	h := NewAdmonition("Note", "note")

	_, err := h.Handle(ev, nil)
	require.Error(t, err)

	out, err := h.Handle(ev, []*ast.Node{leaf("Attention *required*")})
	require.NoError(t, err)
	require.Equal(t,
		"<div class=\"admonition admonition-note\"><span class=\"admonition-title admonition-title-note\">Note</span><p>Attention <em>required</em></p>\n</div>\n",
		out)

	out, err = h.Handle(ev, []*ast.Node{leaf("Careful"), leaf("body")})
	require.NoError(t, err)
	require.Contains(t, out, ">Careful</span>")
}

func TestConcat_JoinsEvaluatedArguments(t *testing.T) {
	ev := New(Options{})
	ev.Register("version", NewVersion("3.4"))
	h := Concat{}

	out, err := h.Handle(ev, nil)
	require.NoError(t, err)
	require.Equal(t, "", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("foo")})
	require.NoError(t, err)
	require.Equal(t, "foo", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("foo"), leaf("bar"), leaf("baz")})
	require.NoError(t, err)
	require.Equal(t, "foobarbaz", out)

	out, err = h.Handle(ev, []*ast.Node{group(leaf("version")), leaf("-test")})
	require.NoError(t, err)
	require.Equal(t, "3.4-test", out)
}

func TestConcat_Associative(t *testing.T) {
	ev := New(Options{})
	h := Concat{}

	whole, err := h.Handle(ev, []*ast.Node{leaf("a"), leaf("b"), leaf("c")})
	require.NoError(t, err)

	var parts string
	for _, s := range []string{"a", "b", "c"} {
		part, err := h.Handle(ev, []*ast.Node{leaf(s)})
		require.NoError(t, err)
		parts += part
	}
	require.Equal(t, whole, parts)
}

func TestMarkdown_RendersAndTrims(t *testing.T) {
	ev := New(Options{})
	h := Markdown{}

	out, err := h.Handle(ev, nil)
	require.NoError(t, err)
	require.Equal(t, "", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("Some *markdown* text")})
	require.NoError(t, err)
	require.Equal(t, "<p>Some <em>markdown</em> text</p>", out)
}

func TestMarkdown_TitleFirstWriteWins(t *testing.T) {
	ev := New(Options{})
	h := Markdown{}

	_, err := h.Handle(ev, []*ast.Node{leaf("# First\n")})
	require.NoError(t, err)
	_, err = h.Handle(ev, []*ast.Node{leaf("# Second\n")})
	require.NoError(t, err)

	require.Equal(t, "First", ev.ThemeConfig()["title"])
}

func TestTemplate_SubstitutesPositionalArguments(t *testing.T) {
	ev := New(Options{})
	h := NewTemplate(
		`[${0}](https://foxquill.com${1} "${2}")`,
		[]*regexp.Regexp{regexp.MustCompile("^.+$"), regexp.MustCompile("^/.*$")},
	)

	_, err := h.Handle(ev, nil)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))

	out, err := h.Handle(ev, []*ast.Node{
		leaf("SIMD.js Rectangle Intersection"),
		leaf("/simd-rectangle-intersection/"),
	})
	require.NoError(t, err)
	require.Equal(t, `[SIMD.js Rectangle Intersection](https://foxquill.com/simd-rectangle-intersection/ "")`, out)
}

func TestTemplate_CheckerRejectionFailsCall(t *testing.T) {
	ev := New(Options{})
	h := NewTemplate("[${0}](${1})", []*regexp.Regexp{
		regexp.MustCompile("^.+$"),
		regexp.MustCompile("^/.*$"),
	})

	out, err := h.Handle(ev, []*ast.Node{leaf("Title"), leaf("/path/")})
	require.NoError(t, err)
	require.Equal(t, "[Title](/path/)", out)

	_, err = h.Handle(ev, []*ast.Node{leaf("Title"), leaf("path")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))
}

func TestTemplate_OutOfRangeIndexIsEmpty(t *testing.T) {
	ev := New(Options{})
	h := NewTemplate("a${7}b", nil)

	out, err := h.Handle(ev, nil)
	require.NoError(t, err)
	require.Equal(t, "ab", out)
}

func TestDefineTemplate_RegistersProjectWideMacro(t *testing.T) {
	ev := New(Options{})
	h := DefineTemplate{}

	out, err := h.Handle(ev, []*ast.Node{
		leaf("link"),
		leaf("[${0}](${1})"),
		leaf("^.+$"),
	})
	require.NoError(t, err)
	require.Equal(t, "", out)

	got, err := ev.Evaluate(group(leaf("link"), leaf("Here"), leaf("/there/")))
	require.NoError(t, err)
	require.Equal(t, "[Here](/there/)", got)

	// Macros survive the per-page reset.
	ev.Reset()
	got, err = ev.Evaluate(group(leaf("link"), leaf("Again"), leaf("/x/")))
	require.NoError(t, err)
	require.Equal(t, "[Again](/x/)", got)
}

func TestDefineTemplate_InvalidCheckerPattern_Error(t *testing.T) {
	ev := New(Options{})

	_, err := DefineTemplate{}.Handle(ev, []*ast.Node{leaf("bad"), leaf("x"), leaf("(")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))

	_, err = DefineTemplate{}.Handle(ev, []*ast.Node{leaf("onlyname")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryArity))
}

func TestDefinitionList_RendersTermBodyPairs(t *testing.T) {
	ev := New(Options{})
	h := DefinitionList{}

	out, err := h.Handle(ev, []*ast.Node{
		group(leaf("Slug"), leaf("A page identifier.")),
		group(leaf("RefDef"), leaf("A named *anchor*.")),
	})
	require.NoError(t, err)
	require.Equal(t,
		"<dt>Slug</dt><dd><p>A page identifier.</p>\n</dd><dt>RefDef</dt><dd><p>A named <em>anchor</em>.</p>\n</dd>",
		out)
}

func TestDefinitionList_BareLiteralFailsWholeCall(t *testing.T) {
	ev := New(Options{})
	h := DefinitionList{}

	out, err := h.Handle(ev, []*ast.Node{
		group(leaf("Good"), leaf("entry")),
		leaf("stray"),
	})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))
	require.Equal(t, "", out)
}

func TestLet_BindsEvaluatesAndConcatenates(t *testing.T) {
	ev := New(Options{})
	ev.Register("concat", Concat{})
	h := Let{}

	_, err := h.Handle(ev, nil)
	require.Error(t, err)

	out, err := h.Handle(ev, []*ast.Node{
		group(
			leaf("foo"), group(leaf("concat"), leaf("1"), leaf("2")),
			leaf("bar"), leaf("3"),
		),
		group(leaf("foo")),
		group(leaf("bar")),
	})
	require.NoError(t, err)
	require.Equal(t, "123", out)
}

func TestLet_RestoresPriorBindingAfterCall(t *testing.T) {
	ev := New(Options{})
	ev.Register("concat", Concat{})

	_, err := Define{}.Handle(ev, []*ast.Node{leaf("x"), leaf("outer")})
	require.NoError(t, err)

	out, err := Let{}.Handle(ev, []*ast.Node{
		group(leaf("x"), leaf("inner")),
		group(leaf("x")),
	})
	require.NoError(t, err)
	require.Equal(t, "inner", out)

	restored, err := ev.Lookup(leaf(""), "x", nil)
	require.NoError(t, err)
	require.Equal(t, "outer", restored)
}

func TestLet_RemovesBindingsItIntroduced(t *testing.T) {
	ev := New(Options{})

	out, err := Let{}.Handle(ev, []*ast.Node{
		group(leaf("fresh"), leaf("1")),
		group(leaf("fresh")),
	})
	require.NoError(t, err)
	require.Equal(t, "1", out)

	_, err = ev.Lookup(leaf(""), "fresh", nil)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryVariable))
}

func TestLet_NestedBindingsRestorePerDepth(t *testing.T) {
	ev := New(Options{})
	ev.Register("let", Let{})
	ev.Register("concat", Concat{})

	out, err := ev.Evaluate(group(
		leaf("let"), group(leaf("v"), leaf("1")),
		group(leaf("v")),
		group(leaf("let"), group(leaf("v"), leaf("2")), group(leaf("v"))),
		group(leaf("v")),
	))
	require.NoError(t, err)
	require.Equal(t, "121", out)

	_, err = ev.Lookup(leaf(""), "v", nil)
	require.Error(t, err)
}

func TestLet_RestoresWhenBodyFails(t *testing.T) {
	ev := New(Options{})

	_, err := Define{}.Handle(ev, []*ast.Node{leaf("x"), leaf("outer")})
	require.NoError(t, err)

	_, err = Let{}.Handle(ev, []*ast.Node{
		group(leaf("x"), leaf("inner")),
		group(leaf("no-such-directive")),
	})
	require.Error(t, err)

	restored, err := ev.Lookup(leaf(""), "x", nil)
	require.NoError(t, err)
	require.Equal(t, "outer", restored)
}

func TestDefine_LazyReflectsRedefinition_EagerDoesNot(t *testing.T) {
	ev := New(Options{})
	ev.Register("concat", Concat{})
	h := Define{}

	_, err := h.Handle(ev, nil)
	require.Error(t, err)

	out, err := h.Handle(ev, []*ast.Node{leaf("foo"), leaf("foo")})
	require.NoError(t, err)
	require.Equal(t, "", out)

	_, err = h.Handle(ev, []*ast.Node{
		leaf("x"),
		group(leaf("concat"), group(leaf("foo")), leaf("bar")),
	})
	require.NoError(t, err)

	_, err = h.Handle(ev, []*ast.Node{leaf("foo"), leaf("bar")})
	require.NoError(t, err)

	_, err = h.Handle(ev, []*ast.Node{
		leaf("evaluate"), leaf("eager"), group(leaf("x")),
	})
	require.NoError(t, err)

	for name, want := range map[string]string{
		"x":     "barbar",
		"eager": "barbar",
		"foo":   "bar",
	} {
		got, err := ev.Lookup(leaf(""), name, nil)
		require.NoError(t, err)
		require.Equal(t, want, got, "lookup %s", name)
	}

	// Redefining foo changes x but not eager.
	_, err = h.Handle(ev, []*ast.Node{leaf("foo"), leaf("baz")})
	require.NoError(t, err)

	got, err := ev.Lookup(leaf(""), "x", nil)
	require.NoError(t, err)
	require.Equal(t, "bazbar", got)

	got, err = ev.Lookup(leaf(""), "eager", nil)
	require.NoError(t, err)
	require.Equal(t, "barbar", got)
}

func TestDefine_RejectsBadShapes(t *testing.T) {
	ev := New(Options{})

	_, err := Define{}.Handle(ev, []*ast.Node{leaf("notevaluate"), leaf("k"), leaf("v")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryArity))

	_, err = Define{}.Handle(ev, []*ast.Node{leaf("a"), leaf("b"), leaf("c"), leaf("d")})
	require.Error(t, err)
}

func TestThemeConfig_StoresEvaluatedPairs(t *testing.T) {
	ev := New(Options{})
	h := ThemeConfig{}

	out, err := h.Handle(ev, nil)
	require.NoError(t, err)
	require.Equal(t, "", out)

	_, err = h.Handle(ev, []*ast.Node{leaf("foo"), leaf("bar")})
	require.NoError(t, err)
	require.Equal(t, "bar", ev.ThemeConfig()["foo"])

	_, err = h.Handle(ev, []*ast.Node{leaf("odd")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryArity))
}

func TestTocTree_AddsEntriesUnderCurrentPage(t *testing.T) {
	tree := toctree.New()
	ev := New(Options{Toctree: tree})
	ev.SetSlug(page.NewSlug("index"))

	out, err := TocTree{}.Handle(ev, []*ast.Node{
		leaf("guide/install"),
		group(leaf("The Guide"), leaf("guide")),
	})
	require.NoError(t, err)
	require.Equal(t, "", out)

	tree.Finish(map[page.Slug]string{})
	html := tree.HTML(page.NewSlug("index"), true)
	require.Contains(t, html, `href="/guide/install/"`)
	require.Contains(t, html, ">The Guide</a>")
}

func TestTocTree_MalformedEntryLeavesTreeUntouched(t *testing.T) {
	tree := toctree.New()
	ev := New(Options{Toctree: tree})
	ev.SetSlug(page.NewSlug("index"))

	_, err := TocTree{}.Handle(ev, []*ast.Node{
		leaf("good/page"),
		group(leaf("only-one-node")),
	})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))

	tree.Finish(map[page.Slug]string{})
	require.Equal(t, "", tree.HTML(page.NewSlug("index"), true))
}

func TestHeading_TwoArgFormRegistersRefDef(t *testing.T) {
	ev := New(Options{})
	ev.SetSlug(page.NewSlug("index"))
	h := NewHeading(2)

	_, err := h.Handle(ev, nil)
	require.Error(t, err)

	out, err := h.Handle(ev, []*ast.Node{leaf("a-title"), leaf("A Title")})
	require.NoError(t, err)
	require.Equal(t, "\n## A Title\n", out)

	def, ok := ev.RefDef("a-title")
	require.True(t, ok)
	require.Equal(t, "A Title", def.Title)
	require.Equal(t, page.NewSlug("index"), def.Slug)
}

func TestHeading_OneArgFormEmitsWithoutRefDef(t *testing.T) {
	ev := New(Options{})
	h := NewHeading(3)

	out, err := h.Handle(ev, []*ast.Node{leaf("Plain")})
	require.NoError(t, err)
	require.Equal(t, "\n### Plain\n", out)

	_, ok := ev.RefDef("Plain")
	require.False(t, ok)

	_, err = h.Handle(ev, []*ast.Node{leaf("a"), leaf("b"), leaf("c")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryArity))
}

func TestNewHeading_RejectsLevelOutOfRange(t *testing.T) {
	require.Panics(t, func() { NewHeading(0) })
	require.Panics(t, func() { NewHeading(7) })
}

func TestRefDefDirective_RegistersAnchor(t *testing.T) {
	ev := New(Options{})
	ev.SetSlug(page.NewSlug("index"))
	h := RefDefDirective{}

	_, err := h.Handle(ev, nil)
	require.Error(t, err)

	_, err = h.Handle(ev, []*ast.Node{leaf("a-title")})
	require.Error(t, err)

	out, err := h.Handle(ev, []*ast.Node{leaf("a-title"), leaf("A Title")})
	require.NoError(t, err)
	require.Equal(t, "", out)

	def, ok := ev.RefDef("a-title")
	require.True(t, ok)
	require.Equal(t, "A Title", def.Title)
}

func TestRefDirective_EmitsPlaceholderLink(t *testing.T) {
	ev := New(Options{})
	h := RefDirective{}

	out, err := h.Handle(ev, []*ast.Node{leaf("target")})
	require.NoError(t, err)

	titleTok := ev.GetPlaceholder("target", RefTitle)
	pathTok := ev.GetPlaceholder("target", RefPath)
	require.Equal(t, "["+titleTok+"]("+pathTok+")", out)
	require.NotEqual(t, titleTok, pathTok)

	out, err = h.Handle(ev, []*ast.Node{leaf("target"), leaf("Click here")})
	require.NoError(t, err)
	require.Equal(t, "[Click here]("+pathTok+")", out)

	_, err = h.Handle(ev, nil)
	require.Error(t, err)
	_, err = h.Handle(ev, []*ast.Node{leaf("a"), leaf("b"), leaf("c")})
	require.Error(t, err)
}

func TestSteps_RendersNumberedList(t *testing.T) {
	ev := New(Options{})
	h := Steps{}

	out, err := h.Handle(ev, []*ast.Node{
		group(leaf("step"), leaf("Download"), leaf("Get the *tarball*")),
		group(leaf("step"), leaf("Install"), leaf("Run make")),
	})
	require.NoError(t, err)
	require.Contains(t, out, `<div class="steps">`)
	require.Contains(t, out, `<div class="steps__stepnumber">1</div>`)
	require.Contains(t, out, `<div class="steps__stepnumber">2</div>`)
	require.Contains(t, out, "<h4><p>Download</p></h4>")
	require.Contains(t, out, "<p>Get the <em>tarball</em></p>")
}

func TestSteps_AcceptsContextVariableEntries(t *testing.T) {
	ev := New(Options{})

	_, err := Define{}.Handle(ev, []*ast.Node{
		leaf("first"),
		group(leaf("null"), leaf("Prepare"), leaf("Warm up")),
	})
	require.NoError(t, err)

	out, err := Steps{}.Handle(ev, []*ast.Node{leaf("first")})
	require.NoError(t, err)
	require.Contains(t, out, "<h4><p>Prepare</p></h4>")
}

func TestSteps_MalformedEntryFailsWholeDirective(t *testing.T) {
	ev := New(Options{})
	h := Steps{}

	out, err := h.Handle(ev, []*ast.Node{
		group(leaf("step"), leaf("Good"), leaf("entry")),
		group(leaf("step"), leaf("too-short")),
	})
	require.Error(t, err)
	require.Equal(t, "", out)

	out, err = h.Handle(ev, []*ast.Node{leaf("never-bound")})
	require.Error(t, err)
	require.Equal(t, "", out)

	_, err = Define{}.Handle(ev, []*ast.Node{leaf("scalar"), leaf("just-text")})
	require.NoError(t, err)
	_, err = h.Handle(ev, []*ast.Node{leaf("scalar")})
	require.Error(t, err)
}

func TestInclude_InlinesFileRelativeToCallSite(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "fragment.rocket"), []byte("Included *text*"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "main.rocket"), []byte("Before (include fragment.rocket) after"), 0o644))

	p := parser.New()
	ev := New(Options{Parser: p})
	InstallPrelude(ev, "3.4.0")

	root, err := p.Parse(filepath.Join(sub, "main.rocket"))
	require.NoError(t, err)

	out, err := ev.Evaluate(root)
	require.NoError(t, err)
	require.Contains(t, out, "<p>Included <em>text</em></p>")
	require.Contains(t, out, "Before")
	require.Contains(t, out, "after")
}

func TestInclude_MissingFileFailsCall(t *testing.T) {
	p := parser.New()
	ev := New(Options{Parser: p})
	InstallPrelude(ev, "3.4.0")

	root, err := p.ParseString(filepath.Join(t.TempDir(), "main.rocket"), "(include nope.rocket)")
	require.NoError(t, err)

	_, err = ev.Evaluate(root)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryFileSystem))

	_, err = Include{}.Handle(ev, []*ast.Node{leaf("a"), leaf("b")})
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryArity))
}

func TestImport_KeepsBindingsDiscardsOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.rocket"), []byte("(define greeting Hello)Visible prose"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.rocket"), []byte("(import defs.rocket)(greeting) world"), 0o644))

	p := parser.New()
	ev := New(Options{Parser: p})
	InstallPrelude(ev, "3.4.0")

	root, err := p.Parse(filepath.Join(dir, "main.rocket"))
	require.NoError(t, err)

	out, err := ev.Evaluate(root)
	require.NoError(t, err)
	require.Contains(t, out, "Hello")
	require.Contains(t, out, "world")
	require.NotContains(t, out, "Visible prose")
}
