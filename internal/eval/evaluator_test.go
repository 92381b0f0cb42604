package eval

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/rocket/internal/ast"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
	"git.home.luguber.info/inful/rocket/internal/page"
	"git.home.luguber.info/inful/rocket/internal/parser"
)

func TestEvaluate_LeafReturnsTextVerbatim(t *testing.T) {
	ev := New(Options{})

	out, err := ev.Evaluate(leaf("plain prose, even ref-00000000000000000000000000000000"))
	require.NoError(t, err)
	require.Equal(t, "plain prose, even ref-00000000000000000000000000000000", out)
}

func TestEvaluate_UnknownDirective_ErrorWithPosition(t *testing.T) {
	p := parser.New()
	ev := New(Options{Parser: p})
	InstallPrelude(ev, "1.0.0")

	root, err := p.ParseString("doc.rocket", "line one\n(nope)")
	require.NoError(t, err)

	_, err = ev.Evaluate(root)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryDirective))
	require.Contains(t, err.Error(), `unknown directive "nope"`)

	var re *rerrors.RocketError
	require.ErrorAs(t, err, &re)
	require.Equal(t, 2, re.Context["line"])
	require.Equal(t, "doc.rocket", re.Context["source"])
}

func TestEvaluate_EmptyInvocation_Error(t *testing.T) {
	ev := New(Options{})

	_, err := ev.Evaluate(group())
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))
}

func TestEvaluate_DirectiveNameMustBeLiteral(t *testing.T) {
	ev := New(Options{})
	ev.Register("concat", Concat{})

	_, err := ev.Evaluate(group(group(leaf("concat")), leaf("x")))
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))
	require.Contains(t, err.Error(), "literal")
}

func TestEvaluate_RegistryShadowsContext(t *testing.T) {
	ev := New(Options{})

	_, err := Define{}.Handle(ev, []*ast.Node{leaf("greet"), leaf("from context")})
	require.NoError(t, err)

	out, err := ev.Evaluate(group(leaf("greet")))
	require.NoError(t, err)
	require.Equal(t, "from context", out)

	ev.Register("greet", NewTemplate("from registry", nil))
	out, err = ev.Evaluate(group(leaf("greet")))
	require.NoError(t, err)
	require.Equal(t, "from registry", out)
}

func TestEvaluate_VariableInvocationIgnoresArguments(t *testing.T) {
	ev := New(Options{})

	_, err := Define{}.Handle(ev, []*ast.Node{leaf("v"), leaf("value")})
	require.NoError(t, err)

	out, err := ev.Evaluate(group(leaf("v"), leaf("extra"), leaf("args")))
	require.NoError(t, err)
	require.Equal(t, "value", out)
}

func TestLookup_MissingKey_UndefinedVariable(t *testing.T) {
	ev := New(Options{})

	_, err := ev.Lookup(leaf(""), "ghost", nil)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryVariable))
	require.Contains(t, err.Error(), `"ghost"`)
}

func TestRegister_LaterRegistrationWins(t *testing.T) {
	ev := New(Options{})

	ev.Register("v", Dummy{})
	ev.Register("v", NewVersion("2.0.0"))

	out, err := ev.Evaluate(group(leaf("v")))
	require.NoError(t, err)
	require.Equal(t, "2.0.0", out)
}

func TestReset_ClearsPageStateKeepsProjectState(t *testing.T) {
	ev := New(Options{})
	ev.SetSlug(page.NewSlug("index"))

	_, err := Define{}.Handle(ev, []*ast.Node{leaf("x"), leaf("1")})
	require.NoError(t, err)
	_, err = ThemeConfig{}.Handle(ev, []*ast.Node{leaf("layout"), leaf("wide")})
	require.NoError(t, err)
	_, err = DefineTemplate{}.Handle(ev, []*ast.Node{leaf("shout"), leaf("${0}!")})
	require.NoError(t, err)
	ev.AddRefDef("intro", "Introduction")
	tok := ev.GetPlaceholder("intro", RefTitle)

	ev.Reset()

	_, err = ev.Lookup(leaf(""), "x", nil)
	require.Error(t, err)
	require.Empty(t, ev.ThemeConfig())

	out, err := ev.Evaluate(group(leaf("shout"), leaf("hey")))
	require.NoError(t, err)
	require.Equal(t, "hey!", out)

	def, ok := ev.RefDef("intro")
	require.True(t, ok)
	require.Equal(t, "Introduction", def.Title)
	require.Equal(t, tok, ev.GetPlaceholder("intro", RefTitle))
}

func TestGetPlaceholder_StablePerFieldDistinctAcross(t *testing.T) {
	ev := New(Options{})

	title := ev.GetPlaceholder("intro", RefTitle)
	path := ev.GetPlaceholder("intro", RefPath)
	other := ev.GetPlaceholder("outro", RefTitle)

	require.Regexp(t, regexp.MustCompile(`^ref-[0-9a-f]{32}$`), title)
	require.Equal(t, title, ev.GetPlaceholder("intro", RefTitle))
	require.NotEqual(t, title, path)
	require.NotEqual(t, title, other)
}

func TestSegmentBody_OnlyIssuedTokensBecomePlaceholders(t *testing.T) {
	ev := New(Options{})
	tok := ev.GetPlaceholder("x", RefPath)

	body := "a " + tok + " b ref-0123456789abcdef0123456789abcdef tail"
	segs := ev.SegmentBody(body)

	require.Len(t, segs, 3)
	require.Equal(t, page.Literal("a "), segs[0])
	require.Equal(t, page.Placeholder(tok), segs[1])
	require.Equal(t, page.Literal(" b ref-0123456789abcdef0123456789abcdef tail"), segs[2])
}

func TestSegmentBody_EmptyAndTokenOnlyBodies(t *testing.T) {
	ev := New(Options{})

	require.Empty(t, ev.SegmentBody(""))

	tok := ev.GetPlaceholder("x", RefTitle)
	segs := ev.SegmentBody(tok)
	require.Len(t, segs, 1)
	require.Equal(t, page.Placeholder(tok), segs[0])
}

func TestSubstitute_ResolvesTitleAndPath(t *testing.T) {
	ev := New(Options{PrettyURLs: true})

	ev.SetSlug(page.NewSlug("guide/install"))
	ev.AddRefDef("install", "Install <Guide>")

	titleTok := ev.GetPlaceholder("install", RefTitle)
	pathTok := ev.GetPlaceholder("install", RefPath)
	body := "See [" + titleTok + "](" + pathTok + ")."

	p := &page.Page{
		Slug:  page.NewSlug("index"),
		Body:  ev.SegmentBody(body),
		State: page.StateEvaluated,
	}

	ev.FinalizeRefs()
	out, err := ev.Substitute(p)
	require.NoError(t, err)
	require.Equal(t, "See [Install &lt;Guide&gt;](/guide/install/).", out)
	require.Equal(t, page.StateSubstituted, p.State)
}

func TestSubstitute_UndefinedReference(t *testing.T) {
	ev := New(Options{})
	tok := ev.GetPlaceholder("ghost", RefPath)

	p := &page.Page{
		Slug:  page.NewSlug("index"),
		Body:  ev.SegmentBody("go to " + tok),
		State: page.StateEvaluated,
	}

	ev.FinalizeRefs()
	_, err := ev.Substitute(p)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryReference))
	require.Contains(t, err.Error(), `"ghost"`)
}

func TestSubstitute_RequiresFinalizedTable(t *testing.T) {
	ev := New(Options{})

	p := &page.Page{Slug: page.NewSlug("index"), State: page.StateEvaluated}
	_, err := ev.Substitute(p)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryInternal))
	require.False(t, ev.Finalized())
}

func TestSubstitute_RequiresEvaluatedPage(t *testing.T) {
	ev := New(Options{})
	ev.FinalizeRefs()

	p := &page.Page{Slug: page.NewSlug("index"), State: page.StateFresh}
	_, err := ev.Substitute(p)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryInternal))
}

func TestEvaluate_SameResultAfterReset(t *testing.T) {
	p := parser.New()
	ev := New(Options{Parser: p})
	InstallPrelude(ev, "3.4.0")

	src := "(define who World)\n# Greetings\n\nHello (who), this is (version) with (ref intro)."
	root, err := p.ParseString("doc.rocket", src)
	require.NoError(t, err)

	first, err := ev.Evaluate(root)
	require.NoError(t, err)

	ev.Reset()
	second, err := ev.Evaluate(root)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Contains(t, first, "Hello World")
}

func TestEvaluate_RecursionDepthBounded(t *testing.T) {
	ev := New(Options{})
	ev.Register("concat", Concat{})

	node := group(leaf("concat"), leaf("x"))
	for i := 0; i < maxDepth+8; i++ {
		node = group(leaf("concat"), node)
	}

	_, err := ev.Evaluate(node)
	require.Error(t, err)
	require.True(t, rerrors.IsCategory(err, rerrors.CategoryValidation))
	require.Contains(t, err.Error(), "recursion")
}
