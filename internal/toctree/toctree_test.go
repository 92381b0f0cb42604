package toctree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/rocket/internal/page"
)

func slug(s string) page.Slug { return page.NewSlug(s) }

func TestAdd_ExplicitTitleWinsOverBackfill(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("guide/install"), "Installing")
	tree.Finish(map[page.Slug]string{
		slug("index"):         "Home",
		slug("guide/install"): "Install Guide",
	})

	html := tree.HTML(slug("index"), true)
	require.Contains(t, html, ">Installing</a>")
	require.NotContains(t, html, "Install Guide")
}

func TestFinish_BackfillsMissingTitlesFromPages(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("guide/install"), "")
	tree.Finish(map[page.Slug]string{
		slug("guide/install"): "Install Guide",
	})

	html := tree.HTML(slug("index"), true)
	require.Contains(t, html, ">Install Guide</a>")
}

func TestFinish_FallsBackToSlugWhenPageNeverBuilt(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("missing/page"), "")
	tree.Finish(map[page.Slug]string{})

	html := tree.HTML(slug("index"), true)
	require.Contains(t, html, ">missing/page</a>")
}

func TestFinish_AttachesOrphanPagesUnderRoot(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("guide"), "Guide")
	tree.Finish(map[page.Slug]string{
		slug("guide"):   "Guide",
		slug("zebra"):   "Zebra",
		slug("archive"): "Archive",
	})

	html := tree.HTML(slug("index"), true)
	require.Contains(t, html, ">Guide</a>")
	require.Contains(t, html, ">Archive</a>")
	require.Contains(t, html, ">Zebra</a>")
	// Orphans are appended in sorted order after explicit entries.
	require.Less(t, strings.Index(html, ">Guide</a>"), strings.Index(html, ">Archive</a>"))
	require.Less(t, strings.Index(html, ">Archive</a>"), strings.Index(html, ">Zebra</a>"))
}

func TestAdd_NestedChildrenRenderNestedLists(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("guide"), "Guide")
	tree.Add(slug("guide"), slug("guide/install"), "Install")
	tree.Finish(map[page.Slug]string{})

	html := tree.HTML(slug("guide/install"), true)
	require.Contains(t, html, `<li class="toctree-item"><a href="/guide/">Guide</a><ul class="toctree">`)
	require.Contains(t, html, `<li class="toctree-item current"><a href="/guide/install/">Install</a></li>`)
}

func TestAdd_FirstParentClaimWins(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("shared"), "Shared")
	tree.Add(slug("other"), slug("shared"), "")
	tree.Finish(map[page.Slug]string{})

	e := tree.entries[slug("shared")]
	require.Equal(t, slug("index"), e.parent.slug)
}

func TestAdd_RefusesCycles(t *testing.T) {
	tree := New()
	tree.Add(slug("a"), slug("b"), "")
	tree.Add(slug("b"), slug("a"), "")

	require.Nil(t, tree.entries[slug("a")].parent)
	require.Equal(t, slug("a"), tree.entries[slug("b")].parent.slug)

	tree.Finish(map[page.Slug]string{})
	// Rendering must terminate.
	_ = tree.HTML(slug("index"), true)
}

func TestFinish_IsIdempotentAndFreezesTree(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("a"), "A")
	tree.Finish(map[page.Slug]string{})
	before := tree.HTML(slug("index"), true)

	tree.Add(slug("index"), slug("late"), "Late")
	tree.Finish(map[page.Slug]string{slug("late"): "Late"})
	after := tree.HTML(slug("index"), true)

	require.True(t, tree.Finished())
	require.Equal(t, before, after)
}

func TestHTML_EscapesTitles(t *testing.T) {
	tree := New()
	tree.Add(slug("index"), slug("x"), `Tags <& "quotes"`)
	tree.Finish(map[page.Slug]string{})

	html := tree.HTML(slug("index"), true)
	require.Contains(t, html, "Tags &lt;&amp; &#34;quotes&#34;")
}

func TestHTML_EmptyTreeRendersNothing(t *testing.T) {
	tree := New()
	tree.Finish(map[page.Slug]string{})
	require.Equal(t, "", tree.HTML(slug("index"), true))
}
