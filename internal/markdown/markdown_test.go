package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_InlineEmphasis(t *testing.T) {
	r := NewRenderer("")

	html, title, err := r.Render("Some *markdown* text")
	require.NoError(t, err)
	require.Equal(t, "<p>Some <em>markdown</em> text</p>\n", html)
	require.Equal(t, "", title)
}

func TestRender_ExtractsFirstTopLevelHeading(t *testing.T) {
	r := NewRenderer("")

	_, title, err := r.Render("# Install Guide\n\nSome body.\n\n# Second\n")
	require.NoError(t, err)
	require.Equal(t, "Install Guide", title)
}

func TestRender_NoTitleForLowerHeadings(t *testing.T) {
	r := NewRenderer("")

	_, title, err := r.Render("## Only a subheading\n")
	require.NoError(t, err)
	require.Equal(t, "", title)
}

func TestRender_RawHTMLPassesThrough(t *testing.T) {
	r := NewRenderer("")

	html, _, err := r.Render("<div class=\"admonition\">kept</div>\n")
	require.NoError(t, err)
	require.Contains(t, html, "<div class=\"admonition\">kept</div>")
}

func TestRender_PipeTables(t *testing.T) {
	r := NewRenderer("")

	html, _, err := r.Render("| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<td>1</td>")
}

func TestRender_HighlightsFencedCode(t *testing.T) {
	r := NewRenderer("monokai")

	html, _, err := r.Render("```go\npackage main\n```\n")
	require.NoError(t, err)
	require.Contains(t, html, "<pre")
	require.Contains(t, html, "package")
	// Highlighted output carries inline styles rather than a bare code block.
	require.Contains(t, html, "style=")
}

func TestRender_HeadingAnchors(t *testing.T) {
	r := NewRenderer("")

	html, _, err := r.Render("## Section Name\n")
	require.NoError(t, err)
	require.Contains(t, html, "id=\"section-name\"")
}

func TestKnownStyle(t *testing.T) {
	require.True(t, KnownStyle("github"))
	require.True(t, KnownStyle("monokai"))
	require.False(t, KnownStyle("definitely-not-a-style"))
}
