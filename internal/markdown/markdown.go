// Package markdown renders markdown bodies to HTML, with syntax
// highlighting for fenced code blocks and page-title extraction from the
// first level-one heading.
package markdown

import (
	"bytes"

	"github.com/alecthomas/chroma/v2/styles"
	highlighting "github.com/yuin/goldmark-highlighting/v2"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// DefaultSyntaxTheme is the chroma style used when the project config
// does not pick one.
const DefaultSyntaxTheme = "github"

// KnownStyle reports whether name is a registered chroma style.
func KnownStyle(name string) bool {
	return styles.Get(name) != styles.Fallback || name == styles.Fallback.Name
}

// Renderer converts markdown to HTML. Directive output is embedded in the
// page as raw HTML blocks, so the renderer always passes raw HTML through.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a Renderer highlighting code with the given chroma
// style name.
func NewRenderer(syntaxTheme string) *Renderer {
	if syntaxTheme == "" {
		syntaxTheme = DefaultSyntaxTheme
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(syntaxTheme),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)

	return &Renderer{md: md}
}

// Render converts src to HTML and returns it together with the text of
// the document's first level-one heading, or an empty title if there is
// none.
func (r *Renderer) Render(src string) (string, string, error) {
	source := []byte(src)
	doc := r.md.Parser().Parse(text.NewReader(source))

	title := extractTitle(doc, source)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return "", "", err
	}
	return buf.String(), title, nil
}

// extractTitle returns the text of the first level-one heading.
func extractTitle(doc gmast.Node, source []byte) string {
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*gmast.Heading); ok && heading.Level == 1 {
			return string(heading.Text(source))
		}
	}
	return ""
}
