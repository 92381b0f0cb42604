// Package page holds the data model shared between the build and link
// phases: slugs, reference definitions, and the page itself with its
// segmented body.
package page

// RefDef is a named anchor created by heading and reference-definition
// directives, resolved during the link phase. Redefinition within one
// project build is last-writer-wins.
type RefDef struct {
	Title string
	Slug  Slug
}

// SegmentKind discriminates body segments.
type SegmentKind uint8

const (
	// SegmentLiteral is rendered text, emitted verbatim.
	SegmentLiteral SegmentKind = iota
	// SegmentPlaceholder is an unresolved reference token, replaced during
	// the link phase.
	SegmentPlaceholder
)

// Segment is one element of a page body after the build phase. Keeping
// placeholders as distinct segments instead of magic substrings means
// authored text can never collide with a reference token.
type Segment struct {
	Kind SegmentKind
	Text string // literal text, or the placeholder token
}

// Literal returns a literal text segment.
func Literal(text string) Segment {
	return Segment{Kind: SegmentLiteral, Text: text}
}

// Placeholder returns a placeholder segment holding a reference token.
func Placeholder(token string) Segment {
	return Segment{Kind: SegmentPlaceholder, Text: token}
}

// State tracks a page through the two build passes.
type State uint8

const (
	StateFresh State = iota
	StateEvaluating
	StateEvaluated
	StateSubstituted
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateEvaluating:
		return "evaluating"
	case StateEvaluated:
		return "evaluated"
	case StateSubstituted:
		return "substituted"
	default:
		return "unknown"
	}
}

// Page is the product of evaluating one source file. The body and theme
// config are immutable once the build phase completes; only State advances
// afterwards.
type Page struct {
	SourcePath  string
	Slug        Slug
	Body        []Segment
	ThemeConfig map[string]string
	State       State
}

// Title returns the page title recorded in the theme config, or empty.
func (p *Page) Title() string {
	return p.ThemeConfig["title"]
}
