// Package parser turns .rocket source files into document node trees.
//
// A source file is prose interleaved with directive invocations. Prose
// becomes text leaves, kept verbatim so that concatenating a file's
// top-level nodes reproduces the document. An invocation is written
// (name arg ...) where each argument is a bare word, a "quoted string",
// a {raw block}, or a nested invocation. The parser wraps every file in
// an implicit markdown invocation, so a file's root node always renders
// the whole document through the markdown directive.
package parser

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"git.home.luguber.info/inful/rocket/internal/ast"
	rerrors "git.home.luguber.info/inful/rocket/internal/errors"
)

// Parser parses source files and remembers which file every node came
// from, so directives that resolve paths relative to their call site can
// recover the origin of an argument node.
type Parser struct {
	files []string
}

// New returns an empty Parser.
func New() *Parser {
	return &Parser{}
}

// Parse reads and parses a single source file. The returned root is a
// group invoking the markdown directive on the file's contents.
func (p *Parser) Parse(path string) (*ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.FileSystemError("read source", err).WithContext("path", path)
	}
	return p.parseSource(path, string(data))
}

// ParseString parses source text held in memory under the given name.
func (p *Parser) ParseString(name, src string) (*ast.Node, error) {
	return p.parseSource(name, src)
}

// SourcePath returns the path of the file a node was parsed from, or
// false for synthesized nodes that carry no file id.
func (p *Parser) SourcePath(id ast.FileID) (string, bool) {
	if id == 0 || int(id) > len(p.files) {
		return "", false
	}
	return p.files[id-1], true
}

func (p *Parser) parseSource(path, src string) (*ast.Node, error) {
	p.files = append(p.files, path)
	id := ast.FileID(len(p.files))

	s := &scanner{src: src, file: id, line: 1, col: 1}
	items, err := parseProse(s)
	if err != nil {
		return nil, err
	}

	children := make([]*ast.Node, 0, len(items)+1)
	children = append(children, ast.NewTextAt("md", id, 1, 1))
	children = append(children, items...)
	return ast.NewGroupAt(children, id, 1, 1), nil
}

type scanner struct {
	src  string
	pos  int
	line int
	col  int
	file ast.FileID
}

const eof = rune(-1)

func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.pos:])
	return r
}

func (s *scanner) next() rune {
	if s.pos >= len(s.src) {
		return eof
	}
	r, size := utf8.DecodeRuneInString(s.src[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

// parseProse scans top-level document text until end of input. Only two
// characters are special in prose: backslash, which may escape '(' or
// itself, and '(', which opens a directive invocation.
func parseProse(s *scanner) ([]*ast.Node, error) {
	var items []*ast.Node
	var text strings.Builder
	textLine, textCol := s.line, s.col

	appendRune := func(r rune) {
		if text.Len() == 0 {
			textLine, textCol = s.line, s.col
		}
		text.WriteRune(r)
	}
	flush := func() {
		if text.Len() > 0 {
			items = append(items, ast.NewTextAt(text.String(), s.file, textLine, textCol))
			text.Reset()
		}
	}

	for {
		switch r := s.peek(); r {
		case eof:
			flush()
			return items, nil
		case '\\':
			if text.Len() == 0 {
				textLine, textCol = s.line, s.col
			}
			s.next()
			switch n := s.peek(); n {
			case '(', '\\':
				text.WriteRune(n)
				s.next()
			default:
				text.WriteByte('\\')
			}
		case '(':
			flush()
			call, err := parseCall(s)
			if err != nil {
				return nil, err
			}
			items = append(items, call)
		default:
			appendRune(r)
			s.next()
		}
	}
}

// parseCall scans one (name arg ...) group. The opening parenthesis has
// not been consumed yet.
func parseCall(s *scanner) (*ast.Node, error) {
	openLine, openCol := s.line, s.col
	s.next()

	var children []*ast.Node
	for {
		skipSpaceAndComments(s)

		switch r := s.peek(); r {
		case eof:
			return nil, rerrors.Parse(openLine, openCol, "unclosed directive invocation")
		case ')':
			s.next()
			return ast.NewGroupAt(children, s.file, openLine, openCol), nil
		case '(':
			child, err := parseCall(s)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		case '"':
			child, err := scanString(s)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		case '{':
			child, err := scanRawBlock(s)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		case '}':
			return nil, rerrors.Parse(s.line, s.col, "unexpected '}'")
		default:
			children = append(children, scanWord(s))
		}
	}
}

// skipSpaceAndComments consumes whitespace and '#' line comments between
// arguments. Comments exist only inside invocations; in prose a '#' is a
// markdown heading.
func skipSpaceAndComments(s *scanner) {
	for {
		r := s.peek()
		if r != eof && unicode.IsSpace(r) {
			s.next()
			continue
		}
		if r == '#' {
			for r != eof && r != '\n' {
				s.next()
				r = s.peek()
			}
			continue
		}
		return
	}
}

// scanWord consumes a bare word argument. Words end at whitespace or at
// any character with syntactic meaning inside an invocation.
func scanWord(s *scanner) *ast.Node {
	line, col := s.line, s.col
	var word strings.Builder
	for {
		r := s.peek()
		if r == eof || unicode.IsSpace(r) {
			break
		}
		if r == '(' || r == ')' || r == '"' || r == '{' || r == '}' || r == '#' {
			break
		}
		word.WriteRune(r)
		s.next()
	}
	return ast.NewTextAt(word.String(), s.file, line, col)
}

// scanString consumes a double-quoted string literal. Literals are single
// line; the recognized escapes are \n, \t, \" and \\.
func scanString(s *scanner) (*ast.Node, error) {
	openLine, openCol := s.line, s.col
	s.next()

	var text strings.Builder
	for {
		switch r := s.peek(); r {
		case eof, '\n':
			return nil, rerrors.Parse(openLine, openCol, "unterminated string literal")
		case '"':
			s.next()
			return ast.NewTextAt(text.String(), s.file, openLine, openCol), nil
		case '\\':
			s.next()
			switch n := s.peek(); n {
			case 'n':
				text.WriteByte('\n')
			case 't':
				text.WriteByte('\t')
			case '"':
				text.WriteByte('"')
			case '\\':
				text.WriteByte('\\')
			default:
				return nil, rerrors.Parse(s.line, s.col, "invalid escape sequence in string literal")
			}
			s.next()
		default:
			text.WriteRune(r)
			s.next()
		}
	}
}

// scanRawBlock consumes a brace-delimited block. Content is kept verbatim,
// newlines included. Unescaped braces nest and must balance; \{, \} and \\
// produce literal characters without affecting the balance. Any other
// backslash passes through untouched.
func scanRawBlock(s *scanner) (*ast.Node, error) {
	openLine, openCol := s.line, s.col
	s.next()

	depth := 1
	var text strings.Builder
	for {
		switch r := s.peek(); r {
		case eof:
			return nil, rerrors.Parse(openLine, openCol, "unclosed raw block")
		case '\\':
			s.next()
			switch n := s.peek(); n {
			case '{', '}', '\\':
				text.WriteRune(n)
				s.next()
			default:
				text.WriteByte('\\')
			}
		case '{':
			depth++
			text.WriteByte('{')
			s.next()
		case '}':
			depth--
			s.next()
			if depth == 0 {
				return ast.NewTextAt(text.String(), s.file, openLine, openCol), nil
			}
			text.WriteByte('}')
		default:
			text.WriteRune(r)
			s.next()
		}
	}
}
