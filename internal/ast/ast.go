// Package ast defines the document node tree produced by the parser and
// consumed by the evaluator.
//
// A node is either a text leaf or a group of child nodes. By convention a
// group whose first child is a leaf is a directive invocation; that
// convention is enforced by the evaluator, not here. Nodes are immutable
// once produced.
package ast

import (
	"fmt"
	"strings"
)

// FileID identifies the source file a node originated from. IDs are
// assigned by the parser's file table; the zero value means the node was
// synthesized at evaluation time and has no source location.
type FileID uint32

// Kind discriminates the two node shapes.
type Kind uint8

const (
	// KindText is a literal text leaf.
	KindText Kind = iota
	// KindGroup is an ordered sequence of child nodes.
	KindGroup
)

// Node is one element of the document tree.
type Node struct {
	Kind     Kind
	Text     string  // set when Kind == KindText
	Children []*Node // set when Kind == KindGroup

	File   FileID
	Line   int
	Column int
}

// NewText returns a synthesized text leaf with no source location.
func NewText(text string) *Node {
	return &Node{Kind: KindText, Text: text}
}

// NewGroup returns a synthesized group node with no source location.
func NewGroup(children ...*Node) *Node {
	return &Node{Kind: KindGroup, Children: children}
}

// NewTextAt returns a text leaf carrying source provenance.
func NewTextAt(text string, file FileID, line, column int) *Node {
	return &Node{Kind: KindText, Text: text, File: file, Line: line, Column: column}
}

// NewGroupAt returns a group node carrying source provenance.
func NewGroupAt(children []*Node, file FileID, line, column int) *Node {
	return &Node{Kind: KindGroup, Children: children, File: file, Line: line, Column: column}
}

// IsLeaf reports whether the node is a text leaf.
func (n *Node) IsLeaf() bool { return n.Kind == KindText }

// WithFile returns a copy of the node tagged with the given file. The
// children are shared, not copied; nodes are read-only after construction.
func (n *Node) WithFile(file FileID) *Node {
	clone := *n
	clone.File = file
	return &clone
}

// String renders the node in a compact s-expression form for debugging
// and error messages.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	if n.IsLeaf() {
		fmt.Fprintf(b, "%q", n.Text)
		return
	}
	b.WriteByte('(')
	for i, c := range n.Children {
		if i > 0 {
			b.WriteByte(' ')
		}
		c.write(b)
	}
	b.WriteByte(')')
}
