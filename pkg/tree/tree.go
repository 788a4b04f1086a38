// Package tree defines the parse-tree value produced by parsing and the
// builder that shapes nodes as rules reduce.
package tree

import (
	"fmt"
	"strings"

	"github.com/walteh/tmplgram/pkg/source"
)

// Node is one vertex of a parse tree: either a *Tree or a leaf value such as
// a token.
type Node interface {
	// Span returns the absolute source region the node covers. Synthetic
	// nodes may return the zero span.
	Span() source.Span
	fmt.Stringer
}

// Leaf is implemented by non-tree nodes so structural comparison can reach
// their payloads without this package knowing their concrete types.
type Leaf interface {
	Node
	// LeafEqual reports whether other is an equivalent leaf.
	LeafEqual(other Node) bool
}

// Tree is an interior node labeled with the producing rule's name or alias.
type Tree struct {
	Label    string
	Children []Node

	// Meta is the source region the node covers, the union of its
	// children's spans unless set explicitly.
	Meta source.Span
}

// New creates a tree node with its span derived from the children.
func New(label string, children []Node) *Tree {
	t := &Tree{Label: label, Children: children}
	for _, c := range children {
		t.Meta = t.Meta.Union(c.Span())
	}
	return t
}

// Span implements Node.
func (t *Tree) Span() source.Span {
	return t.Meta
}

func (t *Tree) String() string {
	if len(t.Children) == 0 {
		return fmt.Sprintf("(%s)", t.Label)
	}
	parts := make([]string, 0, len(t.Children)+1)
	parts = append(parts, t.Label)
	for _, c := range t.Children {
		parts = append(parts, c.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Walk calls fn for t and every descendant tree node, top down.
func (t *Tree) Walk(fn func(*Tree)) {
	fn(t)
	for _, c := range t.Children {
		if sub, ok := c.(*Tree); ok {
			sub.Walk(fn)
		}
	}
}

// Build shapes the node for one reduced rule. When collapse is set and the
// rule reduced to exactly one child, that child is returned directly with no
// wrapper node. Everything else becomes a labeled tree over the children.
func Build(label string, children []Node, collapse bool) Node {
	if collapse && len(children) == 1 {
		return children[0]
	}
	return New(label, children)
}

// Equal reports structural equality of two nodes: labels and child structure
// for trees, payload equivalence for leaves. Source spans are ignored, so a
// tree parsed from one text compares equal to the same shape parsed from
// another.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	at, aok := a.(*Tree)
	bt, bok := b.(*Tree)
	if aok != bok {
		return false
	}
	if aok {
		if at.Label != bt.Label || len(at.Children) != len(bt.Children) {
			return false
		}
		for i := range at.Children {
			if !Equal(at.Children[i], bt.Children[i]) {
				return false
			}
		}
		return true
	}
	al, ok := a.(Leaf)
	if !ok {
		return false
	}
	return al.LeafEqual(b)
}

// Pretty renders a node as an indented outline, one node per line.
func Pretty(n Node) string {
	var sb strings.Builder
	pretty(&sb, n, 0)
	return sb.String()
}

func pretty(sb *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	t, ok := n.(*Tree)
	if !ok {
		fmt.Fprintf(sb, "%s%s\n", indent, n.String())
		return
	}
	fmt.Fprintf(sb, "%s%s\n", indent, t.Label)
	for _, c := range t.Children {
		pretty(sb, c, depth+1)
	}
}
