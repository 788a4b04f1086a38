// Package template turns mixed templates, an ordered alternation of static
// text and embedded values, into token streams the parsing engine consumes,
// and exposes the parser that ties grammar augmentation, linearization,
// matching, and splicing together.
package template

import (
	"strings"

	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/tree"
)

// Value is one interpolated value of a template: an opaque host object or a
// previously built parse tree.
type Value interface {
	// ExprSpan is the source region of the interpolation expression itself,
	// never of any neighboring static text. Zero for unanchored templates.
	ExprSpan() source.Span
	isValue()
}

// HostObject is an interpolated host value captured verbatim.
type HostObject struct {
	Payload any
	Expr    source.Span
}

func (HostObject) isValue() {}

// ExprSpan implements Value.
func (v HostObject) ExprSpan() source.Span {
	return v.Expr
}

// SpliceTree is an interpolated parse tree to splice into the new parse. Its
// label is the tree's top-level label.
type SpliceTree struct {
	Tree *tree.Tree
	Expr source.Span
}

func (SpliceTree) isValue() {}

// ExprSpan implements Value.
func (v SpliceTree) ExprSpan() source.Span {
	return v.Expr
}

type segment struct {
	start int
	end   int
}

// Template is an immutable alternation of static segments and interpolated
// values. It always starts and ends with a static segment, possibly empty,
// so len(segments) == len(values)+1.
type Template struct {
	ix       *source.Index
	segments []segment
	values   []Value
}

// Index returns the source index the template's offsets refer to.
func (t *Template) Index() *source.Index {
	return t.ix
}

// Values returns the template's interpolated values in order.
func (t *Template) Values() []Value {
	return t.values
}

// FromSource assembles a template over one indexed source text: segments are
// [start,end) offset pairs into the text, and values carry their own
// expression spans. There must be exactly one more segment than values.
func FromSource(ix *source.Index, segments [][2]int, values []Value) (*Template, error) {
	if len(segments) != len(values)+1 {
		return nil, errTemplateShape(len(segments), len(values))
	}
	t := &Template{ix: ix, values: values}
	for _, seg := range segments {
		t.segments = append(t.segments, segment{start: seg[0], end: seg[1]})
	}
	return t, nil
}

// Builder assembles an unanchored template from bare fragments. Coordinates
// are synthesized over the concatenated static text, with each interpolation
// a zero-width point between its neighbors, so spans stay internally
// consistent even without real source info.
type Builder struct {
	statics []string
	values  []func(at source.Span) Value
}

// NewBuilder returns an empty template builder.
func NewBuilder() *Builder {
	return &Builder{statics: []string{""}}
}

// Static appends static text. Consecutive static fragments merge.
func (b *Builder) Static(text string) *Builder {
	b.statics[len(b.statics)-1] += text
	return b
}

// Object appends a host-object interpolation.
func (b *Builder) Object(payload any) *Builder {
	b.values = append(b.values, func(at source.Span) Value {
		return HostObject{Payload: payload, Expr: at}
	})
	b.statics = append(b.statics, "")
	return b
}

// Splice appends a subtree interpolation.
func (b *Builder) Splice(t *tree.Tree) *Builder {
	b.values = append(b.values, func(at source.Span) Value {
		return SpliceTree{Tree: t, Expr: at}
	})
	b.statics = append(b.statics, "")
	return b
}

// Build assembles the template.
func (b *Builder) Build() *Template {
	ix := source.NewIndex("", strings.Join(b.statics, ""))
	t := &Template{ix: ix}
	offset := 0
	for i, text := range b.statics {
		t.segments = append(t.segments, segment{start: offset, end: offset + len(text)})
		offset += len(text)
		if i < len(b.values) {
			t.values = append(t.values, b.values[i](ix.Point(offset)))
		}
	}
	return t
}
