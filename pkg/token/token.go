// Package token defines the token values a linearized template produces and
// the parsing engine consumes.
//
// A token is one of three kinds: text matched by the static lexer, an opaque
// host object captured from an interpolation, or a previously built parse
// tree to be spliced into the new parse. The kind is fixed at construction,
// so consumers can switch over it exhaustively instead of probing payloads.
package token

import (
	"fmt"
	"reflect"

	"github.com/walteh/tmplgram/pkg/source"
	"github.com/walteh/tmplgram/pkg/tree"
)

// Kind discriminates the payload a token carries.
type Kind int

const (
	// Lexed tokens come from the static lexer and carry matched text.
	Lexed Kind = iota
	// Placeholder tokens carry an opaque host object from an interpolation.
	Placeholder
	// Splice tokens carry a previously built parse tree.
	Splice
)

func (k Kind) String() string {
	switch k {
	case Lexed:
		return "lexed"
	case Placeholder:
		return "placeholder"
	case Splice:
		return "splice"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Token is one element of the stream handed to the parsing engine.
type Token struct {
	// Terminal names the grammar terminal the token claims. For Splice
	// tokens this is the injection terminal derived from the subtree's
	// label; the term matcher decides whether the claim holds.
	Terminal string
	Kind     Kind

	// Text is the matched source text. Set only for Lexed tokens.
	Text string
	// Object is the carried host value. Set only for Placeholder tokens.
	Object any
	// Subtree is the carried parse tree. Set only for Splice tokens.
	Subtree *tree.Tree

	// Meta is the absolute source region the token originates from: the
	// matched text for Lexed tokens, the interpolation expression for
	// Placeholder tokens, and the subtree's own recorded span (when it has
	// one) for Splice tokens.
	Meta source.Span
}

// NewLexed creates a token for text matched by the static lexer.
func NewLexed(terminal, text string, span source.Span) Token {
	return Token{Terminal: terminal, Kind: Lexed, Text: text, Meta: span}
}

// NewPlaceholder creates a token carrying an opaque host object.
func NewPlaceholder(terminal string, value any, span source.Span) Token {
	return Token{Terminal: terminal, Kind: Placeholder, Object: value, Meta: span}
}

// NewSplice creates a token carrying a parse tree to splice.
func NewSplice(terminal string, t *tree.Tree, span source.Span) Token {
	return Token{Terminal: terminal, Kind: Splice, Subtree: t, Meta: span}
}

// Span implements tree.Node.
func (t Token) Span() source.Span {
	return t.Meta
}

func (t Token) String() string {
	switch t.Kind {
	case Placeholder:
		return fmt.Sprintf("<object %v>", t.Object)
	case Splice:
		label := "?"
		if t.Subtree != nil {
			label = t.Subtree.Label
		}
		return fmt.Sprintf("<splice %s>", label)
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// LeafEqual implements tree.Leaf. Tokens compare by terminal, kind, and
// payload; source spans are ignored.
func (t Token) LeafEqual(other tree.Node) bool {
	o, ok := other.(Token)
	if !ok {
		return false
	}
	if t.Kind != o.Kind || t.Terminal != o.Terminal {
		return false
	}
	switch t.Kind {
	case Lexed:
		return t.Text == o.Text
	case Placeholder:
		return reflect.DeepEqual(t.Object, o.Object)
	case Splice:
		if t.Subtree == nil || o.Subtree == nil {
			return t.Subtree == o.Subtree
		}
		return tree.Equal(t.Subtree, o.Subtree)
	default:
		return false
	}
}
